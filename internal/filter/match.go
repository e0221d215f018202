package filter

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Matches evaluates p directly against a materialized entity. Path lookup
// failures count as no match.
func Matches(p Predicate, entity any) bool {
	switch v := p.(type) {
	case *Not:
		return !Matches(v.Child, entity)
	case *And:
		for _, c := range v.Children {
			if !Matches(c, entity) {
				return false
			}
		}
		return true
	case *Or:
		for _, c := range v.Children {
			if Matches(c, entity) {
				return true
			}
		}
		return false
	case *FreeText:
		return matchFreeText(v, entity)
	}

	vals, err := Lookup(entity, p.Field())
	if err != nil {
		return false
	}
	for _, val := range vals {
		if matchValue(p, val) {
			return true
		}
	}
	return false
}

// matchValue evaluates a leaf predicate against one resolved value.
func matchValue(p Predicate, v any) bool {
	switch p := p.(type) {
	case *Equal:
		return Equals(v, p.Value)
	case *NotEqual:
		return !Equals(v, p.Value)
	case *IsIn:
		for _, want := range p.Values {
			if Equals(v, want) {
				return true
			}
		}
		return false
	case *IsNull:
		return isNil(v)
	case *IsNotNull:
		return !isNil(v)
	case *Between:
		lo, ok1 := Compare(v, p.Min)
		hi, ok2 := Compare(v, p.Max)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case *Greater:
		c, ok := Compare(v, p.Value)
		return ok && c > 0
	case *GreaterEqual:
		c, ok := Compare(v, p.Value)
		return ok && c >= 0
	case *Less:
		c, ok := Compare(v, p.Value)
		return ok && c < 0
	case *LessEqual:
		c, ok := Compare(v, p.Value)
		return ok && c <= 0
	case *Like:
		if isNil(v) {
			return false
		}
		return p.MatchString(Stringify(v))
	}
	return false
}

func matchFreeText(p *FreeText, entity any) bool {
	term := strings.ToLower(p.Term)
	if term == "" {
		return true
	}
	for _, f := range p.Fields {
		vals, err := Lookup(entity, f)
		if err != nil {
			continue
		}
		for _, v := range vals {
			if !isNil(v) && strings.Contains(strings.ToLower(Stringify(v)), term) {
				return true
			}
		}
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// Equals compares a resolved entity value with a filter operand. Named string
// types compare by their string form, numbers numerically.
func Equals(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return Stringify(a) == Stringify(b)
}

// Compare orders a against b. The second result is false when the values
// have no common ordering.
func Compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return 0, false
	}
	switch av := a.(type) {
	case float64:
		bv, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmpFloat(av, bv), true
	case time.Time:
		bv, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			if s, isStr := b.(string); isStr {
				parsed, err := strconv.ParseBool(s)
				if err != nil {
					return 0, false
				}
				bv, ok = parsed, true
			}
		}
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case string:
		switch bv := b.(type) {
		case string:
			return strings.Compare(av, bv), true
		case float64:
			f, err := strconv.ParseFloat(av, 64)
			if err != nil {
				return 0, false
			}
			return cmpFloat(f, bv), true
		case time.Time:
			t, ok := toTime(av)
			if !ok {
				return 0, false
			}
			return t.Compare(bv), true
		case bool:
			c, ok := Compare(b, a)
			return -c, ok
		}
	}
	return 0, false
}

// normalize folds numeric kinds to float64, named strings to string, and
// dereferences pointers.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err != nil {
			return string(t)
		}
		return normalize(decoded)
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.String && rv.Kind() != reflect.Pointer {
			return t.String()
		}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Stringify renders a value for text comparison.
func Stringify(v any) string {
	switch t := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// ToTime converts an operand to a time, accepting RFC 3339 and date strings.
func ToTime(v any) (time.Time, bool) { return toTime(normalize(v)) }

// ToFloat converts an operand to float64, accepting numeric strings.
func ToFloat(v any) (float64, bool) { return toFloat(normalize(v)) }
