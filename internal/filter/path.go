package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ErrUnknownPath is returned when a path segment names no field.
var ErrUnknownPath = errors.New("unknown path")

var (
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
	bytesType      = reflect.TypeOf([]byte(nil))
)

// fieldIndex caches segment -> struct field index per struct type. A
// negative index records a miss.
var fieldIndex sync.Map // map[fieldKey]int

type fieldKey struct {
	t   reflect.Type
	seg string
}

// Lookup resolves a dotted path against v and returns every leaf value it
// reaches. Slice, array and map-of-entity segments fan out, so the result may
// hold several values. A nil or empty intermediate stops the walk and
// contributes a single nil leaf.
func Lookup(v any, path string) ([]any, error) {
	var segs []string
	if path != "" {
		segs = strings.Split(path, ".")
	}
	var out []any
	err := walk(reflect.ValueOf(v), segs, func(leaf any) {
		out = append(out, leaf)
	})
	return out, err
}

// First returns the first value Lookup reaches, or nil.
func First(v any, path string) (any, error) {
	vals, err := Lookup(v, path)
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	return vals[0], nil
}

func walk(v reflect.Value, segs []string, emit func(any)) error {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			emit(nil)
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		emit(nil)
		return nil
	}

	if v.Type() == rawMessageType {
		if len(segs) == 0 {
			emit(v.Interface())
			return nil
		}
		if v.Len() == 0 {
			emit(nil)
			return nil
		}
		var decoded any
		if err := json.Unmarshal(v.Bytes(), &decoded); err != nil {
			return fmt.Errorf("decode json at %q: %w", segs[0], err)
		}
		return walk(reflect.ValueOf(decoded), segs, emit)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type() == bytesType {
			break
		}
		if v.Len() == 0 {
			emit(nil)
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), segs, emit); err != nil {
				return err
			}
		}
		return nil
	}

	if len(segs) == 0 {
		emit(v.Interface())
		return nil
	}

	seg := segs[0]
	switch v.Kind() {
	case reflect.Struct:
		idx := structField(v.Type(), seg)
		if idx < 0 {
			return fmt.Errorf("%w: %q on %s", ErrUnknownPath, seg, v.Type())
		}
		return walk(v.Field(idx), segs[1:], emit)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %q on %s", ErrUnknownPath, seg, v.Type())
		}
		mv := v.MapIndex(reflect.ValueOf(seg).Convert(v.Type().Key()))
		if !mv.IsValid() {
			emit(nil)
			return nil
		}
		return walk(mv, segs[1:], emit)
	default:
		return fmt.Errorf("%w: %q on %s", ErrUnknownPath, seg, v.Type())
	}
}

// structField finds the field for seg by json name, then by case-insensitive
// Go name.
func structField(t reflect.Type, seg string) int {
	key := fieldKey{t, seg}
	if idx, ok := fieldIndex.Load(key); ok {
		return idx.(int)
	}
	idx := -1
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if JSONName(f) == seg {
			idx = i
			break
		}
		if idx < 0 && strings.EqualFold(f.Name, seg) {
			idx = i
		}
	}
	fieldIndex.Store(key, idx)
	return idx
}

// JSONName returns the json tag name of f, or its lowercased Go name.
func JSONName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}
