package fulltext

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
)

var (
	inclusive = true
	exclusive = false
)

// Translate combines the pushed predicates under one conjunction. No
// predicates means match everything.
func Translate(info *catalog.Info, preds []filter.Predicate) (query.Query, error) {
	if len(preds) == 0 {
		return query.NewMatchAllQuery(), nil
	}
	conj := make([]query.Query, 0, len(preds))
	for _, p := range preds {
		q, err := translate(info, p)
		if err != nil {
			return nil, fmt.Errorf("translate %s: %w", p, err)
		}
		conj = append(conj, q)
	}
	if len(conj) == 1 {
		return conj[0], nil
	}
	return query.NewConjunctionQuery(conj), nil
}

func translate(info *catalog.Info, p filter.Predicate) (query.Query, error) {
	switch p := p.(type) {
	case *filter.Equal:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return equal(f, p.Value) })
	case *filter.NotEqual:
		q, err := fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return equal(f, p.Value) })
		if err != nil {
			return nil, err
		}
		return negate(q), nil
	case *filter.Between:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) {
			return between(f, p.Min, p.Max, true, true)
		})
	case *filter.Greater:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return between(f, p.Value, nil, false, false) })
	case *filter.GreaterEqual:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return between(f, p.Value, nil, true, false) })
	case *filter.Less:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return between(f, nil, p.Value, false, false) })
	case *filter.LessEqual:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return between(f, nil, p.Value, false, true) })
	case *filter.Like:
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) { return like(f, p), nil })
	case *filter.IsIn:
		if len(p.Values) == 0 {
			return query.NewMatchNoneQuery(), nil
		}
		return fieldQuery(info, p.Field(), func(f *catalog.FieldInfo) (query.Query, error) {
			if len(p.Values) == 1 {
				return equal(f, p.Values[0])
			}
			or := make([]query.Query, 0, len(p.Values))
			for _, v := range p.Values {
				q, err := equal(f, v)
				if err != nil {
					return nil, err
				}
				or = append(or, q)
			}
			return query.NewDisjunctionQuery(or), nil
		})
	case *filter.Not:
		q, err := translate(info, p.Child)
		if err != nil {
			return nil, err
		}
		return negate(q), nil
	case *filter.And:
		if len(p.Children) == 0 {
			return query.NewMatchAllQuery(), nil
		}
		and := make([]query.Query, 0, len(p.Children))
		for _, c := range p.Children {
			q, err := translate(info, c)
			if err != nil {
				return nil, err
			}
			and = append(and, q)
		}
		return query.NewConjunctionQuery(and), nil
	case *filter.Or:
		if len(p.Children) == 0 {
			return query.NewMatchNoneQuery(), nil
		}
		or := make([]query.Query, 0, len(p.Children))
		for _, c := range p.Children {
			q, err := translate(info, c)
			if err != nil {
				return nil, err
			}
			or = append(or, q)
		}
		return query.NewDisjunctionQuery(or), nil
	case *filter.FreeText:
		return freeText(info, p)
	}
	return nil, fmt.Errorf("%w: %T in full-text mode", filter.ErrUnsupported, p)
}

func fieldQuery(info *catalog.Info, path string, build func(*catalog.FieldInfo) (query.Query, error)) (query.Query, error) {
	f, ok := info.Field(path)
	if !ok || !f.Indexed {
		return nil, fmt.Errorf("%w: %s is not indexed", filter.ErrUnsupported, path)
	}
	return build(f)
}

func negate(q query.Query) query.Query {
	return query.NewBooleanQuery([]query.Query{query.NewMatchAllQuery()}, nil, []query.Query{q})
}

func equal(f *catalog.FieldInfo, v any) (query.Query, error) {
	name := fieldName(f)
	switch classify(f) {
	case classText:
		q := query.NewMatchPhraseQuery(filter.Stringify(v))
		q.SetField(name)
		return q, nil
	case classNumeric:
		n, ok := filter.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not numeric", filter.ErrInvalid, v)
		}
		q := query.NewNumericRangeInclusiveQuery(&n, &n, &inclusive, &inclusive)
		q.SetField(name)
		return q, nil
	case classTime:
		t, ok := filter.ToTime(v)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a time", filter.ErrInvalid, v)
		}
		q := query.NewDateRangeInclusiveQuery(t, t, &inclusive, &inclusive)
		q.SetField(name)
		return q, nil
	case classBool:
		b, err := strconv.ParseBool(filter.Stringify(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %v is not a boolean", filter.ErrInvalid, v)
		}
		q := query.NewBoolFieldQuery(b)
		q.SetField(name)
		return q, nil
	}
	q := query.NewTermQuery(filter.Stringify(v))
	q.SetField(name)
	return q, nil
}

// between builds a range; a nil bound is open.
func between(f *catalog.FieldInfo, lo, hi any, loIncl, hiIncl bool) (query.Query, error) {
	name := fieldName(f)
	switch classify(f) {
	case classNumeric:
		var lower, upper *float64
		if lo != nil {
			n, ok := filter.ToFloat(lo)
			if !ok {
				return nil, fmt.Errorf("%w: %v is not numeric", filter.ErrInvalid, lo)
			}
			lower = &n
		}
		if hi != nil {
			n, ok := filter.ToFloat(hi)
			if !ok {
				return nil, fmt.Errorf("%w: %v is not numeric", filter.ErrInvalid, hi)
			}
			upper = &n
		}
		q := query.NewNumericRangeInclusiveQuery(lower, upper, &loIncl, &hiIncl)
		q.SetField(name)
		return q, nil
	case classTime:
		var start, end time.Time
		if lo != nil {
			t, ok := filter.ToTime(lo)
			if !ok {
				return nil, fmt.Errorf("%w: %v is not a time", filter.ErrInvalid, lo)
			}
			start = t
		}
		if hi != nil {
			t, ok := filter.ToTime(hi)
			if !ok {
				return nil, fmt.Errorf("%w: %v is not a time", filter.ErrInvalid, hi)
			}
			end = t
		}
		q := query.NewDateRangeInclusiveQuery(start, end, &loIncl, &hiIncl)
		q.SetField(name)
		return q, nil
	case classBool:
		return nil, fmt.Errorf("%w: range on boolean %s", filter.ErrUnsupported, f.Path)
	}
	var lower, upper string
	if lo != nil {
		lower = filter.Stringify(lo)
	}
	if hi != nil {
		upper = filter.Stringify(hi)
	}
	q := query.NewTermRangeInclusiveQuery(lower, upper, &loIncl, &hiIncl)
	q.SetField(name)
	return q, nil
}

// like maps a pattern to a wildcard query. Analyzed text is lower-cased by the
// index, so the pattern is too.
func like(f *catalog.FieldInfo, p *filter.Like) query.Query {
	pattern := p.Pattern
	if classify(f) == classText {
		pattern = strings.ToLower(pattern)
	}
	q := query.NewWildcardQuery(pattern)
	q.SetField(fieldName(f))
	return q
}

// freeText searches the term in the listed fields, or in every string field.
// A numeric term also matches the identity and numeric fields exactly.
func freeText(info *catalog.Info, p *filter.FreeText) (query.Query, error) {
	if p.Term == "" {
		return query.NewMatchAllQuery(), nil
	}
	var fields []*catalog.FieldInfo
	if len(p.Fields) > 0 {
		for _, path := range p.Fields {
			f, ok := info.Field(path)
			if !ok || !f.Indexed {
				return nil, fmt.Errorf("%w: %s is not indexed", filter.ErrUnsupported, path)
			}
			fields = append(fields, f)
		}
	} else {
		fields = info.IndexedFields(catalog.KindString)
	}

	var or []query.Query
	if n, err := strconv.ParseFloat(p.Term, 64); err == nil {
		or = append(or, query.NewDocIDQuery([]string{p.Term}))
		for _, f := range info.IndexedFields(catalog.KindNumeric) {
			q := query.NewNumericRangeInclusiveQuery(&n, &n, &inclusive, &inclusive)
			q.SetField(fieldName(f))
			or = append(or, q)
		}
	}
	for _, f := range fields {
		or = append(or, textMatch(f, p.Term)...)
	}
	if len(or) == 0 {
		return query.NewMatchNoneQuery(), nil
	}
	return query.NewDisjunctionQuery(or), nil
}

// textMatch matches term as analyzed text. A single-word term on an analyzed
// field also matches as a substring of indexed tokens.
func textMatch(f *catalog.FieldInfo, term string) []query.Query {
	name := fieldName(f)
	m := query.NewMatchQuery(term)
	m.SetField(name)
	m.SetOperator(query.MatchQueryOperatorAnd)
	out := []query.Query{m}
	if classify(f) == classText && isWord(term) {
		w := query.NewWildcardQuery("*" + strings.ToLower(term) + "*")
		w.SetField(name)
		out = append(out, w)
	}
	return out
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
