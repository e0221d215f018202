package fulltext

import (
	"reflect"
	"strings"
	"time"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// fieldName is the flat document key of f. Dotted paths are flattened so the
// static mapping needs no sub-documents.
func fieldName(f *catalog.FieldInfo) string {
	return strings.ReplaceAll(f.IndexName, ".", "_")
}

// document projects the indexed fields of e into a flat bleve document.
func document(info *catalog.Info, e model.Entity) map[string]any {
	doc := make(map[string]any, len(info.Fields))
	var bridged map[string]any
	if b, ok := e.(catalog.Bridger); ok {
		bridged = b.BridgeFields()
	}
	for _, f := range info.Fields {
		if !f.Indexed {
			continue
		}
		if f.Path == info.IDField {
			doc[fieldName(f)] = e.EntityID()
			continue
		}
		var vals []any
		if f.Bridge {
			vals = []any{bridged[f.Path]}
		} else {
			found, err := filter.Lookup(e, f.Path)
			if err != nil {
				continue
			}
			vals = found
		}
		var clean []any
		for _, v := range vals {
			if v = plain(v); v != nil {
				clean = append(clean, v)
			}
		}
		switch len(clean) {
		case 0:
		case 1:
			doc[fieldName(f)] = clean[0]
		default:
			doc[fieldName(f)] = clean
		}
	}
	return doc
}

// plain unwraps pointers and named scalar types so bleve sees builtin kinds.
// Nil and empty strings yield nil.
func plain(v any) any {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		return t
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if t, ok := rv.Interface().(time.Time); ok {
		return t
	}
	switch rv.Kind() {
	case reflect.String:
		if rv.String() == "" {
			return nil
		}
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
	return rv.Interface()
}

func zeroIfNil(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
