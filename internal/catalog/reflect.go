package catalog

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

var (
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
	timeType       = reflect.TypeOf(time.Time{})
	bridgerType    = reflect.TypeOf((*Bridger)(nil)).Elem()
)

type searchTag struct {
	kind  string
	name  string
	store bool
}

func parseSearchTag(tag string) searchTag {
	parts := strings.Split(tag, ",")
	st := searchTag{kind: strings.TrimSpace(parts[0])}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "store":
			st.store = true
		case strings.HasPrefix(opt, "name="):
			st.name = strings.TrimPrefix(opt, "name=")
		}
	}
	return st
}

func build(r *registration) (*Info, error) {
	t := reflect.TypeOf(r.proto)
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("prototype must be a pointer to struct, got %s", t)
	}
	st := t.Elem()
	info := &Info{
		Name:        r.name,
		Type:        st,
		Table:       r.table,
		DefaultSort: r.defaultSort,
		DeleteFlag:  r.deleteFlag,
		Fields:      make(map[string]*FieldInfo),
		Joins:       make(map[string]Join),
		newFn: func() model.Entity {
			return reflect.New(st).Interface().(model.Entity)
		},
	}
	if err := scan(info, st, "", ""); err != nil {
		return nil, err
	}

	for _, x := range r.additional {
		gt, err := typeAt(st, x.path)
		if err != nil {
			return nil, fmt.Errorf("additional field %q: %w", x.path, err)
		}
		f, ok := info.Fields[x.path]
		if !ok {
			f = &FieldInfo{Path: x.path, GoType: gt, Kind: kindOf(gt)}
			info.Fields[x.path] = f
		}
		f.Indexed, f.Index, f.IndexName = true, x.index, x.path
	}

	if len(r.bridges) > 0 && !t.Implements(bridgerType) {
		return nil, fmt.Errorf("%s declares bridge fields but does not implement Bridger", t)
	}
	for _, x := range r.bridges {
		kind := KindString
		if x.index == IndexNumeric {
			kind = KindNumeric
		}
		info.Fields[x.path] = &FieldInfo{
			Path: x.path, Indexed: true, Index: x.index, IndexName: x.path,
			Kind: kind, Bridge: true,
		}
	}

	if info.IDField == "" {
		return nil, fmt.Errorf("%s has no identity field", st)
	}
	if r.deleteFlag != "" {
		if _, ok := info.Fields[r.deleteFlag]; !ok {
			return nil, fmt.Errorf("delete flag %q is not a field of %s", r.deleteFlag, st)
		}
	}
	return info, nil
}

// scan walks the exported fields of t, registering each addressable path.
func scan(info *Info, t reflect.Type, prefix, alias string) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		path := prefix + filter.JSONName(sf)
		tag := parseSearchTag(sf.Tag.Get("search"))
		column := sf.Tag.Get("db")
		if column == "-" {
			column = ""
		}
		ft := deref(sf.Type)

		if jt := sf.Tag.Get("join"); jt != "" {
			if err := scanJoin(info, sf, path, jt, tag); err != nil {
				return err
			}
			continue
		}

		if tag.kind == "ref" {
			if ft.Kind() != reflect.Struct {
				return fmt.Errorf("field %s: ref must be a struct reference", path)
			}
			info.Fields[path] = &FieldInfo{Path: path, GoType: sf.Type, Column: qualify(alias, column), JoinAlias: alias}
			idPath := path + ".id"
			info.Fields[idPath] = &FieldInfo{
				Path: idPath, Indexed: true, Index: IndexKeyword, IndexName: idPath,
				Kind: KindString, Identity: true, GoType: reflect.TypeOf(""),
				Column: qualify(alias, column), JoinAlias: alias,
			}
			continue
		}

		index, err := ParseIndexKind(tag.kind)
		if err != nil {
			return fmt.Errorf("field %s: %w", path, err)
		}
		fi := &FieldInfo{
			Path:      path,
			Indexed:   index != IndexNone,
			Index:     index,
			IndexName: path,
			Store:     tag.store,
			Kind:      kindOf(ft),
			Identity:  index == IndexID,
			GoType:    sf.Type,
			Column:    qualify(alias, column),
			JoinAlias: alias,
		}
		if tag.name != "" {
			fi.IndexName = tag.name
		}
		if sf.Type == rawMessageType && column != "" {
			fi.JSONColumn = fi.Column
		}
		info.Fields[path] = fi
		if fi.Identity && prefix == "" {
			info.IDField = path
		}
	}
	return nil
}

func scanJoin(info *Info, sf reflect.StructField, path, tag string, st searchTag) error {
	parts := strings.Split(tag, ",")
	if len(parts) < 3 {
		return fmt.Errorf("field %s: join tag needs alias,table,fk", path)
	}
	j := Join{Alias: parts[0], Table: parts[1], FK: parts[2]}
	if len(parts) > 3 {
		j.Column = parts[3]
	}
	info.Joins[j.Alias] = j

	if sf.Type.Kind() != reflect.Slice {
		return fmt.Errorf("field %s: join must be a slice", path)
	}
	elem := deref(sf.Type.Elem())
	if elem.Kind() == reflect.Struct && elem != timeType {
		info.Fields[path] = &FieldInfo{Path: path, GoType: sf.Type, JoinAlias: j.Alias}
		return scan(info, elem, path+".", j.Alias)
	}
	if j.Column == "" {
		return fmt.Errorf("field %s: scalar join needs a column", path)
	}
	index, err := ParseIndexKind(st.kind)
	if err != nil {
		return fmt.Errorf("field %s: %w", path, err)
	}
	info.Fields[path] = &FieldInfo{
		Path: path, Indexed: index != IndexNone, Index: index, IndexName: path,
		Store: st.store, Kind: kindOf(elem), GoType: sf.Type,
		Column: qualify(j.Alias, j.Column), JoinAlias: j.Alias,
	}
	return nil
}

// typeAt resolves the Go type at a dotted path, stepping through pointers
// and slice elements.
func typeAt(t reflect.Type, path string) (reflect.Type, error) {
	for _, seg := range strings.Split(path, ".") {
		t = deref(t)
		for t.Kind() == reflect.Slice {
			t = deref(t.Elem())
		}
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%q: %s is not a struct", seg, t)
		}
		found := false
		for i := 0; i < t.NumField(); i++ {
			if sf := t.Field(i); sf.IsExported() && filter.JSONName(sf) == seg {
				t, found = sf.Type, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", filter.ErrUnknownPath, seg)
		}
	}
	return t, nil
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func kindOf(t reflect.Type) Kind {
	t = deref(t)
	for t.Kind() == reflect.Slice && t != rawMessageType {
		t = deref(t.Elem())
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumeric
	}
	return KindOther
}

func qualify(alias, column string) string {
	if column == "" || alias == "" {
		return column
	}
	return alias + "." + column
}
