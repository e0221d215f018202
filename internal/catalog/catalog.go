// Package catalog derives per-entity field capabilities (relational column,
// join alias, full-text indexing) from struct tags and caches them.
package catalog

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// Kind is the searchable value class of a field.
type Kind int

const (
	KindOther Kind = iota
	KindString
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "STRING"
	case KindNumeric:
		return "NUMERIC"
	}
	return "OTHER"
}

// IndexKind is how a field is indexed for full-text search.
type IndexKind int

const (
	IndexNone IndexKind = iota
	// IndexFullText is analyzed text.
	IndexFullText
	// IndexKeyword is an exact, unanalyzed term.
	IndexKeyword
	// IndexField is indexed by its Go type (number, time, bool, text).
	IndexField
	// IndexNumeric is a numeric field.
	IndexNumeric
	// IndexID is the document identity.
	IndexID
)

// ParseIndexKind converts a search tag kind.
func ParseIndexKind(s string) (IndexKind, error) {
	switch s {
	case "fulltext":
		return IndexFullText, nil
	case "keyword":
		return IndexKeyword, nil
	case "field":
		return IndexField, nil
	case "numeric":
		return IndexNumeric, nil
	case "id":
		return IndexID, nil
	case "", "-":
		return IndexNone, nil
	}
	return IndexNone, fmt.Errorf("unknown search kind %q", s)
}

// FieldInfo describes one addressable field path of an entity.
type FieldInfo struct {
	Path      string
	Indexed   bool
	Index     IndexKind
	IndexName string
	Store     bool
	Kind      Kind
	Identity  bool
	GoType    reflect.Type

	// Column is the relational column, qualified by JoinAlias for joined
	// paths. Empty when the field has no relational form.
	Column    string
	JoinAlias string
	// JSONColumn is set for paths beneath a JSON document column; JSONPath
	// holds the keys below it.
	JSONColumn string
	JSONPath   []string
	// Bridge marks a composite field computed by the entity.
	Bridge bool
}

// Join describes a collection loaded from another table.
type Join struct {
	Alias  string
	Table  string
	FK     string
	Column string
}

// Bridger is implemented by entities that expose composite search fields
// computed from several struct fields.
type Bridger interface {
	BridgeFields() map[string]any
}

// Info is the cached capability map of one entity type.
type Info struct {
	Name        string
	Type        reflect.Type
	Table       string
	IDField     string
	DefaultSort []filter.SortProperty
	DeleteFlag  string
	Fields      map[string]*FieldInfo
	Joins       map[string]Join

	newFn func() model.Entity
}

// New allocates an empty entity of this type.
func (i *Info) New() model.Entity { return i.newFn() }

// Field returns the info for path. Paths beneath a JSON column resolve to a
// synthesized, unindexed entry.
func (i *Info) Field(path string) (*FieldInfo, bool) {
	if f, ok := i.Fields[path]; ok {
		return f, true
	}
	head, rest, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	parent, ok := i.Fields[head]
	if !ok || parent.JSONColumn == "" || len(parent.JSONPath) != 0 {
		return nil, false
	}
	return &FieldInfo{
		Path:       path,
		Kind:       KindOther,
		JSONColumn: parent.JSONColumn,
		JSONPath:   strings.Split(rest, "."),
	}, true
}

// IndexedFields returns the indexed fields of the given kind, sorted by path.
func (i *Info) IndexedFields(kind Kind) []*FieldInfo {
	var out []*FieldInfo
	for _, f := range i.Fields {
		if f.Indexed && f.Kind == kind && f.Index != IndexID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out
}

// Option configures a registration.
type Option func(*registration)

type extraField struct {
	path  string
	index IndexKind
}

type registration struct {
	name        string
	proto       model.Entity
	table       string
	defaultSort []filter.SortProperty
	deleteFlag  string
	additional  []extraField
	bridges     []extraField
}

// WithTable sets the relational table; the default is the entity name + "s".
func WithTable(table string) Option {
	return func(r *registration) { r.table = table }
}

// WithDefaultSort sets the order used when a filter carries none.
func WithDefaultSort(props ...filter.SortProperty) Option {
	return func(r *registration) { r.defaultSort = props }
}

// WithDeleteFlag names the boolean soft-delete field.
func WithDeleteFlag(path string) Option {
	return func(r *registration) { r.deleteFlag = path }
}

// WithAdditionalField declares an indexed path that has no search tag.
func WithAdditionalField(path string, kind IndexKind) Option {
	return func(r *registration) { r.additional = append(r.additional, extraField{path, kind}) }
}

// WithBridge declares a composite field produced by the entity's Bridger.
func WithBridge(name string, kind IndexKind) Option {
	return func(r *registration) { r.bridges = append(r.bridges, extraField{name, kind}) }
}

// Catalog maps entity names to lazily built capability info. Info is built
// once per entity type on first use and never invalidated.
type Catalog struct {
	mu     sync.RWMutex
	regs   map[string]*registration
	byType map[reflect.Type]*Info
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		regs:   make(map[string]*registration),
		byType: make(map[reflect.Type]*Info),
	}
}

// Register declares an entity type under name. proto must be a pointer to a
// struct.
func (c *Catalog) Register(name string, proto model.Entity, opts ...Option) {
	r := &registration{name: name, proto: proto, table: name + "s"}
	for _, o := range opts {
		o(r)
	}
	c.mu.Lock()
	c.regs[name] = r
	c.mu.Unlock()
}

// Names returns the registered entity names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.regs))
	for n := range c.regs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the info for a registered entity name.
func (c *Catalog) Lookup(name string) (*Info, error) {
	c.mu.RLock()
	r, ok := c.regs[name]
	if !ok {
		c.mu.RUnlock()
		return nil, fmt.Errorf("unknown entity type %q", name)
	}
	t := reflect.TypeOf(r.proto)
	info, ok := c.byType[t]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.byType[t]; ok {
		return info, nil
	}
	info, err := build(r)
	if err != nil {
		return nil, fmt.Errorf("build catalog for %s: %w", name, err)
	}
	c.byType[t] = info
	return info, nil
}

// MustLookup is Lookup for registrations known to be valid.
func (c *Catalog) MustLookup(name string) *Info {
	info, err := c.Lookup(name)
	if err != nil {
		panic(err)
	}
	return info
}

// IsIndexed reports whether path is indexed for full-text search. Unknown
// entities and paths are not indexed.
func (c *Catalog) IsIndexed(entityType, path string) bool {
	info, err := c.Lookup(entityType)
	if err != nil {
		return false
	}
	f, ok := info.Field(path)
	return ok && f.Indexed
}

// FieldKind reports the searchable value class of path.
func (c *Catalog) FieldKind(entityType, path string) Kind {
	info, err := c.Lookup(entityType)
	if err != nil {
		return KindOther
	}
	if f, ok := info.Field(path); ok {
		return f.Kind
	}
	return KindOther
}
