// Package fulltext keeps one bleve index per entity type and answers the
// predicates the planner pushes to it.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// batchSize bounds the documents written per bleve batch during rebuilds.
const batchSize = 500

// Indexes holds the bleve index of every registered entity type.
type Indexes struct {
	catalog *catalog.Catalog
	dir     string
	logger  *slog.Logger

	mu      sync.RWMutex
	indexes map[string]bleve.Index
}

// Open opens or creates an index per registered entity type under dir. An
// empty dir keeps every index in memory.
func Open(cat *catalog.Catalog, dir string, logger *slog.Logger) (*Indexes, error) {
	if logger == nil {
		logger = slog.Default()
	}
	x := &Indexes{catalog: cat, dir: dir, logger: logger, indexes: make(map[string]bleve.Index)}
	for _, name := range cat.Names() {
		idx, err := x.open(name)
		if err != nil {
			x.Close()
			return nil, fmt.Errorf("open %s index: %w", name, err)
		}
		x.indexes[name] = idx
	}
	return x, nil
}

func (x *Indexes) open(name string) (bleve.Index, error) {
	info, err := x.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	m := buildMapping(info)
	if x.dir == "" {
		return bleve.NewMemOnly(m)
	}
	path := filepath.Join(x.dir, name+".bleve")
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		x.logger.Info("creating full-text index", "entity", name, "path", path)
		return bleve.New(path, m)
	}
	return idx, err
}

// Index returns the index for entityType.
func (x *Indexes) Index(entityType string) (bleve.Index, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	idx, ok := x.indexes[entityType]
	if !ok {
		return nil, fmt.Errorf("no full-text index for %q", entityType)
	}
	return idx, nil
}

// Put indexes or replaces one entity.
func (x *Indexes) Put(entityType string, e model.Entity) error {
	info, err := x.catalog.Lookup(entityType)
	if err != nil {
		return err
	}
	idx, err := x.Index(entityType)
	if err != nil {
		return err
	}
	if err := idx.Index(e.EntityID(), document(info, e)); err != nil {
		return fmt.Errorf("index %s %s: %w", entityType, e.EntityID(), err)
	}
	return nil
}

// Delete removes one entity from the index.
func (x *Indexes) Delete(entityType, id string) error {
	idx, err := x.Index(entityType)
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("unindex %s %s: %w", entityType, id, err)
	}
	return nil
}

// Rebuild replaces the index of entityType with the entities next yields.
// next returns nil once exhausted.
func (x *Indexes) Rebuild(ctx context.Context, entityType string, next func(ctx context.Context) ([]model.Entity, error)) (int, error) {
	info, err := x.catalog.Lookup(entityType)
	if err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.indexes[entityType]; ok {
		if err := old.Close(); err != nil {
			x.logger.Warn("closing index before rebuild", "entity", entityType, "err", err)
		}
		delete(x.indexes, entityType)
	}
	if x.dir != "" {
		if err := os.RemoveAll(filepath.Join(x.dir, entityType+".bleve")); err != nil {
			return 0, fmt.Errorf("remove %s index: %w", entityType, err)
		}
	}
	idx, err := x.open(entityType)
	if err != nil {
		return 0, fmt.Errorf("recreate %s index: %w", entityType, err)
	}
	x.indexes[entityType] = idx

	start := time.Now()
	total := 0
	for {
		entities, err := next(ctx)
		if err != nil {
			return total, err
		}
		if len(entities) == 0 {
			break
		}
		b := idx.NewBatch()
		for _, e := range entities {
			if err := b.Index(e.EntityID(), document(info, e)); err != nil {
				return total, fmt.Errorf("batch %s %s: %w", entityType, e.EntityID(), err)
			}
			if b.Size() >= batchSize {
				if err := idx.Batch(b); err != nil {
					return total, fmt.Errorf("write batch: %w", err)
				}
				b.Reset()
			}
		}
		if b.Size() > 0 {
			if err := idx.Batch(b); err != nil {
				return total, fmt.Errorf("write batch: %w", err)
			}
		}
		total += len(entities)
	}
	x.logger.Info("rebuilt full-text index", "entity", entityType, "documents", total, "took", time.Since(start))
	return total, nil
}

// Close closes every index.
func (x *Indexes) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	var errs []error
	for name, idx := range x.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s index: %w", name, err))
		}
	}
	x.indexes = map[string]bleve.Index{}
	return errors.Join(errs...)
}

// buildMapping derives a static bleve mapping from the indexed catalog
// fields. Unindexed fields are ignored.
func buildMapping(info *catalog.Info) mapping.IndexMapping {
	doc := bleve.NewDocumentStaticMapping()
	for _, f := range info.Fields {
		if !f.Indexed {
			continue
		}
		fm := fieldMapping(f)
		fm.Store = f.Store
		doc.AddFieldMappingsAt(fieldName(f), fm)
	}
	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = "standard"
	return m
}

func fieldMapping(f *catalog.FieldInfo) *mapping.FieldMapping {
	switch classify(f) {
	case classText:
		return bleve.NewTextFieldMapping()
	case classNumeric:
		return bleve.NewNumericFieldMapping()
	case classTime:
		return bleve.NewDateTimeFieldMapping()
	case classBool:
		return bleve.NewBooleanFieldMapping()
	}
	return bleve.NewKeywordFieldMapping()
}

type valueClass int

const (
	classKeyword valueClass = iota
	classText
	classNumeric
	classTime
	classBool
)

var timeType = reflect.TypeOf(time.Time{})

// classify decides how values of f are indexed and queried.
func classify(f *catalog.FieldInfo) valueClass {
	switch f.Index {
	case catalog.IndexFullText:
		return classText
	case catalog.IndexNumeric:
		return classNumeric
	case catalog.IndexKeyword, catalog.IndexID:
		return classKeyword
	}
	if f.GoType == nil {
		return classKeyword
	}
	t := f.GoType
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return classTime
	case t.Kind() == reflect.Bool:
		return classBool
	case f.Kind == catalog.KindNumeric:
		return classNumeric
	}
	return classKeyword
}
