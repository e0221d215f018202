// Package sorting orders materialized result pages by entity property paths.
package sorting

import (
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// Sorter sorts pages with locale-aware string collation. It is safe for
// concurrent use.
type Sorter struct {
	tag    language.Tag
	logger *slog.Logger

	mu     sync.Mutex
	logged map[string]struct{}
}

// New returns a sorter for the BCP 47 locale lang. An unparsable locale falls
// back to English.
func New(lang string, logger *slog.Logger) *Sorter {
	if logger == nil {
		logger = slog.Default()
	}
	tag, err := language.Parse(lang)
	if err != nil {
		logger.Warn("unknown collation locale, using en", "locale", lang, "err", err)
		tag = language.English
	}
	return &Sorter{tag: tag, logger: logger, logged: make(map[string]struct{})}
}

// Sort orders page in place by props and returns it. Earlier properties take
// precedence; the sort is stable so equal rows keep their incoming order.
func (s *Sorter) Sort(page []model.Entity, props []filter.SortProperty) []model.Entity {
	if len(props) == 0 || len(page) < 2 {
		return page
	}
	// Collators are not safe for concurrent use.
	col := collate.New(s.tag, collate.IgnoreCase)

	keys := make([][]any, len(page))
	for i, e := range page {
		keys[i] = make([]any, len(props))
		for k, p := range props {
			v, err := filter.First(e, p.Path)
			if err != nil {
				s.logOnce("cannot read sort key", p.Path, err)
				v = errKey{}
			}
			keys[i][k] = v
		}
	}

	idx := make([]int, len(page))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for k, p := range props {
			c := compare(col, keys[idx[a]][k], keys[idx[b]][k])
			if c == 0 {
				continue
			}
			if p.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	sorted := make([]model.Entity, len(page))
	for i, j := range idx {
		sorted[i] = page[j]
	}
	copy(page, sorted)
	return page
}

// errKey marks a key that could not be read; it never orders.
type errKey struct{}

func compare(col *collate.Collator, a, b any) int {
	if _, bad := a.(errKey); bad {
		return 0
	}
	if _, bad := b.(errKey); bad {
		return 0
	}
	an, bn := isNil(a), isNil(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	as, aok := asString(a)
	bs, bok := asString(b)
	if aok && bok {
		return col.CompareString(as, bs)
	}
	if c, ok := filter.Compare(a, b); ok {
		return c
	}
	return col.CompareString(filter.Stringify(a), filter.Stringify(b))
}

func (s *Sorter) logOnce(msg, path string, err error) {
	key := path + ": " + err.Error()
	s.mu.Lock()
	_, seen := s.logged[key]
	if !seen {
		s.logged[key] = struct{}{}
	}
	s.mu.Unlock()
	if !seen {
		s.logger.Warn(msg, "path", path, "err", err)
	}
}
