package postgres

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var jsonKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// criteria translates pushed predicates and sort keys into a SELECT over one
// entity table. Joins must be declared before predicates that use them are
// added; finalize renders the statement.
type criteria struct {
	info   *catalog.Info
	spec   *tableSpec
	logger *slog.Logger

	joins []string
	known map[string]bool
	where []sq.Sqlizer
	order []string
}

func newCriteria(info *catalog.Info, spec *tableSpec, logger *slog.Logger) *criteria {
	return &criteria{info: info, spec: spec, logger: logger, known: make(map[string]bool)}
}

// declare registers the join aliases that preds and sort reach through.
func (c *criteria) declare(preds []filter.Predicate, sort []filter.SortProperty) {
	var paths []string
	for _, p := range preds {
		paths = append(paths, filter.Fields(p)...)
	}
	for _, s := range sort {
		paths = append(paths, s.Path)
	}
	for _, path := range paths {
		f, ok := c.info.Field(path)
		if !ok || f.JoinAlias == "" || c.known[f.JoinAlias] {
			continue
		}
		if _, ok := c.info.Joins[f.JoinAlias]; !ok {
			continue
		}
		c.known[f.JoinAlias] = true
		c.joins = append(c.joins, f.JoinAlias)
	}
}

// add translates one predicate; predicates that cannot be resolved are logged and
// skipped.
func (c *criteria) add(p filter.Predicate) {
	expr, ok, err := c.translate(p)
	if err != nil {
		c.logger.Error("relational translation failed, skipping predicate",
			"entity", c.info.Name, "predicate", p.String(), "err", err)
		return
	}
	if ok {
		c.where = append(c.where, expr)
	}
}

// sortBy adds ORDER BY keys; unresolvable keys are logged and dropped.
func (c *criteria) sortBy(props []filter.SortProperty) {
	for _, s := range props {
		col, err := c.column(s.Path)
		if err != nil {
			c.logger.Error("cannot sort on path, ignoring", "entity", c.info.Name, "path", s.Path, "err", err)
			continue
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		c.order = append(c.order, col+" "+dir)
	}
}

func (c *criteria) finalize() sq.SelectBuilder {
	table := c.info.Table
	q := psql.Select(columnList(table, c.spec.columns)).From(table)
	idCol := table + "." + c.idColumn()
	for _, alias := range c.joins {
		j := c.info.Joins[alias]
		q = q.LeftJoin(fmt.Sprintf("%s AS %s ON %s.%s = %s", j.Table, alias, alias, j.FK, idCol))
	}
	if len(c.where) > 0 {
		q = q.Where(sq.And(c.where))
	}
	if len(c.order) > 0 {
		q = q.OrderBy(c.order...)
	}
	return q
}

func (c *criteria) idColumn() string {
	if f, ok := c.info.Fields[c.info.IDField]; ok && f.Column != "" {
		return f.Column
	}
	return "id"
}

// column resolves path to a SQL expression. Paths beneath a JSON column are
// read as text.
func (c *criteria) column(path string) (string, error) {
	f, ok := c.info.Field(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", filter.ErrUnknownPath, path)
	}
	if f.JoinAlias != "" && !c.known[f.JoinAlias] {
		return "", fmt.Errorf("join %q is not declared", f.JoinAlias)
	}
	if len(f.JSONPath) > 0 {
		for _, seg := range f.JSONPath {
			if !jsonKey.MatchString(seg) {
				return "", fmt.Errorf("invalid json key %q in %s", seg, path)
			}
		}
		return fmt.Sprintf("%s #>> '{%s}'", c.qualify(f, f.JSONColumn), strings.Join(f.JSONPath, ",")), nil
	}
	if f.Column == "" {
		return "", fmt.Errorf("%s has no column", path)
	}
	return c.qualify(f, f.Column), nil
}

func (c *criteria) qualify(f *catalog.FieldInfo, col string) string {
	if f.JoinAlias != "" {
		return col
	}
	return c.info.Table + "." + col
}

// operand resolves path for comparison with v, casting JSON text when v is
// numeric or boolean.
func (c *criteria) operand(path string, v any) (string, error) {
	col, err := c.column(path)
	if err != nil {
		return "", err
	}
	if f, _ := c.info.Field(path); f != nil && len(f.JSONPath) > 0 {
		switch {
		case isNumber(v):
			return "(" + col + ")::numeric", nil
		case isBool(v):
			return "(" + col + ")::boolean", nil
		}
	}
	return col, nil
}

// translate returns ok=false for predicates that add no condition.
func (c *criteria) translate(p filter.Predicate) (sq.Sqlizer, bool, error) {
	switch p := p.(type) {
	case *filter.Equal:
		col, err := c.operand(p.Field(), p.Value)
		return sq.Eq{col: sqlValue(p.Value)}, err == nil, err
	case *filter.NotEqual:
		col, err := c.operand(p.Field(), p.Value)
		return sq.NotEq{col: sqlValue(p.Value)}, err == nil, err
	case *filter.Between:
		col, err := c.operand(p.Field(), p.Min)
		return sq.And{sq.GtOrEq{col: sqlValue(p.Min)}, sq.LtOrEq{col: sqlValue(p.Max)}}, err == nil, err
	case *filter.Greater:
		col, err := c.operand(p.Field(), p.Value)
		return sq.Gt{col: sqlValue(p.Value)}, err == nil, err
	case *filter.GreaterEqual:
		col, err := c.operand(p.Field(), p.Value)
		return sq.GtOrEq{col: sqlValue(p.Value)}, err == nil, err
	case *filter.Less:
		col, err := c.operand(p.Field(), p.Value)
		return sq.Lt{col: sqlValue(p.Value)}, err == nil, err
	case *filter.LessEqual:
		col, err := c.operand(p.Field(), p.Value)
		return sq.LtOrEq{col: sqlValue(p.Value)}, err == nil, err
	case *filter.Like:
		col, err := c.column(p.Field())
		return sq.ILike{col: p.SQLPattern()}, err == nil, err
	case *filter.IsIn:
		switch len(p.Values) {
		case 0:
			return nil, false, nil
		case 1:
			col, err := c.operand(p.Field(), p.Values[0])
			return sq.Eq{col: sqlValue(p.Values[0])}, err == nil, err
		}
		col, err := c.operand(p.Field(), p.Values[0])
		vals := make([]any, len(p.Values))
		for i, v := range p.Values {
			vals[i] = sqlValue(v)
		}
		return sq.Eq{col: vals}, err == nil, err
	case *filter.IsNull:
		col, err := c.column(p.Field())
		return sq.Eq{col: nil}, err == nil, err
	case *filter.IsNotNull:
		col, err := c.column(p.Field())
		return sq.NotEq{col: nil}, err == nil, err
	case *filter.Not:
		child, ok, err := c.translate(p.Child)
		if err != nil || !ok {
			return nil, false, err
		}
		return notExpr{child}, true, nil
	case *filter.And:
		var and sq.And
		for _, ch := range p.Children {
			expr, ok, err := c.translate(ch)
			if err != nil {
				return nil, false, err
			}
			if ok {
				and = append(and, expr)
			}
		}
		return and, len(and) > 0, nil
	case *filter.Or:
		var or sq.Or
		for _, ch := range p.Children {
			expr, ok, err := c.translate(ch)
			if err != nil {
				return nil, false, err
			}
			if ok {
				or = append(or, expr)
			}
		}
		if len(or) == 0 {
			return sq.Expr("FALSE"), true, nil
		}
		return or, true, nil
	case *filter.FreeText:
		return c.freeText(p)
	}
	return nil, false, fmt.Errorf("%w: %T", filter.ErrUnsupported, p)
}

// freeText matches the term as a case-insensitive substring of any listed
// field, or of every string field with a column when none are listed.
func (c *criteria) freeText(p *filter.FreeText) (sq.Sqlizer, bool, error) {
	if p.Term == "" {
		return nil, false, nil
	}
	paths := p.Fields
	if len(paths) == 0 {
		for _, f := range c.info.IndexedFields(catalog.KindString) {
			if f.Column != "" && (f.JoinAlias == "" || c.known[f.JoinAlias]) {
				paths = append(paths, f.Path)
			}
		}
	}
	pattern := filter.NewLike("", p.Term, true).SQLPattern()
	var or sq.Or
	for _, path := range paths {
		col, err := c.column(path)
		if err != nil {
			return nil, false, err
		}
		or = append(or, sq.ILike{col: pattern})
	}
	if len(or) == 0 {
		return sq.Expr("FALSE"), true, nil
	}
	return or, true, nil
}

type notExpr struct{ child sq.Sqlizer }

func (n notExpr) ToSql() (string, []any, error) {
	s, args, err := n.child.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + s + ")", args, nil
}

// sqlValue converts named string types to plain strings and times to UTC so
// the driver can bind them.
func sqlValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64, []byte:
		return v
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}
