package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is one ORDER BY term over a projected field.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses "Status,-ClassifiedAt" into sort fields; a leading
// "-" sorts descending. Blank terms are skipped and empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Builder assembles SELECT statements over one projection. Placeholders are
// numbered in the order conditions are added.
type Builder struct {
	projection  *ProjectionMap
	where       []string
	args        []any
	sort        []SortField
	defaultSort []SortField
	forUpdate   bool
}

// NewBuilder creates a Builder for the given projection with optional default sort fields.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, defaultSort: defaultSort}
}

// WhereEquals adds an equality condition. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" = "+b.bind(value))
	return b
}

// WhereSearch matches search as a case-insensitive substring of any of
// fields. No-op for a nil or empty search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	pattern := "%" + *search + "%"
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = b.projection.Column(f) + " ILIKE " + b.bind(pattern)
	}
	b.where = append(b.where, "("+strings.Join(terms, " OR ")+")")
	return b
}

// OrderByFields sets the sort order, overriding default sort fields. Fields
// the projection does not map are dropped.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// ForUpdate locks the rows returned by BuildSingle and BuildSingleOrNull
// until the surrounding transaction ends.
func (b *Builder) ForUpdate() *Builder {
	b.forUpdate = true
	return b
}

// BuildCount returns a COUNT(*) query with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.Table(), b.whereClause()), b.argList()
}

// BuildExists returns a SELECT EXISTS query over the current conditions.
func (b *Builder) BuildExists() (string, []any) {
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s)", b.projection.Table(), b.whereClause()), b.argList()
}

// BuildPage returns one ordered page of rows matching the current conditions.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.Table(),
		b.whereClause(),
		b.orderClause(),
		pageSize,
		(page-1)*pageSize,
	)
	return sql, b.argList()
}

// BuildSingle returns a SELECT of the row whose idField equals id. Other
// conditions are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1%s",
		b.projection.Columns(),
		b.projection.Table(),
		b.projection.Column(idField),
		b.lock(),
	)
	return sql, []any{id}
}

// BuildSingleOrNull returns a SELECT limited to one row with the current conditions.
func (b *Builder) BuildSingleOrNull() (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s%s LIMIT 1%s",
		b.projection.Columns(),
		b.projection.Table(),
		b.whereClause(),
		b.lock(),
	)
	return sql, b.argList()
}

func (b *Builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *Builder) argList() []any {
	return append([]any(nil), b.args...)
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderClause() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var terms []string
	for _, f := range fields {
		if !b.projection.Has(f.Field) {
			continue
		}
		dir := " ASC"
		if f.Descending {
			dir = " DESC"
		}
		terms = append(terms, b.projection.Column(f.Field)+dir)
	}

	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) lock() string {
	if b.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
