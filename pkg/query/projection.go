// Package query builds parameterized PostgreSQL statements from a projection
// of logical field names onto table columns.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps logical field names to the columns of one table.
type ProjectionMap struct {
	schema     string
	table      string
	alias      string
	columns    map[string]string
	bare       map[string]string
	columnList []string
}

// NewProjectionMap creates a ProjectionMap for the given schema, table, and alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:  schema,
		table:   table,
		alias:   alias,
		columns: make(map[string]string),
		bare:    make(map[string]string),
	}
}

// Project adds a column mapping from database column to field name. Columns
// are selected in the order they are projected.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := fmt.Sprintf("%s.%s", p.alias, column)
	p.columns[field] = qualified
	p.bare[field] = column
	p.columnList = append(p.columnList, qualified)
	return p
}

// Table returns the table reference with alias (schema.table alias).
func (p *ProjectionMap) Table() string {
	return fmt.Sprintf("%s %s", p.Name(), p.alias)
}

// Name returns the schema-qualified table name without alias.
func (p *ProjectionMap) Name() string {
	return fmt.Sprintf("%s.%s", p.schema, p.table)
}

// Column returns the alias-qualified column for field, or field if not mapped.
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.columns[field]; ok {
		return col
	}
	return field
}

// Has reports whether field is mapped.
func (p *ProjectionMap) Has(field string) bool {
	_, ok := p.columns[field]
	return ok
}

// Bare returns the unqualified column for field, or field if not mapped.
func (p *ProjectionMap) Bare(field string) string {
	if col, ok := p.bare[field]; ok {
		return col
	}
	return field
}

// Columns returns all mapped columns as a comma-separated string.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columnList, ", ")
}

func (p *ProjectionMap) bareList(fields []string) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = p.Bare(f)
	}
	return strings.Join(cols, ", ")
}
