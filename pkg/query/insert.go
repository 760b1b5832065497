package query

import (
	"fmt"
	"strings"
)

// Insert builds an INSERT statement with an optional ON CONFLICT clause.
// Placeholders follow the order of the inserted fields.
type Insert struct {
	projection *ProjectionMap
	fields     []string
	conflict   []string
	update     []string
	nothing    bool
	returning  []string
}

// NewInsert creates an Insert of fields into the projection's table.
func NewInsert(projection *ProjectionMap, fields ...string) *Insert {
	return &Insert{projection: projection, fields: fields}
}

// OnConflictUpdate replaces fields with the proposed row when keys collide.
func (i *Insert) OnConflictUpdate(keys []string, fields ...string) *Insert {
	i.conflict = keys
	i.update = fields
	i.nothing = false
	return i
}

// OnConflictDoNothing skips the row when keys collide. The affected row
// count then tells the caller whether the insert happened.
func (i *Insert) OnConflictDoNothing(keys ...string) *Insert {
	i.conflict = keys
	i.update = nil
	i.nothing = true
	return i
}

// Returning appends a RETURNING clause.
func (i *Insert) Returning(fields ...string) *Insert {
	i.returning = fields
	return i
}

// Build returns the statement.
func (i *Insert) Build() string {
	p := i.projection

	placeholders := make([]string, len(i.fields))
	for n := range i.fields {
		placeholders[n] = fmt.Sprintf("$%d", n+1)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		p.Name(),
		p.bareList(i.fields),
		strings.Join(placeholders, ", "),
	)

	if len(i.conflict) > 0 {
		fmt.Fprintf(&sb, " ON CONFLICT (%s)", p.bareList(i.conflict))
		switch {
		case i.nothing || len(i.update) == 0:
			sb.WriteString(" DO NOTHING")
		default:
			sets := make([]string, len(i.update))
			for n, f := range i.update {
				col := p.Bare(f)
				sets[n] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
			}
			sb.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
		}
	}

	if len(i.returning) > 0 {
		sb.WriteString(" RETURNING " + p.bareList(i.returning))
	}
	return sb.String()
}
