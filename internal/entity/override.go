package entity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

// ErrInvalidOverrides indicates the override table failed validation.
var ErrInvalidOverrides = errors.New("invalid override table")

// Condition selects the companies an override applies to. Every set field
// must match.
type Condition struct {
	CompanyID   string `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	NamePattern string `yaml:"name_pattern,omitempty" json:"name_pattern,omitempty"`
	EntityType  Type   `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
}

// IsZero reports whether no field is set.
func (c Condition) IsZero() bool {
	return c.CompanyID == "" && c.NamePattern == "" && c.EntityType == ""
}

// Assignment is what an override sets.
type Assignment struct {
	Code       string `yaml:"code,omitempty" json:"code,omitempty"`
	EntityType Type   `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
}

// Rule is one row of the override table.
type Rule struct {
	ID        string     `yaml:"id" validate:"required"`
	When      Condition  `yaml:"when"`
	Set       Assignment `yaml:"set"`
	Rationale string     `yaml:"rationale" validate:"required"`

	name *regexp.Regexp
}

type document struct {
	Overrides []Rule `yaml:"overrides" validate:"dive"`
}

// Table is an ordered list of override rules; the first matching rule wins.
type Table struct {
	rules []Rule
}

// ParseTable decodes and validates an override table. Codes are checked
// against tax and stored in canonical form.
func ParseTable(data []byte, tax *taxonomy.Taxonomy) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOverrides, err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOverrides, err)
	}

	seen := make(map[string]bool, len(doc.Overrides))
	for i := range doc.Overrides {
		r := &doc.Overrides[i]
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidOverrides, r.ID)
		}
		seen[r.ID] = true

		if r.When.IsZero() {
			return nil, fmt.Errorf("%w: %s: empty condition", ErrInvalidOverrides, r.ID)
		}
		if r.Set.Code == "" && r.Set.EntityType == "" {
			return nil, fmt.Errorf("%w: %s: sets nothing", ErrInvalidOverrides, r.ID)
		}
		if r.When.NamePattern != "" {
			re, err := regexp.Compile(r.When.NamePattern)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOverrides, r.ID, err)
			}
			r.name = re
		}
		if r.Set.Code != "" {
			code := tax.Canonical(r.Set.Code)
			if _, ok := tax.Node(code); !ok {
				return nil, fmt.Errorf("%w: %s: unknown code %q", ErrInvalidOverrides, r.ID, r.Set.Code)
			}
			r.Set.Code = code
		}
	}
	return &Table{rules: doc.Overrides}, nil
}

// LoadTable reads an override table from r.
func LoadTable(r io.Reader, tax *taxonomy.Taxonomy) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read override table: %w", err)
	}
	return ParseTable(data, tax)
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Match returns the first rule whose condition holds.
func (t *Table) Match(_ context.Context, companyID, name string, detected Type) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	for _, r := range t.rules {
		if r.When.CompanyID != "" && r.When.CompanyID != companyID {
			continue
		}
		if r.name != nil && !r.name.MatchString(name) {
			continue
		}
		if r.When.EntityType != "" && r.When.EntityType != detected {
			continue
		}
		return r, true
	}
	return Rule{}, false
}
