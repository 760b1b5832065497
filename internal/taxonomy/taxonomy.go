package taxonomy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const maxAliasDepth = 8

// Document is the YAML layout of one taxonomy version.
type Document struct {
	Version         string            `yaml:"version" validate:"required"`
	Nodes           []Node            `yaml:"nodes" validate:"required,min=1,dive"`
	Aliases         map[string]string `yaml:"aliases"`
	SegmentKeywords map[string]string `yaml:"segment_keywords"`
	Synonyms        map[string]string `yaml:"synonyms"`
	NeutralKeywords []string          `yaml:"neutral_keywords"`
	IndustryCodes   map[string]string `yaml:"industry_codes"`
	EntitySectors   map[string]string `yaml:"entity_sectors"`
}

// Taxonomy is an immutable, validated taxonomy version.
type Taxonomy struct {
	doc    Document
	byCode map[string]int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a YAML taxonomy document.
func Parse(data []byte) (*Taxonomy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidTaxonomy, err)
	}
	return New(doc)
}

// New validates doc and indexes its nodes.
func New(doc Document) (*Taxonomy, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTaxonomy, err)
	}

	t := &Taxonomy{doc: doc, byCode: make(map[string]int, len(doc.Nodes))}
	for i, n := range doc.Nodes {
		if _, dup := t.byCode[n.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidTaxonomy, n.Code)
		}
		t.byCode[n.Code] = i
	}

	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Taxonomy) check() error {
	for _, n := range t.doc.Nodes {
		if n.Level == 1 {
			continue
		}
		p, ok := t.byCode[n.Parent]
		if !ok {
			return fmt.Errorf("%w: %s has unknown parent %s", ErrInvalidTaxonomy, n.Code, n.Parent)
		}
		if t.doc.Nodes[p].Level != n.Level-1 {
			return fmt.Errorf("%w: %s at level %d under %s at level %d",
				ErrInvalidTaxonomy, n.Code, n.Level, n.Parent, t.doc.Nodes[p].Level)
		}
	}

	for alias := range t.doc.Aliases {
		if _, err := t.resolve(alias); err != nil {
			return fmt.Errorf("%w: alias %s: %w", ErrInvalidTaxonomy, alias, err)
		}
	}

	refs := map[string]map[string]string{
		"segment_keywords": t.doc.SegmentKeywords,
		"industry_codes":   t.doc.IndustryCodes,
		"entity_sectors":   t.doc.EntitySectors,
	}
	for name, m := range refs {
		for k, code := range m {
			if _, err := t.resolve(code); err != nil {
				return fmt.Errorf("%w: %s[%s]: %w", ErrInvalidTaxonomy, name, k, err)
			}
		}
	}
	return nil
}

// Version returns the taxonomy version string.
func (t *Taxonomy) Version() string {
	return t.doc.Version
}

// Nodes returns all nodes in document order.
func (t *Taxonomy) Nodes() []Node {
	return slices.Clone(t.doc.Nodes)
}

// Canonical resolves legacy aliases to the current code. Unknown codes are
// returned unchanged.
func (t *Taxonomy) Canonical(code string) string {
	c, err := t.resolve(code)
	if err != nil {
		return code
	}
	return c
}

func (t *Taxonomy) resolve(code string) (string, error) {
	current := code
	for range maxAliasDepth {
		if _, ok := t.byCode[current]; ok {
			return current, nil
		}
		next, ok := t.doc.Aliases[current]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownCode, code)
		}
		current = next
	}
	return "", fmt.Errorf("%w: alias cycle at %s", ErrUnknownCode, code)
}

// Node returns the node for code, following aliases.
func (t *Taxonomy) Node(code string) (Node, bool) {
	c, err := t.resolve(code)
	if err != nil {
		return Node{}, false
	}
	return t.doc.Nodes[t.byCode[c]], true
}

// Path returns the L1/L2/L3 codes leading to code.
func (t *Taxonomy) Path(code string) (Codes, error) {
	n, ok := t.Node(code)
	if !ok {
		return Codes{}, fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}

	var codes Codes
	for {
		switch n.Level {
		case 1:
			codes.L1 = n.Code
		case 2:
			codes.L2 = n.Code
		case 3:
			codes.L3 = n.Code
		}
		if n.Level == 1 {
			return codes, nil
		}
		n = t.doc.Nodes[t.byCode[n.Parent]]
	}
}

// Level returns the level of code, or 0 when unknown.
func (t *Taxonomy) Level(code string) int {
	n, ok := t.Node(code)
	if !ok {
		return 0
	}
	return n.Level
}

// SegmentKeywords returns the keyword dictionary with canonical codes.
func (t *Taxonomy) SegmentKeywords() map[string]string {
	out := make(map[string]string, len(t.doc.SegmentKeywords))
	for k, code := range t.doc.SegmentKeywords {
		out[k] = t.Canonical(code)
	}
	return out
}

// Synonyms returns the label variant to canonical term map.
func (t *Taxonomy) Synonyms() map[string]string {
	out := make(map[string]string, len(t.doc.Synonyms))
	for k, v := range t.doc.Synonyms {
		out[k] = v
	}
	return out
}

// NeutralKeywords returns descriptors of holding-type revenue.
func (t *Taxonomy) NeutralKeywords() []string {
	return slices.Clone(t.doc.NeutralKeywords)
}

// IndustryCode maps a raw external industry code to a coarse taxonomy code by
// longest matching prefix.
func (t *Taxonomy) IndustryCode(raw string) (string, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}

	best := ""
	for prefix := range t.doc.IndustryCodes {
		p := strings.ToUpper(prefix)
		if strings.HasPrefix(raw, p) && len(p) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", false
	}
	return t.Canonical(t.doc.IndustryCodes[best]), true
}

// EntitySector returns the sector code assigned to a structural entity type.
func (t *Taxonomy) EntitySector(entityType string) (string, bool) {
	code, ok := t.doc.EntitySectors[entityType]
	if !ok {
		return "", false
	}
	return t.Canonical(code), true
}
