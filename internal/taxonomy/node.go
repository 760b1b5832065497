// Package taxonomy holds versioned sector taxonomy reference data: the
// L1/L2/L3 node hierarchy plus the dictionaries the classification stages
// consult (segment keywords, synonyms, neutral descriptors, legacy aliases,
// external industry codes and entity-type sectors).
package taxonomy

import "strings"

// Node is one taxonomy code with the texts used to match companies against it.
type Node struct {
	Code      string   `yaml:"code" validate:"required"`
	Level     int      `yaml:"level" validate:"min=1,max=3"`
	Parent    string   `yaml:"parent" validate:"required_unless=Level 1"`
	Label     string   `yaml:"label" validate:"required"`
	Reference string   `yaml:"reference"`
	Detail    string   `yaml:"detail"`
	Keywords  []string `yaml:"keywords"`
}

// ReferenceText is the short exemplar embedded for candidate retrieval.
func (n Node) ReferenceText() string {
	if n.Reference != "" {
		return n.Reference
	}
	parts := append([]string{n.Label}, n.Keywords...)
	return strings.Join(parts, " ")
}

// DetailText is the long-context description used by the reranker.
func (n Node) DetailText() string {
	if n.Detail == "" {
		return n.ReferenceText()
	}
	return n.Label + "\n" + n.Detail
}

// Codes is a node's position in the hierarchy. Levels below the node's own
// level are empty.
type Codes struct {
	L1 string `json:"l1"`
	L2 string `json:"l2,omitempty"`
	L3 string `json:"l3,omitempty"`
}

// Deepest returns the most specific code set.
func (c Codes) Deepest() string {
	switch {
	case c.L3 != "":
		return c.L3
	case c.L2 != "":
		return c.L2
	default:
		return c.L1
	}
}
