package taxonomy

import "errors"

var (
	// ErrInvalidTaxonomy indicates the reference document failed validation.
	ErrInvalidTaxonomy = errors.New("invalid taxonomy")
	// ErrUnknownCode indicates a code that is neither a node nor an alias.
	ErrUnknownCode = errors.New("unknown taxonomy code")
	// ErrNotFound indicates no taxonomy document exists for the version.
	ErrNotFound = errors.New("taxonomy version not found")
)
