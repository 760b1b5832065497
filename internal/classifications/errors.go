package classifications

import "errors"

// Domain errors for classification results.
var (
	ErrNotFound      = errors.New("classification not found")
	ErrDuplicate     = errors.New("classification already exists")
	ErrInvalidResult = errors.New("invalid classification result")
)
