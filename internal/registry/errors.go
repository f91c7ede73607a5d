package registry

import (
	"errors"
	"fmt"
)

// Request errors, mapped to HTTP status codes by the web handlers.
var (
	ErrValidation = errors.New("validation failed")

	ErrNameAndImageRequired = fmt.Errorf("%w: name and image are required", ErrValidation)
	ErrImageRequired        = fmt.Errorf("%w: image is required", ErrValidation)
	ErrUnknownModel         = fmt.Errorf("%w: unknown model", ErrValidation)

	ErrInvalidImage      = errors.New("invalid image format")
	ErrDuplicateName     = errors.New("name already registered")
	ErrNoRegisteredFaces = errors.New("no registered faces found")
	ErrNotFound          = errors.New("face not found")
	// ErrIncomparable marks a registered embedding whose dimension differs
	// from the rest of the store, so no neighbours can be computed for it.
	ErrIncomparable = errors.New("face embedding dimension differs from the registered faces")
)

// ErrComparisonFailed marks a failed comparison against one candidate.
// Recognition skips such candidates instead of aborting.
var ErrComparisonFailed = errors.New("comparison failed")
