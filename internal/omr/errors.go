package omr

import "errors"

// ErrInvalidOptions is returned when a zone is scored with fewer than two options.
var ErrInvalidOptions = errors.New("option count must be at least 2")
