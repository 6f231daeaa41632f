package sheet

import "errors"

// ErrInvalidRequest is returned for a request without a template or student page.
var ErrInvalidRequest = errors.New("invalid page request")
