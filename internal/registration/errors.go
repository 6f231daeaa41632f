package registration

import "errors"

// Attempt-level failures. They are recorded on the Attempt and absorbed by
// the search; only ErrAlignmentFailed reaches the caller.
var (
	ErrInsufficientFeatures  = errors.New("insufficient features")
	ErrInsufficientMatches   = errors.New("insufficient matches")
	ErrHomographyUnavailable = errors.New("homography unavailable")
	ErrHomographyInvalid     = errors.New("homography invalid")
)

// ErrAlignmentFailed is returned by Register when every strategy failed.
var ErrAlignmentFailed = errors.New("alignment failed")
