// Package sheet grades whole answer sheet pages.
//
// A Grader runs the page pipeline: align the student page to the template,
// align the answer-key page when it is not already in template geometry, crop
// every zone from both, then score and compare the zones concurrently.
//
// A page that cannot be aligned is reported, not graded: its PageReport has
// Aligned set to false and no zone results. Zones whose kind carries free
// text (classic, matching, student info) are reported as skipped; they are
// graded by other services.
//
// Grader methods take a context. Cancellation stops zone and page fan-out and
// is the only error a well-formed request can produce; everything else is
// reported inside the PageReport.
package sheet
