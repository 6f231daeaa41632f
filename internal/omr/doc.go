// Package omr scores optical-mark answer zones that have already been cropped
// out of a registered answer sheet.
//
// A zone is a rectangle split into a fixed number of equal option bands laid
// out along one axis. Scoring binarizes the zone so ink is foreground, measures
// every band and picks the strongest one, unless even the strongest band falls
// below a significance floor, in which case the zone is reported as unmarked.
//
// # Scoring Modes
//
// Two band measures are supported:
//
//   - ModeArea: area enclosed by the outer boundary of the largest connected
//     ink blob in the band. Suited to filled bubbles, where a single solid mark
//     should win over scattered specks.
//   - ModeBlackness: total number of ink pixels in the band. Suited to
//     true/false boxes where marks are crosses, ticks or scribbles.
//
// Compare applies the same scoring to a student crop and an answer-key crop and
// chooses the mode from the option count: more than two options uses
// ModeArea, exactly two uses ModeBlackness.
//
// # Thread Safety
//
// Scorer is a plain value with no mutable state. Score and Compare never write
// to the images they receive and can be called from any number of goroutines.
package omr
