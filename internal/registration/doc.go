// Package registration aligns a photographed or scanned answer sheet to the
// blank template it was printed from.
//
// # Search Order
//
// Phone photos often arrive sideways or upside down, and no single feature
// detector copes with every paper, ink and lighting combination. Register
// therefore walks an ordered list of strategies and returns the first one
// that produces a valid homography:
//
//  1. SIFT at 0°, 90° clockwise, 90° counter-clockwise and 180°
//  2. ORB at 0°
//  3. AKAZE at 0°
//
// Each strategy runs in its own failure boundary. Missing features, too few
// matches, no homography or a homography that fails validation only end that
// strategy. When every strategy has failed, Register returns an error wrapping
// ErrAlignmentFailed and no image: a page that cannot be aligned must not be
// scored.
//
// # Single Attempt
//
// One attempt downscales both images to MaxWorkingDim, converts to grayscale,
// equalizes with CLAHE, detects keypoints and descriptors, matches them with
// k=2 (FLANN for SIFT, brute-force Hamming for binary descriptors), keeps the
// matches that pass the ratio test, rescales them to full resolution and fits
// a candidate-to-template homography with MAGSAC (RANSAC as fallback).
//
// # Validation
//
// ValidateHomography rejects transforms whose area scale is implausible, that
// cannot be inverted, that fold the template outline into a non-convex quad
// or whose projected outline is far smaller or larger than the candidate.
// All limits are configurable through ValidationLimits.
//
// # Thread Safety
//
// An Engine holds only immutable options and a logger. Every OpenCV matrix,
// detector and matcher is created and released inside a single call, and the
// input images are never written to, so Register may be called concurrently,
// including with the same template.
package registration
