// Package imaging provides the page-level image plumbing around the grading
// engines: loading and caching pages, cropping zones out of registered pages,
// PNG encoding for transport, and diagnostic overlays.
//
// # Coordinate System
//
// All pixel coordinates are 0-based and relative to the image origin, with
// X increasing rightward and Y increasing downward. Rectangles are
// half-open: Min is inclusive, Max is exclusive. Zone rectangles are given in
// template coordinates, which a registered page shares by construction.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Every other function allocates its
// output and never writes to its input, so pages held in the cache can be
// shared across goroutines.
//
// # Overlays
//
// GridOverlay helps author zone geometry on a blank template. Annotate draws
// graded zones on a registered page: outlines in an outcome colour, the
// student's selection shaded and the key's answer outlined when they differ.
package imaging
