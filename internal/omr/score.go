package omr

import (
	"fmt"
	"image"
)

// Scorer holds the tunable parameters of zone scoring.
//
// The defaults were tuned by hand on scanned and photographed sheets and
// should be re-validated against a new corpus before being trusted.
type Scorer struct {
	// MinSignificance is the fraction of the expected band area (zone area
	// divided by the option count) that the winning band must reach.
	MinSignificance float64 `json:"min_significance" yaml:"min_significance"`

	// FixedThreshold is the grayscale level used when Otsu cannot be computed.
	FixedThreshold uint8 `json:"fixed_threshold" yaml:"fixed_threshold"`

	// BlurRadius is the Gaussian blur radius applied before thresholding.
	// Zero disables the blur.
	BlurRadius float64 `json:"blur_radius" yaml:"blur_radius"`
}

// DefaultScorer returns the scorer used when nothing is configured.
func DefaultScorer() Scorer {
	return Scorer{
		MinSignificance: 0.02,
		FixedThreshold:  127,
		BlurRadius:      2,
	}
}

// Result is the outcome of scoring one zone.
type Result struct {
	// Selected is the zero-based winning band, or NoSelection.
	Selected int `json:"selected"`

	// Scores holds the raw score of every band in order.
	Scores []float64 `json:"scores"`
}

// Marked reports whether a band was selected.
func (r Result) Marked() bool {
	return r.Selected != NoSelection
}

// Score determines which option band of a zone crop is marked.
//
// Parameters:
//   - zone: the zone crop in template coordinates. It is never modified.
//   - options: number of equal bands, at least 2.
//   - orientation: axis along which the zone is split.
//   - mode: band measure, see ModeArea and ModeBlackness.
//
// A nil or empty crop is a blank zone and yields NoSelection without error.
// The only error is ErrInvalidOptions.
func (s Scorer) Score(zone image.Image, options int, orientation Orientation, mode Mode) (Result, error) {
	if options < 2 {
		return Result{Selected: NoSelection}, fmt.Errorf("score zone: %w: %d", ErrInvalidOptions, options)
	}
	if zone == nil || zone.Bounds().Empty() {
		return Result{Selected: NoSelection}, nil
	}

	mask := s.binarize(zone)
	bands := Bands(image.Rect(0, 0, mask.width, mask.height), options, orientation)

	scores := make([]float64, len(bands))
	for i, band := range bands {
		switch mode {
		case ModeBlackness:
			scores[i] = float64(mask.count(band))
		default:
			scores[i] = float64(largestBlobArea(mask, band))
		}
	}

	selected := 0
	for i, score := range scores {
		if score > scores[selected] {
			selected = i
		}
	}

	expected := float64(mask.width*mask.height) / float64(options)
	if scores[selected] < expected*s.MinSignificance {
		selected = NoSelection
	}

	return Result{Selected: selected, Scores: scores}, nil
}

// Bands splits r into options equal bands along the orientation axis.
// The last band absorbs the rounding remainder so the bands tile r exactly.
func Bands(r image.Rectangle, options int, orientation Orientation) []image.Rectangle {
	if options < 1 {
		return nil
	}
	bands := make([]image.Rectangle, options)

	if orientation == Horizontal {
		step := r.Dx() / options
		for i := range bands {
			x0 := r.Min.X + i*step
			x1 := x0 + step
			if i == options-1 {
				x1 = r.Max.X
			}
			bands[i] = image.Rect(x0, r.Min.Y, x1, r.Max.Y)
		}
		return bands
	}

	step := r.Dy() / options
	for i := range bands {
		y0 := r.Min.Y + i*step
		y1 := y0 + step
		if i == options-1 {
			y1 = r.Max.Y
		}
		bands[i] = image.Rect(r.Min.X, y0, r.Max.X, y1)
	}
	return bands
}
