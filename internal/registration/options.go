package registration

// Options controls a single alignment attempt.
//
// The defaults were chosen empirically on photographed A4 answer sheets.
type Options struct {
	// MaxWorkingDim caps the longer image side used for feature detection.
	MaxWorkingDim int `json:"max_working_dim" yaml:"max_working_dim"`

	// MinMatchCount is the minimum number of keypoints per image and of
	// ratio-test survivors.
	MinMatchCount int `json:"min_match_count" yaml:"min_match_count"`

	// RatioTest is the Lowe ratio for float descriptors (SIFT).
	RatioTest float64 `json:"ratio_test" yaml:"ratio_test"`

	// BinaryRatioTest is the Lowe ratio for binary descriptors (ORB, AKAZE).
	BinaryRatioTest float64 `json:"binary_ratio_test" yaml:"binary_ratio_test"`

	// ReprojThreshold is the robust estimator inlier distance in full
	// resolution pixels. Kept loose for lens distortion and paper warp.
	ReprojThreshold float64 `json:"reproj_threshold" yaml:"reproj_threshold"`

	// MaxFeatures caps SIFT and ORB keypoints per image. AKAZE has no cap.
	MaxFeatures int `json:"max_features" yaml:"max_features"`

	// CLAHEClipLimit and CLAHETileGrid configure contrast equalization.
	CLAHEClipLimit float64 `json:"clahe_clip_limit" yaml:"clahe_clip_limit"`
	CLAHETileGrid  int     `json:"clahe_tile_grid" yaml:"clahe_tile_grid"`

	Validation ValidationLimits `json:"validation" yaml:"validation"`
}

// ValidationLimits are the geometric sanity bands applied to every homography.
type ValidationLimits struct {
	// RelativeScaleMin/Max bound det(H[:2,:2]) as a multiple of the expected
	// area scale (template area / candidate area).
	RelativeScaleMin float64 `json:"relative_scale_min" yaml:"relative_scale_min"`
	RelativeScaleMax float64 `json:"relative_scale_max" yaml:"relative_scale_max"`

	// AbsoluteScaleMin/Max accept a determinant outside the relative band.
	AbsoluteScaleMin float64 `json:"absolute_scale_min" yaml:"absolute_scale_min"`
	AbsoluteScaleMax float64 `json:"absolute_scale_max" yaml:"absolute_scale_max"`

	// AreaRatioMin/Max bound the back-projected template outline as a
	// multiple of the candidate image area.
	AreaRatioMin float64 `json:"area_ratio_min" yaml:"area_ratio_min"`
	AreaRatioMax float64 `json:"area_ratio_max" yaml:"area_ratio_max"`
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		MaxWorkingDim:   2000,
		MinMatchCount:   10,
		RatioTest:       0.80,
		BinaryRatioTest: 0.75,
		ReprojThreshold: 10.0,
		MaxFeatures:     5000,
		CLAHEClipLimit:  2.0,
		CLAHETileGrid:   8,
		Validation:      DefaultValidationLimits(),
	}
}

// DefaultValidationLimits returns the tuned validation bands.
func DefaultValidationLimits() ValidationLimits {
	return ValidationLimits{
		RelativeScaleMin: 0.2,
		RelativeScaleMax: 5.0,
		AbsoluteScaleMin: 0.1,
		AbsoluteScaleMax: 30.0,
		AreaRatioMin:     0.2,
		AreaRatioMax:     4.0,
	}
}
