package registration

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Rotation is a quarter-turn applied to the candidate before matching.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90CW
	Rotate90CCW
	Rotate180
)

func (r Rotation) String() string {
	switch r {
	case Rotate90CW:
		return "90"
	case Rotate90CCW:
		return "-90"
	case Rotate180:
		return "180"
	default:
		return "0"
	}
}

// apply returns a rotated copy of img. Rotate0 returns img itself.
func (r Rotation) apply(img image.Image) image.Image {
	switch r {
	case Rotate90CW:
		// imaging rotates counter-clockwise
		return imaging.Rotate270(img)
	case Rotate90CCW:
		return imaging.Rotate90(img)
	case Rotate180:
		return imaging.Rotate180(img)
	default:
		return img
	}
}

// Detector is a keypoint detector and descriptor extractor.
type Detector int

const (
	// SIFT produces float descriptors; matched with FLANN.
	SIFT Detector = iota
	// ORB produces binary descriptors; matched with Hamming distance.
	ORB
	// AKAZE produces binary descriptors; matched with Hamming distance.
	AKAZE
)

func (d Detector) String() string {
	switch d {
	case ORB:
		return "ORB"
	case AKAZE:
		return "AKAZE"
	default:
		return "SIFT"
	}
}

// binary reports whether the detector emits binary descriptors.
func (d Detector) binary() bool {
	return d == ORB || d == AKAZE
}

// Strategy is one (rotation, detector) combination of the search.
type Strategy struct {
	Rotation Rotation `json:"rotation"`
	Detector Detector `json:"detector"`
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s@%s", s.Detector, s.Rotation)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DefaultStrategies returns the search order: SIFT over all four rotations,
// upright first, then the binary detectors upright only.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Rotation: Rotate0, Detector: SIFT},
		{Rotation: Rotate90CW, Detector: SIFT},
		{Rotation: Rotate90CCW, Detector: SIFT},
		{Rotation: Rotate180, Detector: SIFT},
		{Rotation: Rotate0, Detector: ORB},
		{Rotation: Rotate0, Detector: AKAZE},
	}
}
