package omr

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
)

// inkMask is a binarized zone. Pixel (x, y) is ink when ink[y*width+x] is set.
// Coordinates are relative to the zone's top-left corner.
type inkMask struct {
	width  int
	height int
	ink    []bool
}

func (m *inkMask) at(x, y int) bool {
	return m.ink[y*m.width+x]
}

// count returns the number of ink pixels inside r.
func (m *inkMask) count(r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.ink[y*m.width : (y+1)*m.width]
		for x := r.Min.X; x < r.Max.X; x++ {
			if row[x] {
				n++
			}
		}
	}
	return n
}

// binarize converts a zone crop into an ink mask.
//
// The crop is converted to grayscale and lightly blurred, then split with an
// Otsu threshold: every level at or below the threshold is ink, everything
// above it is paper. When the blurred histogram has fewer than two populated
// levels Otsu has nothing to separate and the unblurred grayscale image is
// split at the fixed fallback threshold instead.
//
// The source image is cloned first, so the caller's image is never touched and
// every intermediate image starts at (0, 0).
func (s Scorer) binarize(img image.Image) *inkMask {
	src := imaging.Clone(img)
	gray := effect.Grayscale(src)

	// imaging.Blur rounds to the nearest level, so a uniform field keeps its
	// exact gray value.
	var source image.Image = gray
	if s.BlurRadius > 0 {
		source = imaging.Blur(gray, s.BlurRadius)
	}

	threshold, ok := otsuThreshold(histogram.NewRGBAHistogram(source).R.Bins)
	if !ok {
		source = gray
		threshold = s.FixedThreshold
	}

	bounds := source.Bounds()
	mask := &inkMask{
		width:  bounds.Dx(),
		height: bounds.Dy(),
		ink:    make([]bool, bounds.Dx()*bounds.Dy()),
	}
	for y := 0; y < mask.height; y++ {
		for x := 0; x < mask.width; x++ {
			mask.ink[y*mask.width+x] = grayAt(source, bounds.Min.X+x, bounds.Min.Y+y) <= threshold
		}
	}
	return mask
}

// grayAt returns the level of a grayscale image stored as RGBA or NRGBA.
func grayAt(img image.Image, x, y int) uint8 {
	switch g := img.(type) {
	case *image.RGBA:
		return g.Pix[g.PixOffset(x, y)]
	case *image.NRGBA:
		return g.Pix[g.PixOffset(x, y)]
	default:
		r, _, _, _ := img.At(x, y).RGBA()
		return uint8(r >> 8)
	}
}

// otsuThreshold picks the level that maximises between-class variance of a
// 256-bin histogram. Values at or below the returned level form the dark
// class. It reports false when fewer than two levels are populated.
func otsuThreshold(bins []int) (uint8, bool) {
	var total, levels int
	var sum float64
	for i, c := range bins {
		if c == 0 {
			continue
		}
		total += c
		levels++
		sum += float64(i) * float64(c)
	}
	if total == 0 || levels < 2 {
		return 0, false
	}

	var (
		sumDark    float64
		weightDark int
		best       = -1.0
		threshold  int
	)
	for i, c := range bins {
		weightDark += c
		if weightDark == 0 {
			continue
		}
		weightLight := total - weightDark
		if weightLight == 0 {
			break
		}
		sumDark += float64(i) * float64(c)

		meanDark := sumDark / float64(weightDark)
		meanLight := (sum - sumDark) / float64(weightLight)
		diff := meanDark - meanLight
		between := float64(weightDark) * float64(weightLight) * diff * diff
		if between > best {
			best = between
			threshold = i
		}
	}
	return uint8(threshold), true
}
