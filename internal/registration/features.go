package registration

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// homographyMethodMAGSAC is cv::USAC_MAGSAC, which gocv does not name.
const homographyMethodMAGSAC gocv.HomographyMethod = 38

const (
	homographyMaxIters   = 2000
	homographyConfidence = 0.995
)

// workingImage is an image prepared for feature detection.
type workingImage struct {
	// gray is the CLAHE-equalized grayscale image at working resolution.
	gray gocv.Mat
	// scale is working size / full size.
	scale float64
	// size is the full-resolution size.
	size image.Point
}

func (w *workingImage) close() {
	_ = w.gray.Close()
}

// features are the keypoints and descriptors of one working image.
type features struct {
	keypoints   []gocv.KeyPoint
	descriptors gocv.Mat
}

func (f *features) close() {
	_ = f.descriptors.Close()
}

// usable reports whether there are enough keypoints and a descriptor matrix.
func (f *features) usable(min int) bool {
	return !f.descriptors.Empty() && len(f.keypoints) >= min
}

// prepare downscales img so its longer side fits MaxWorkingDim, converts it to
// grayscale and equalizes it with CLAHE. img is not modified.
func (e *Engine) prepare(img image.Image) (*workingImage, error) {
	size := img.Bounds().Size()
	scale := 1.0
	work := img

	if longest := max(size.X, size.Y); e.opts.MaxWorkingDim > 0 && longest > e.opts.MaxWorkingDim {
		scale = float64(e.opts.MaxWorkingDim) / float64(longest)
		w := max(1, int(float64(size.X)*scale))
		h := max(1, int(float64(size.Y)*scale))
		work = imaging.Resize(img, w, h, imaging.Box)
	}

	mat, err := gocv.ImageGrayToMatGray(toGray(work))
	if err != nil {
		return nil, fmt.Errorf("convert to gray mat: %w", err)
	}
	defer mat.Close()

	tile := max(1, e.opts.CLAHETileGrid)
	clahe := gocv.NewCLAHEWithParams(e.opts.CLAHEClipLimit, image.Pt(tile, tile))
	defer clahe.Close()

	equalized := gocv.NewMat()
	if err := clahe.Apply(mat, &equalized); err != nil {
		_ = equalized.Close()
		return nil, fmt.Errorf("equalize: %w", err)
	}

	return &workingImage{gray: equalized, scale: scale, size: size}, nil
}

// toGray converts img to a tightly packed *image.Gray with its origin at
// (0, 0), the layout gocv copies directly into a CV_8UC1 Mat.
func toGray(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	b := rgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for x := range dst {
			// effect.Grayscale writes the same level to R, G and B.
			dst[x] = row[x*4]
		}
	}
	return gray
}

// keypointDetector is satisfied by the gocv SIFT, ORB and AKAZE types.
type keypointDetector interface {
	DetectAndCompute(src gocv.Mat, mask gocv.Mat) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

func (e *Engine) newDetector(d Detector) keypointDetector {
	switch d {
	case ORB:
		orb := gocv.NewORBWithParams(e.opts.MaxFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
		return &orb
	case AKAZE:
		akaze := gocv.NewAKAZE()
		return &akaze
	default:
		n := e.opts.MaxFeatures
		sift := gocv.NewSIFTWithParams(&n, nil, nil, nil, nil)
		return &sift
	}
}

// detect finds keypoints and descriptors on a prepared image.
func (e *Engine) detect(d Detector, img *workingImage) *features {
	detector := e.newDetector(d)
	defer detector.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, descriptors := detector.DetectAndCompute(img.gray, mask)
	return &features{keypoints: keypoints, descriptors: descriptors}
}

// descriptorMatcher is satisfied by gocv.FlannBasedMatcher and gocv.BFMatcher.
type descriptorMatcher interface {
	KnnMatch(query, train gocv.Mat, k int) [][]gocv.DMatch
	Close() error
}

func newMatcher(d Detector) descriptorMatcher {
	if d.binary() {
		bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
		return &bf
	}
	flann := gocv.NewFlannBasedMatcher()
	return &flann
}

// match returns the template-to-candidate matches that pass the ratio test.
func (e *Engine) match(d Detector, template, candidate *features) []gocv.DMatch {
	matcher := newMatcher(d)
	defer matcher.Close()

	ratio := e.opts.RatioTest
	if d.binary() {
		ratio = e.opts.BinaryRatioTest
	}

	var good []gocv.DMatch
	for _, pair := range matcher.KnnMatch(template.descriptors, candidate.descriptors, 2) {
		if len(pair) != 2 {
			continue
		}
		if pair[0].Distance < ratio*pair[1].Distance {
			good = append(good, pair[0])
		}
	}
	return good
}

// findHomography fits the candidate-to-template homography over the matched
// points, rescaled to full resolution. It tries MAGSAC first and falls back to
// RANSAC. The returned matrix is empty when neither finds a model; the caller
// owns it either way.
func (e *Engine) findHomography(matches []gocv.DMatch, template, candidate *features, templateScale, candidateScale float64) (gocv.Mat, int) {
	src := make([]gocv.Point2f, len(matches))
	dst := make([]gocv.Point2f, len(matches))
	for i, m := range matches {
		c := candidate.keypoints[m.TrainIdx]
		t := template.keypoints[m.QueryIdx]
		src[i] = gocv.Point2f{X: float32(c.X / candidateScale), Y: float32(c.Y / candidateScale)}
		dst[i] = gocv.Point2f{X: float32(t.X / templateScale), Y: float32(t.Y / templateScale)}
	}

	srcVec := gocv.NewPoint2fVectorFromPoints(src)
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(dst)
	defer dstVec.Close()

	srcMat := gocv.NewMatFromPoint2fVector(srcVec, true)
	defer srcMat.Close()
	dstMat := gocv.NewMatFromPoint2fVector(dstVec, true)
	defer dstMat.Close()

	for _, method := range []gocv.HomographyMethod{homographyMethodMAGSAC, gocv.HomographyMethodRANSAC} {
		mask := gocv.NewMat()
		h := gocv.FindHomography(srcMat, dstMat, method, e.opts.ReprojThreshold, &mask, homographyMaxIters, homographyConfidence)
		inliers := 0
		if !mask.Empty() {
			inliers = gocv.CountNonZero(mask)
		}
		_ = mask.Close()

		if !h.Empty() {
			return h, inliers
		}
		_ = h.Close()
	}
	return gocv.NewMat(), 0
}

// toHomography copies a 3x3 CV_64F matrix.
func toHomography(m gocv.Mat) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r][c] = m.GetDoubleAt(r, c)
		}
	}
	return h
}

// warp applies the homography to the full-resolution candidate, producing an
// image of the template's size.
func warp(candidate image.Image, h gocv.Mat, size image.Point) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(candidate)
	if err != nil {
		return nil, fmt.Errorf("convert candidate to mat: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	if err := gocv.WarpPerspective(src, &dst, h, size); err != nil {
		return nil, fmt.Errorf("warp perspective: %w", err)
	}

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert warped mat: %w", err)
	}
	return out, nil
}
