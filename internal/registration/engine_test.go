package registration

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// createTestSheet draws a deterministic, feature-rich answer sheet: random
// gray blocks and rings with rows of text between them.
func createTestSheet(width, height int, seed int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 90; i++ {
		w, h := 8+rng.Intn(50), 8+rng.Intn(50)
		x, y := rng.Intn(width-w), rng.Intn(height-h)
		c := color.Gray{Y: uint8(rng.Intn(170))}
		draw.Draw(img, image.Rect(x, y, x+w, y+h), image.NewUniform(c), image.Point{}, draw.Src)
	}
	for i := 0; i < 40; i++ {
		drawRing(img, rng.Intn(width), rng.Intn(height), 6+rng.Intn(14), color.Black)
	}

	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	for row := 0; row*40+30 < height; row++ {
		d.Dot = fixed.P(10+rng.Intn(40), row*40+30)
		d.DrawString(fmt.Sprintf("Q%02d  A  B  C  D  E  %x", row+1, rng.Int63()))
	}
	return img
}

func drawRing(img *image.RGBA, cx, cy, r int, c color.Color) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			d := math.Hypot(float64(x-cx), float64(y-cy))
			if d <= float64(r) && d >= float64(r)-2.5 {
				img.Set(x, y, c)
			}
		}
	}
}

// meanAbsDiff returns the mean absolute gray difference over the interior of
// two same-sized images, ignoring a margin where warping fills in background.
func meanAbsDiff(t *testing.T, a, b image.Image, margin int) float64 {
	t.Helper()
	require.Equal(t, a.Bounds().Size(), b.Bounds().Size())

	ab, bb := a.Bounds(), b.Bounds()
	var sum float64
	var n int
	for y := margin; y < ab.Dy()-margin; y++ {
		for x := margin; x < ab.Dx()-margin; x++ {
			ga := color.GrayModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y)).(color.Gray).Y
			gb := color.GrayModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y)).(color.Gray).Y
			sum += math.Abs(float64(ga) - float64(gb))
			n++
		}
	}
	return sum / float64(n)
}

func TestRegister_IdenticalCopy(t *testing.T) {
	template := createTestSheet(600, 800, 1)
	candidate := imaging.Clone(template)

	result, err := New(DefaultOptions(), nil).Register(template, candidate)
	require.NoError(t, err)

	assert.Equal(t, template.Bounds().Size(), result.Image.Bounds().Size())
	assert.Equal(t, "SIFT@0", result.Strategy.String())
	assert.Len(t, result.Attempts, 1)

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			delta := 0.01
			if c == 2 && r < 2 {
				// translation, in pixels
				delta = 1.0
			}
			assert.InDelta(t, Identity()[r][c], result.Homography[r][c], delta, "H[%d][%d]", r, c)
		}
	}
	assert.Less(t, meanAbsDiff(t, template, result.Image, 10), 4.0)
}

func TestRegister_Rotations(t *testing.T) {
	template := createTestSheet(600, 800, 2)

	tests := []struct {
		name   string
		rotate func(image.Image) *image.NRGBA
	}{
		{"90 clockwise", imaging.Rotate270},
		{"90 counter-clockwise", imaging.Rotate90},
		{"180", imaging.Rotate180},
	}

	engine := New(DefaultOptions(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := tt.rotate(template)

			result, err := engine.Register(template, candidate)
			require.NoError(t, err)

			assert.Equal(t, template.Bounds().Size(), result.Image.Bounds().Size())
			assert.Less(t, meanAbsDiff(t, template, result.Image, 20), 12.0)
		})
	}
}

func TestRegister_ScaledAndShifted(t *testing.T) {
	template := createTestSheet(600, 800, 3)

	// the candidate is a larger photo of the sheet on a white desk
	photo := image.NewRGBA(image.Rect(0, 0, 1000, 1200))
	draw.Draw(photo, photo.Bounds(), image.White, image.Point{}, draw.Src)
	enlarged := imaging.Resize(template, 780, 1040, imaging.Linear)
	draw.Draw(photo, enlarged.Bounds().Add(image.Pt(90, 70)), enlarged, image.Point{}, draw.Src)

	result, err := New(DefaultOptions(), nil).Register(template, photo)
	require.NoError(t, err)

	assert.Equal(t, template.Bounds().Size(), result.Image.Bounds().Size())
	assert.Less(t, meanAbsDiff(t, template, result.Image, 20), 12.0)
}

func TestRegister_BlankCandidate(t *testing.T) {
	template := createTestSheet(400, 500, 4)
	blank := image.NewRGBA(image.Rect(0, 0, 400, 500))
	draw.Draw(blank, blank.Bounds(), image.White, image.Point{}, draw.Src)

	result, err := New(DefaultOptions(), nil).Register(template, blank)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrAlignmentFailed)
	assert.ErrorIs(t, err, ErrInsufficientFeatures)

	attempts := AttemptErrors(err)
	require.Len(t, attempts, len(DefaultStrategies()))
	for i, a := range attempts {
		assert.Equal(t, DefaultStrategies()[i], a.Strategy)
		assert.Error(t, a.Err)
		assert.Nil(t, a.Homography)
	}
}

func TestRegister_EmptyInputs(t *testing.T) {
	engine := New(DefaultOptions(), nil)
	sheet := createTestSheet(200, 200, 5)

	_, err := engine.Register(nil, sheet)
	assert.ErrorIs(t, err, ErrAlignmentFailed)

	_, err = engine.Register(sheet, image.NewRGBA(image.Rectangle{}))
	assert.ErrorIs(t, err, ErrAlignmentFailed)
}

func TestRegister_InputsNotModified(t *testing.T) {
	template := createTestSheet(400, 500, 6)
	candidate := imaging.Rotate180(template)

	templateBefore := append([]uint8(nil), template.Pix...)
	candidateBefore := append([]uint8(nil), candidate.Pix...)

	_, err := New(DefaultOptions(), nil).Register(template, candidate)
	require.NoError(t, err)

	assert.Equal(t, templateBefore, template.Pix)
	assert.Equal(t, candidateBefore, candidate.Pix)
}

func TestRegister_CustomStrategies(t *testing.T) {
	template := createTestSheet(500, 600, 7)
	candidate := imaging.Clone(template)

	engine := New(DefaultOptions(), nil).WithStrategies([]Strategy{{Rotation: Rotate0, Detector: ORB}})

	result, err := engine.Register(template, candidate)
	require.NoError(t, err)
	assert.Equal(t, "ORB@0", result.Strategy.String())
	assert.Less(t, meanAbsDiff(t, template, result.Image, 10), 6.0)
}

func TestRegister_ConcurrentMatchesSequential(t *testing.T) {
	engine := New(DefaultOptions(), nil)

	type pair struct{ template, candidate image.Image }
	pairs := make([]pair, 4)
	for i := range pairs {
		tmpl := createTestSheet(400, 520, int64(10+i))
		pairs[i] = pair{tmpl, imaging.Rotate180(tmpl)}
	}

	sequential := make([]*Result, len(pairs))
	for i, p := range pairs {
		r, err := engine.Register(p.template, p.candidate)
		require.NoError(t, err)
		sequential[i] = r
	}

	concurrent := make([]*Result, len(pairs))
	errs := make([]error, len(pairs))
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, p pair) {
			defer wg.Done()
			concurrent[i], errs[i] = engine.Register(p.template, p.candidate)
		}(i, p)
	}
	wg.Wait()

	for i := range pairs {
		require.NoError(t, errs[i])
		assert.Equal(t, sequential[i].Strategy, concurrent[i].Strategy)

		size := pairs[i].candidate.Bounds().Size()
		for _, c := range Corners(size) {
			sx, sy, _ := sequential[i].Homography.Apply(c.X, c.Y)
			cx, cy, _ := concurrent[i].Homography.Apply(c.X, c.Y)
			assert.InDelta(t, sx, cx, 1.0)
			assert.InDelta(t, sy, cy, 1.0)
		}
	}
}

func TestTry_TemplateDetectionPanicBecomesAttemptError(t *testing.T) {
	e := New(DefaultOptions(), nil)
	cache := newFeatureCache(&workingImage{}, func(Detector, *workingImage) *features {
		panic("detector exploded")
	})

	s := Strategy{Detector: SIFT, Rotation: Rotate0}
	var rec Attempt
	var out image.Image
	require.NotPanics(t, func() {
		rec, out = e.try(&workingImage{}, cache, createTestSheet(200, 200, 1), s)
	})

	assert.Nil(t, out)
	require.Error(t, rec.Err)
	assert.Contains(t, rec.Err.Error(), "detector exploded")
	assert.Equal(t, s, rec.Strategy)
	assert.Empty(t, cache.byDetector, "failed detection must not be cached")
}

func TestFeatureCache_DetectsOncePerDetector(t *testing.T) {
	calls := map[Detector]int{}
	cache := newFeatureCache(&workingImage{}, func(d Detector, _ *workingImage) *features {
		calls[d]++
		return &features{}
	})

	first := cache.get(ORB)
	assert.Same(t, first, cache.get(ORB))
	cache.get(SIFT)

	assert.Equal(t, map[Detector]int{ORB: 1, SIFT: 1}, calls)
}

func TestToGray_SubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	img.Set(7, 4, color.Gray{Y: 40})

	gray := toGray(img.SubImage(image.Rect(5, 2, 15, 8)))

	assert.Equal(t, image.Rect(0, 0, 10, 6), gray.Bounds())
	assert.Equal(t, gray.Bounds().Dx(), gray.Stride)
	assert.Equal(t, uint8(40), gray.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y)
}

func TestDetect_MaxFeaturesCapsKeypoints(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxFeatures = 40
	e := New(opts, nil)

	work, err := e.prepare(createTestSheet(600, 800, 7))
	require.NoError(t, err)
	defer work.close()

	for _, d := range []Detector{SIFT, ORB} {
		f := e.detect(d, work)
		assert.NotEmpty(t, f.keypoints, d.String())
		// OpenCV keeps keypoints tied with the last retained response.
		assert.LessOrEqual(t, len(f.keypoints), 2*opts.MaxFeatures, d.String())
		f.close()
	}
}
