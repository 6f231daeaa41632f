package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine aligns candidate pages onto a template. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	opts       Options
	strategies []Strategy
	log        *zap.Logger
}

// New creates an Engine. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		opts:       opts,
		strategies: DefaultStrategies(),
		log:        logger.Named("registration"),
	}
}

// WithStrategies returns a copy of e that searches the given strategies in
// order instead of DefaultStrategies.
func (e *Engine) WithStrategies(strategies []Strategy) *Engine {
	c := *e
	c.strategies = append([]Strategy(nil), strategies...)
	return &c
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy           Strategy      `json:"strategy"`
	TemplateKeypoints  int           `json:"template_keypoints"`
	CandidateKeypoints int           `json:"candidate_keypoints"`
	Matches            int           `json:"matches"`
	Inliers            int           `json:"inliers"`
	Homography         *Homography   `json:"homography,omitempty"`
	Duration           time.Duration `json:"duration"`
	Err                error         `json:"-"`
}

// MarshalJSON includes the attempt error as a string.
func (a Attempt) MarshalJSON() ([]byte, error) {
	type plain Attempt
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(a)}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return json.Marshal(out)
}

// Result is a successful alignment.
type Result struct {
	// Image is the candidate warped into the template's coordinate frame. It
	// has exactly the template's size.
	Image image.Image

	// Homography maps the rotated candidate onto the template.
	Homography Homography

	// Strategy is the strategy that produced Image.
	Strategy Strategy

	// Attempts lists every strategy tried, the successful one last.
	Attempts []Attempt
}

// AlignmentError is returned by Register when no strategy produced a valid
// alignment. It matches ErrAlignmentFailed and each attempt's error under
// errors.Is.
type AlignmentError struct {
	Attempts []Attempt
}

func (e *AlignmentError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrAlignmentFailed.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("%s: %s", ErrAlignmentFailed, strings.Join(parts, "; "))
}

func (e *AlignmentError) Unwrap() []error {
	errs := []error{ErrAlignmentFailed}
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Register aligns candidate onto template. Strategies are tried in order and
// the first one whose homography passes ValidateHomography wins. Neither input
// is modified.
//
// When every strategy fails the error is an *AlignmentError.
func (e *Engine) Register(template, candidate image.Image) (*Result, error) {
	if isEmpty(template) {
		return nil, fmt.Errorf("%w: empty template", ErrAlignmentFailed)
	}
	if isEmpty(candidate) {
		return nil, fmt.Errorf("%w: empty candidate", ErrAlignmentFailed)
	}

	start := time.Now()

	tmpl, err := e.prepare(template)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare template: %v", ErrAlignmentFailed, err)
	}
	defer tmpl.close()

	// Template features depend only on the detector, so each is computed once.
	templateFeatures := newFeatureCache(tmpl, e.detect)
	defer templateFeatures.close()

	attempts := make([]Attempt, 0, len(e.strategies))
	for _, s := range e.strategies {
		rec, out := e.try(tmpl, templateFeatures, candidate, s)
		attempts = append(attempts, rec)

		if rec.Err != nil {
			e.log.Debug("strategy failed",
				zap.Stringer("strategy", s),
				zap.Int("template_keypoints", rec.TemplateKeypoints),
				zap.Int("candidate_keypoints", rec.CandidateKeypoints),
				zap.Int("matches", rec.Matches),
				zap.Error(rec.Err),
			)
			continue
		}

		e.log.Info("page aligned",
			zap.Stringer("strategy", s),
			zap.Int("matches", rec.Matches),
			zap.Int("inliers", rec.Inliers),
			zap.Int("attempts", len(attempts)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &Result{
			Image:      out,
			Homography: *rec.Homography,
			Strategy:   s,
			Attempts:   attempts,
		}, nil
	}

	e.log.Warn("alignment failed",
		zap.Int("attempts", len(attempts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil, &AlignmentError{Attempts: attempts}
}

// try runs a single strategy. Template detection happens here too, so a panic
// from the vision library at any step becomes the attempt's error.
func (e *Engine) try(tmpl *workingImage, templateFeatures *featureCache, candidate image.Image, s Strategy) (rec Attempt, out image.Image) {
	start := time.Now()
	rec.Strategy = s
	defer func() {
		if r := recover(); r != nil {
			rec.Err = fmt.Errorf("panic: %v", r)
			out = nil
		}
		rec.Duration = time.Since(start)
	}()

	tf := templateFeatures.get(s.Detector)

	rotated := s.Rotation.apply(candidate)

	cand, err := e.prepare(rotated)
	if err != nil {
		rec.Err = err
		return rec, nil
	}
	defer cand.close()

	cf := e.detect(s.Detector, cand)
	defer cf.close()

	rec.TemplateKeypoints = len(tf.keypoints)
	rec.CandidateKeypoints = len(cf.keypoints)

	if !tf.usable(e.opts.MinMatchCount) || !cf.usable(e.opts.MinMatchCount) {
		rec.Err = fmt.Errorf("%w: template %d, candidate %d keypoints",
			ErrInsufficientFeatures, rec.TemplateKeypoints, rec.CandidateKeypoints)
		return rec, nil
	}

	good := e.match(s.Detector, tf, cf)
	rec.Matches = len(good)
	if len(good) < e.opts.MinMatchCount {
		rec.Err = fmt.Errorf("%w: %d of %d required", ErrInsufficientMatches, len(good), e.opts.MinMatchCount)
		return rec, nil
	}

	hMat, inliers := e.findHomography(good, tf, cf, tmpl.scale, cand.scale)
	defer hMat.Close()
	rec.Inliers = inliers
	if hMat.Empty() {
		rec.Err = ErrHomographyUnavailable
		return rec, nil
	}

	h := toHomography(hMat)
	rec.Homography = &h

	if err := ValidateHomography(h, cand.size, tmpl.size, e.opts.Validation); err != nil {
		rec.Err = err
		return rec, nil
	}

	out, err = warp(rotated, hMat, tmpl.size)
	if err != nil {
		rec.Err = err
		return rec, nil
	}
	return rec, out
}

// featureCache computes template features lazily, once per detector.
type featureCache struct {
	img        *workingImage
	detect     func(Detector, *workingImage) *features
	byDetector map[Detector]*features
}

func newFeatureCache(img *workingImage, detect func(Detector, *workingImage) *features) *featureCache {
	return &featureCache{img: img, detect: detect, byDetector: make(map[Detector]*features)}
}

// get returns the features for d. A detection that panics stores nothing, so
// a later strategy with the same detector retries it.
func (c *featureCache) get(d Detector) *features {
	if f, ok := c.byDetector[d]; ok {
		return f
	}
	f := c.detect(d, c.img)
	c.byDetector[d] = f
	return f
}

func (c *featureCache) close() {
	for _, f := range c.byDetector {
		f.close()
	}
}

func isEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

// AttemptErrors returns the per-strategy errors of a failed Register call, or
// nil when err is not an *AlignmentError.
func AttemptErrors(err error) []Attempt {
	var ae *AlignmentError
	if errors.As(err, &ae) {
		return ae.Attempts
	}
	return nil
}
