package sheet

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/logger"
	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/registration"
)

// Registrar aligns a candidate page onto a template.
type Registrar interface {
	Register(template, candidate image.Image) (*registration.Result, error)
}

// Recorder receives grading measurements.
type Recorder interface {
	ObserveRegistration(strategy string, aligned bool, d time.Duration)
	ObserveZone(outcome string)
	ObservePage(status string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRegistration(string, bool, time.Duration) {}
func (nopRecorder) ObserveZone(string)                             {}
func (nopRecorder) ObservePage(string, time.Duration)              {}

// Grader grades pages. It is safe for concurrent use.
type Grader struct {
	registrar Registrar
	scorer    omr.Scorer
	workers   int
	recorder  Recorder
}

// Option configures a Grader.
type Option func(*Grader)

// WithWorkers bounds concurrent zone scoring within a page and concurrent
// pages within a batch. Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(g *Grader) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithRecorder sends measurements to r.
func WithRecorder(r Recorder) Option {
	return func(g *Grader) {
		if r != nil {
			g.recorder = r
		}
	}
}

// NewGrader creates a Grader.
func NewGrader(registrar Registrar, scorer omr.Scorer, opts ...Option) *Grader {
	g := &Grader{
		registrar: registrar,
		scorer:    scorer,
		workers:   runtime.NumCPU(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PageRequest is one student page to grade.
type PageRequest struct {
	// ID identifies the page in reports; a random id is assigned when empty.
	ID string

	// Template is the blank sheet the zones were drawn on.
	Template image.Image

	// Student is the filled-in page, photographed or scanned.
	Student image.Image

	// Key is the answer-key page. It is registered first when its size
	// differs from the template. Without a key, zones are read but not marked
	// correct or incorrect.
	Key image.Image

	Zones []omr.Zone
}

// GradePage grades a single page.
func (g *Grader) GradePage(ctx context.Context, req PageRequest) (*PageReport, error) {
	return g.gradePage(ctx, uuid.NewString(), req)
}

// GradeBatch grades pages concurrently. Reports are returned in request
// order and share one run id. A page that fails to align does not affect the
// others.
func (g *Grader) GradeBatch(ctx context.Context, reqs []PageRequest) ([]*PageReport, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With(zap.String("run_id", runID))
	log.Info("grading batch", zap.Int("pages", len(reqs)))

	reports := make([]*PageReport, len(reqs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i := range reqs {
		eg.Go(func() error {
			report, err := g.gradePage(ctx, runID, reqs[i])
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (g *Grader) gradePage(ctx context.Context, runID string, req PageRequest) (*PageReport, error) {
	if req.Template == nil || req.Template.Bounds().Empty() {
		return nil, fmt.Errorf("%w: missing template", ErrInvalidRequest)
	}
	if req.Student == nil || req.Student.Bounds().Empty() {
		return nil, fmt.Errorf("%w: missing student page", ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	start := time.Now()
	log := logger.FromContext(ctx).With(zap.String("run_id", runID), zap.String("page_id", req.ID))
	report := &PageReport{RunID: runID, PageID: req.ID}
	defer func() {
		report.Duration = time.Since(start)
		g.recorder.ObservePage(report.status(), report.Duration)
	}()

	student, err := g.register(req.Template, req.Student)
	if student != nil {
		report.Attempts = student.Attempts
	}
	if err != nil {
		report.Error = err.Error()
		log.Warn("student page not aligned", zap.Error(err))
		return report, nil
	}
	report.Aligned = true
	report.Strategy = student.Strategy.String()
	report.Homography = &student.Homography
	report.Registered = student.Image

	if req.Key != nil {
		key, keyStrategy, err := g.alignKey(req.Template, req.Key)
		if err != nil {
			report.Aligned = false
			report.Error = fmt.Sprintf("answer key: %v", err)
			log.Warn("answer key not aligned", zap.Error(err))
			return report, nil
		}
		report.RegisteredKey = key
		report.KeyStrategy = keyStrategy
	}

	zones, err := g.gradeZones(ctx, report.Registered, report.RegisteredKey, req.Zones)
	if err != nil {
		return nil, err
	}
	report.Zones = zones

	for _, z := range zones {
		if z.Zone.Kind.Scorable() && z.Outcome != OutcomeInvalid {
			report.MaxScore += z.Zone.PointValue()
		}
		report.Score += z.Points
	}

	log.Info("page graded",
		zap.String("strategy", report.Strategy),
		zap.Float64("score", report.Score),
		zap.Float64("max_score", report.MaxScore),
		zap.Int("zones", len(zones)),
	)
	return report, nil
}

// register wraps the registrar with metrics. The result carries the attempt
// log even on failure.
func (g *Grader) register(template, candidate image.Image) (*registration.Result, error) {
	start := time.Now()
	res, err := g.registrar.Register(template, candidate)
	if err != nil {
		g.recorder.ObserveRegistration("", false, time.Since(start))
		return &registration.Result{Attempts: registration.AttemptErrors(err)}, err
	}
	g.recorder.ObserveRegistration(res.Strategy.String(), true, time.Since(start))
	return res, nil
}

// alignKey returns the key page in template geometry. A key already at the
// template's size is taken as is.
func (g *Grader) alignKey(template, key image.Image) (image.Image, string, error) {
	if key.Bounds().Size() == template.Bounds().Size() {
		return key, "", nil
	}
	res, err := g.register(template, key)
	if err != nil {
		return nil, "", err
	}
	return res.Image, res.Strategy.String(), nil
}

// gradeZones scores every zone concurrently. Results keep the zone order.
func (g *Grader) gradeZones(ctx context.Context, page, key image.Image, zones []omr.Zone) ([]ZoneReport, error) {
	reports := make([]ZoneReport, len(zones))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i := range zones {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = g.gradeZone(page, key, zones[i])
			g.recorder.ObserveZone(string(reports[i].Outcome))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (g *Grader) gradeZone(page, key image.Image, zone omr.Zone) ZoneReport {
	if zone.ID == "" {
		zone.ID = uuid.NewString()
	}
	report := ZoneReport{Zone: zone, Student: omr.NoSelection, Key: omr.NoSelection}

	if err := zone.Validate(); err != nil {
		report.Outcome = OutcomeInvalid
		report.Error = err.Error()
		return report
	}
	if !zone.Kind.Scorable() {
		report.Outcome = OutcomeSkipped
		return report
	}

	studentCrop := imaging.CropZone(page, zone.Rect())

	if key == nil {
		res, err := g.scorer.Score(studentCrop, zone.Options, zone.Orientation, omr.ModeFor(zone.Options))
		if err != nil {
			report.Outcome = OutcomeInvalid
			report.Error = err.Error()
			return report
		}
		report.Student = res.Selected
		report.StudentScores = res.Scores
		report.Outcome = OutcomeAnswered
		if !res.Marked() {
			report.Outcome = OutcomeBlank
		}
		return report
	}

	cmp, err := g.scorer.Compare(studentCrop, imaging.CropZone(key, zone.Rect()), zone.Options, zone.Orientation)
	if err != nil {
		report.Outcome = OutcomeInvalid
		report.Error = err.Error()
		return report
	}
	report.Student = cmp.Student
	report.Key = cmp.Key
	report.StudentScores = cmp.StudentScores
	report.KeyScores = cmp.KeyScores

	switch {
	case cmp.Key == omr.NoSelection:
		report.Outcome = OutcomeNoKey
	case cmp.Student == omr.NoSelection:
		report.Outcome = OutcomeBlank
	case cmp.Match:
		report.Outcome = OutcomeCorrect
		report.Points = zone.PointValue()
	default:
		report.Outcome = OutcomeIncorrect
	}
	return report
}
