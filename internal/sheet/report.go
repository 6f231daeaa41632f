package sheet

import (
	"image"
	"strconv"
	"time"

	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/registration"
)

// Outcome classifies a graded zone.
type Outcome string

const (
	// OutcomeCorrect: the student marked the key's option.
	OutcomeCorrect Outcome = "correct"
	// OutcomeIncorrect: the student marked a different option.
	OutcomeIncorrect Outcome = "incorrect"
	// OutcomeBlank: the student marked nothing.
	OutcomeBlank Outcome = "blank"
	// OutcomeNoKey: the key zone is unmarked, so nothing can match.
	OutcomeNoKey Outcome = "no_key"
	// OutcomeAnswered: the zone was read without a key.
	OutcomeAnswered Outcome = "answered"
	// OutcomeSkipped: the zone kind is not read by mark detection.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeInvalid: the zone geometry or option count is unusable.
	OutcomeInvalid Outcome = "invalid"
)

// ZoneReport is the result for one zone.
type ZoneReport struct {
	Zone          omr.Zone  `json:"zone"`
	Outcome       Outcome   `json:"outcome"`
	Student       int       `json:"student"`
	Key           int       `json:"key"`
	StudentScores []float64 `json:"student_scores,omitempty"`
	KeyScores     []float64 `json:"key_scores,omitempty"`
	Points        float64   `json:"points"`
	Error         string    `json:"error,omitempty"`
}

// PageReport is the result for one page.
type PageReport struct {
	RunID  string `json:"run_id"`
	PageID string `json:"page_id"`

	// Aligned is false when the student or key page could not be registered.
	Aligned    bool                     `json:"aligned"`
	Strategy   string                   `json:"strategy,omitempty"`
	Homography *registration.Homography `json:"homography,omitempty"`
	Attempts   []registration.Attempt   `json:"attempts,omitempty"`

	// KeyStrategy is set when the key page had to be registered.
	KeyStrategy string `json:"key_strategy,omitempty"`

	Error string       `json:"error,omitempty"`
	Zones []ZoneReport `json:"zones,omitempty"`

	// Score totals the points of correct zones; MaxScore the points of all
	// scorable zones.
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`

	Duration time.Duration `json:"duration"`

	// Registered and RegisteredKey are the pages in template geometry.
	Registered    image.Image `json:"-"`
	RegisteredKey image.Image `json:"-"`
}

// Counts returns the number of zones per outcome.
func (r *PageReport) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, z := range r.Zones {
		counts[z.Outcome]++
	}
	return counts
}

// status is the page label used for metrics.
func (r *PageReport) status() string {
	switch {
	case !r.Aligned:
		return "unaligned"
	case r.Error != "":
		return "failed"
	default:
		return "graded"
	}
}

// OptionLabel names a band for display: T/F for two options, letters for up
// to six, 1-based numbers beyond that, and "-" for no selection.
func OptionLabel(index, options int) string {
	switch {
	case index == omr.NoSelection || index < 0:
		return "-"
	case options == 2:
		if index == 0 {
			return "T"
		}
		return "F"
	case options <= 6:
		return string(rune('A' + index))
	default:
		return strconv.Itoa(index + 1)
	}
}
