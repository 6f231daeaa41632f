package sheet

import (
	"fmt"
	"image"

	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/omr"
)

var outcomeTints = map[Outcome]string{
	OutcomeCorrect:   "#2DA44E",
	OutcomeIncorrect: "#D73A49",
	OutcomeBlank:     "#BF8700",
	OutcomeNoKey:     "#8250DF",
	OutcomeAnswered:  "#0969DA",
	OutcomeSkipped:   "#6E7781",
	OutcomeInvalid:   "#000000",
}

// OutcomeTint returns the overlay colour for an outcome.
func OutcomeTint(o Outcome) string {
	if tint, ok := outcomeTints[o]; ok {
		return tint
	}
	return outcomeTints[OutcomeSkipped]
}

// Annotate draws the graded zones on the registered student page.
func (r *PageReport) Annotate() (*image.RGBA, error) {
	if !r.Aligned || r.Registered == nil {
		return nil, fmt.Errorf("page %s has no registered image", r.PageID)
	}

	marks := make([]imaging.Mark, 0, len(r.Zones))
	for _, z := range r.Zones {
		mark := imaging.Mark{
			Zone:     z.Zone.Rect(),
			Selected: z.Student,
			Expected: z.Key,
			Tint:     OutcomeTint(z.Outcome),
		}
		if z.Zone.Kind.Scorable() && z.Zone.Options >= 2 {
			mark.Bands = omr.Bands(z.Zone.Rect(), z.Zone.Options, z.Zone.Orientation)
			mark.Label = OptionLabel(z.Student, z.Zone.Options)
			if z.Key != omr.NoSelection {
				mark.Label += "/" + OptionLabel(z.Key, z.Zone.Options)
			}
		}
		marks = append(marks, mark)
	}
	return imaging.Annotate(r.Registered, marks), nil
}
