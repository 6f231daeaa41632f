package omr

import (
	"fmt"
	"image"
)

// Comparison is the outcome of scoring a student crop against a key crop.
type Comparison struct {
	Student       int       `json:"student"`
	Key           int       `json:"key"`
	Match         bool      `json:"match"`
	StudentScores []float64 `json:"student_scores,omitempty"`
	KeyScores     []float64 `json:"key_scores,omitempty"`
}

// Compare scores the key and the student crop of the same zone with identical
// parameters and reports whether they agree.
//
// The mode is chosen by ModeFor. Match is true only when the key is marked and
// the student picked the same band; an unmarked key can never be matched.
func (s Scorer) Compare(student, key image.Image, options int, orientation Orientation) (Comparison, error) {
	mode := ModeFor(options)

	keyResult, err := s.Score(key, options, orientation, mode)
	if err != nil {
		return Comparison{Student: NoSelection, Key: NoSelection}, fmt.Errorf("compare key: %w", err)
	}
	studentResult, err := s.Score(student, options, orientation, mode)
	if err != nil {
		return Comparison{Student: NoSelection, Key: NoSelection}, fmt.Errorf("compare student: %w", err)
	}

	return Comparison{
		Student:       studentResult.Selected,
		Key:           keyResult.Selected,
		Match:         keyResult.Marked() && studentResult.Marked() && studentResult.Selected == keyResult.Selected,
		StudentScores: studentResult.Scores,
		KeyScores:     keyResult.Scores,
	}, nil
}
