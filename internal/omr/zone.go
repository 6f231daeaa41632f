package omr

import (
	"encoding/json"
	"fmt"
	"image"
	"strings"
)

// NoSelection is the band index reported for a zone with no significant mark.
const NoSelection = -1

// Orientation is the axis along which a zone is split into option bands.
type Orientation int

const (
	// Vertical stacks the bands top to bottom ("dikey").
	Vertical Orientation = iota
	// Horizontal places the bands left to right ("yatay").
	Horizontal
)

// ParseOrientation accepts "vertical"/"dikey" and "horizontal"/"yatay".
// An empty string yields Vertical.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vertical", "dikey":
		return Vertical, nil
	case "horizontal", "yatay":
		return Horizontal, nil
	default:
		return Vertical, fmt.Errorf("unknown orientation %q", s)
	}
}

func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(text []byte) error {
	parsed, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Mode selects the band measure used by Score.
type Mode int

const (
	// ModeArea scores a band by the enclosed area of its largest ink blob.
	ModeArea Mode = iota
	// ModeBlackness scores a band by its ink pixel count.
	ModeBlackness
)

func (m Mode) String() string {
	if m == ModeBlackness {
		return "blackness"
	}
	return "area"
}

// ParseMode accepts "area" and "blackness". An empty string yields ModeArea.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "area":
		return ModeArea, nil
	case "blackness":
		return ModeBlackness, nil
	default:
		return ModeArea, fmt.Errorf("unknown scoring mode %q", s)
	}
}

// ModeFor returns the mode used for a zone with the given option count:
// blackness for two-option (true/false) zones, area otherwise.
func ModeFor(options int) Mode {
	if options == 2 {
		return ModeBlackness
	}
	return ModeArea
}

// Kind is the question type a zone was drawn for.
type Kind string

const (
	KindUnassigned     Kind = "unassigned"
	KindMultipleChoice Kind = "multiple_choice"
	KindTrueFalse      Kind = "true_false"
	KindMatching       Kind = "matching"
	KindClassic        Kind = "classic"
	KindStudentInfo    Kind = "student_info"
	KindAISolve        Kind = "ai_solve"
)

// Scorable reports whether zones of this kind are read by mark detection.
// The remaining kinds carry free text and are graded elsewhere.
func (k Kind) Scorable() bool {
	return k == KindMultipleChoice || k == KindTrueFalse
}

// DefaultPoints is awarded for a correct zone when the zone sets no points.
const DefaultPoints = 5.0

// Zone describes one answer zone in template pixel coordinates.
type Zone struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Kind        Kind        `json:"kind" yaml:"kind"`
	Left        int         `json:"left" yaml:"left"`
	Top         int         `json:"top" yaml:"top"`
	Width       int         `json:"width" yaml:"width"`
	Height      int         `json:"height" yaml:"height"`
	Options     int         `json:"options" yaml:"options"`
	Orientation Orientation `json:"orientation" yaml:"orientation"`
	Points      float64     `json:"points,omitempty" yaml:"points,omitempty"`
}

// Rect returns the zone rectangle in template coordinates.
func (z Zone) Rect() image.Rectangle {
	return image.Rect(z.Left, z.Top, z.Left+z.Width, z.Top+z.Height)
}

// Validate checks the geometry and option count.
func (z Zone) Validate() error {
	if z.Width <= 0 || z.Height <= 0 {
		return fmt.Errorf("zone %q: width and height must be positive, got %dx%d", z.Label(), z.Width, z.Height)
	}
	if z.Left < 0 || z.Top < 0 {
		return fmt.Errorf("zone %q: negative origin (%d,%d)", z.Label(), z.Left, z.Top)
	}
	if z.Kind.Scorable() && z.Options < 2 {
		return fmt.Errorf("zone %q: %w: %d", z.Label(), ErrInvalidOptions, z.Options)
	}
	return nil
}

// Label returns the zone name, falling back to its id.
func (z Zone) Label() string {
	if z.Name != "" {
		return z.Name
	}
	return z.ID
}

// PointValue returns the points awarded for a correct answer.
func (z Zone) PointValue() float64 {
	if z.Points > 0 {
		return z.Points
	}
	return DefaultPoints
}

// UnmarshalJSON fills in the kind when only the option count is known,
// treating two-option zones as true/false and larger ones as multiple choice.
func (z *Zone) UnmarshalJSON(data []byte) error {
	type plain Zone
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*z = Zone(p)
	if z.Kind == "" {
		z.Kind = inferKind(z.Options)
	}
	return nil
}

func inferKind(options int) Kind {
	switch {
	case options == 2:
		return KindTrueFalse
	case options > 2:
		return KindMultipleChoice
	default:
		return KindUnassigned
	}
}
