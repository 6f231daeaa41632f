package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
)

// Mark describes one graded zone to draw on a page.
type Mark struct {
	// Zone is the zone rectangle in page coordinates.
	Zone image.Rectangle

	// Bands are the option bands in page coordinates, in option order.
	Bands []image.Rectangle

	// Selected is the band the student marked, or -1.
	Selected int

	// Expected is the band marked on the key, or -1.
	Expected int

	// Tint is the "#RRGGBB" outcome colour.
	Tint string

	// Label is drawn above the zone.
	Label string
}

const (
	selectionBlend = 0.4
	keyOutlineHex  = "#1f6feb"
)

// Annotate returns a copy of page with every mark drawn on it: the zone
// outline and band separators in the mark's tint, the selected band shaded
// with the tint, and the key's band outlined when it differs from the
// selection.
func Annotate(page image.Image, marks []Mark) *image.RGBA {
	out := toRGBA(page)
	keyOutline, _ := parseHexColor(keyOutlineHex)

	for _, m := range marks {
		tint, err := parseHexColor(m.Tint)
		if err != nil {
			tint = color.RGBA{128, 128, 128, 255}
		}

		if m.Selected >= 0 && m.Selected < len(m.Bands) {
			shade(out, m.Bands[m.Selected], tint, selectionBlend)
		}

		for _, band := range m.Bands {
			outline(out, band, 1, withAlpha(tint, 140))
		}
		outline(out, m.Zone, 2, tint)

		if m.Expected >= 0 && m.Expected < len(m.Bands) && m.Expected != m.Selected {
			outline(out, m.Bands[m.Expected].Inset(2), 2, keyOutline)
		}

		if m.Label != "" {
			y := m.Zone.Min.Y - 9
			if y < 0 {
				y = m.Zone.Min.Y + 3
			}
			drawLabel(out, m.Zone.Min.X+1, y, m.Label, labelFG, labelBG)
		}
	}
	return out
}

// shade blends r toward tint in CIE L*a*b*, which keeps pencil marks readable
// under the colour.
func shade(img *image.RGBA, r image.Rectangle, tint color.RGBA, t float64) {
	target, _ := colorful.MakeColor(tint)
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			src, ok := colorful.MakeColor(img.RGBAAt(x, y))
			if !ok {
				src = target
			}
			cr, cg, cb := src.BlendLab(target, t).Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{R: cr, G: cg, B: cb, A: 255})
		}
	}
}

// outline draws a border of the given width just inside r.
func outline(img *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Over)
	}
}

func withAlpha(c color.RGBA, a uint8) color.RGBA {
	// color.RGBA is alpha-premultiplied
	scale := func(v uint8) uint8 { return uint8(uint16(v) * uint16(a) / 255) }
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: a}
}
