package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// GridOverlay draws a labelled coordinate grid over a template so zone
// rectangles can be read off in template pixels. gridColorHex accepts
// "#RRGGBB" or "#RRGGBBAA"; an unparsable colour falls back to translucent
// red.
func GridOverlay(img image.Image, gridSpacing int, showCoordinates bool, gridColorHex string) (*image.RGBA, error) {
	if gridSpacing <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got %d", gridSpacing)
	}

	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor = withAlpha(color.RGBA{255, 0, 0, 255}, 128)
	}

	result := toRGBA(img)
	b := result.Bounds()

	for x := gridSpacing; x < b.Dx(); x += gridSpacing {
		draw.Draw(result, image.Rect(x, 0, x+1, b.Dy()), image.NewUniform(gridColor), image.Point{}, draw.Over)
	}
	for y := gridSpacing; y < b.Dy(); y += gridSpacing {
		draw.Draw(result, image.Rect(0, y, b.Dx(), y+1), image.NewUniform(gridColor), image.Point{}, draw.Over)
	}

	if showCoordinates {
		for y := gridSpacing; y < b.Dy(); y += gridSpacing {
			for x := gridSpacing; x < b.Dx(); x += gridSpacing {
				drawLabel(result, x+2, y+2, fmt.Sprintf("%d,%d", x, y), labelFG, labelBG)
			}
		}
	}

	return result, nil
}

// toRGBA copies img into a new RGBA image with its origin at (0,0).
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), img, b.Min, draw.Src)
	return result
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA" into a premultiplied colour.
func parseHexColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}

	alpha := uint8(255)
	switch len(hex) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return withAlpha(color.RGBA{R: r, G: g, B: b, A: 255}, alpha), nil
}

var (
	labelFG = color.RGBA{255, 255, 255, 255}
	labelBG = color.RGBA{0, 0, 0, 180}
)

// glyphs is a 3x5 pixel font for digits, option letters and label
// punctuation.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	'A': {"010", "101", "111", "101", "101"},
	'B': {"110", "101", "110", "101", "110"},
	'C': {"011", "100", "100", "100", "011"},
	'D': {"110", "101", "101", "101", "110"},
	'E': {"111", "100", "110", "100", "111"},
	'F': {"111", "100", "110", "100", "100"},
	'T': {"111", "010", "010", "010", "010"},
	',': {"000", "000", "000", "010", "010"},
	'-': {"000", "000", "111", "000", "000"},
	'/': {"001", "001", "010", "100", "100"},
	'?': {"111", "001", "010", "000", "010"},
}

// drawLabel draws text at (x, y) on a filled background. Runes without a
// glyph leave a blank cell.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	const charWidth, labelHeight = 4, 7

	labelWidth := len([]rune(text)) * charWidth
	bgRect := image.Rect(x-1, y-1, x+labelWidth, y+labelHeight).Intersect(img.Bounds())
	draw.Draw(img, bgRect, image.NewUniform(bg), image.Point{}, draw.Over)

	bounds := img.Bounds()
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				p := image.Pt(cx+col, y+row)
				if p.In(bounds) {
					img.SetRGBA(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
