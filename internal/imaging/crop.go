package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodedImage is a PNG ready to return over the wire.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropZone extracts a zone rectangle, given relative to the image origin,
// from a registered page. The rectangle is clipped to the page; a zone
// entirely off the page yields an empty image, which scores as blank.
//
// The returned image is a copy with its origin at (0,0).
func CropZone(page image.Image, zone image.Rectangle) image.Image {
	b := page.Bounds()
	r := zone.Add(b.Min).Intersect(b)
	if r.Empty() {
		return image.NewNRGBA(image.Rectangle{})
	}
	return imaging.Crop(page, r)
}

// Crop extracts a rectangular region and encodes it as PNG. Unlike CropZone
// it rejects regions outside the image, since it serves interactive callers
// that should learn about a bad rectangle.
func Crop(img image.Image, r image.Rectangle, scale float64) (*EncodedImage, error) {
	b := img.Bounds()
	abs := r.Add(b.Min)
	if !abs.In(b) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, 0, 0, b.Dx(), b.Dy())
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return EncodePNG(imaging.Crop(img, abs), scale)
}

// EncodePNG optionally rescales img and encodes it as base64 PNG. A scale of
// 0 or 1 keeps the original size.
func EncodePNG(img image.Image, scale float64) (*EncodedImage, error) {
	if scale != 1.0 && scale > 0 {
		w := max(1, int(float64(img.Bounds().Dx())*scale))
		h := max(1, int(float64(img.Bounds().Dy())*scale))
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Save writes img to path; the format follows the extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
