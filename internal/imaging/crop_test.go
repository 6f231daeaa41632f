package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// createQuadrantImage creates an image with different colors in each quadrant
func createQuadrantImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func decodeEncoded(t *testing.T, e *EncodedImage) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(e.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	return img
}

func TestCropZone(t *testing.T) {
	page := createQuadrantImage(100, 100)

	crop := CropZone(page, image.Rect(50, 0, 80, 20))
	if got := crop.Bounds(); got != image.Rect(0, 0, 30, 20) {
		t.Fatalf("bounds: got %v, want (0,0)-(30,20)", got)
	}
	r, g, b, _ := crop.At(5, 5).RGBA()
	if r != 0 || g != 0xffff || b != 0 {
		t.Errorf("crop should come from the green quadrant, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCropZone_Clipping(t *testing.T) {
	page := createQuadrantImage(100, 100)

	tests := []struct {
		name string
		zone image.Rectangle
		want image.Point
	}{
		{"inside", image.Rect(10, 10, 20, 30), image.Pt(10, 20)},
		{"overhangs right edge", image.Rect(90, 10, 120, 20), image.Pt(10, 10)},
		{"negative origin", image.Rect(-5, -5, 5, 5), image.Pt(5, 5)},
		{"off the page", image.Rect(200, 200, 220, 220), image.Pt(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropZone(page, tt.zone).Bounds().Size()
			if got != tt.want {
				t.Errorf("size: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropZone_SubImagePage(t *testing.T) {
	page := createQuadrantImage(100, 100).SubImage(image.Rect(50, 50, 100, 100))

	// zone coordinates are relative to the page origin
	crop := CropZone(page, image.Rect(0, 0, 10, 10))
	r, g, b, _ := crop.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("expected white from the bottom-right quadrant, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCrop(t *testing.T) {
	img := createQuadrantImage(100, 100)

	result, err := Crop(img, image.Rect(0, 0, 50, 50), 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	r, _, _, _ := decodeEncoded(t, result).At(10, 10).RGBA()
	if r>>8 != 255 {
		t.Errorf("expected red, got r=%d", r>>8)
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	tests := []struct {
		name string
		r    image.Rectangle
	}{
		{"outside", image.Rect(50, 50, 150, 150)},
		{"negative", image.Rect(-1, 0, 10, 10)},
		{"empty", image.Rectangle{Min: image.Pt(10, 10), Max: image.Pt(10, 20)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.r, 1.0); err == nil {
				t.Error("Crop should fail")
			}
		})
	}
}

func TestEncodePNG_Scale(t *testing.T) {
	img := createInMemoryImage(100, 60, color.White)

	tests := []struct {
		scale         float64
		wantW, wantH int
	}{
		{1.0, 100, 60},
		{0, 100, 60},
		{2.0, 200, 120},
		{0.5, 50, 30},
	}

	for _, tt := range tests {
		result, err := EncodePNG(img, tt.scale)
		if err != nil {
			t.Fatalf("EncodePNG(%v) failed: %v", tt.scale, err)
		}
		if result.Width != tt.wantW || result.Height != tt.wantH {
			t.Errorf("scale %v: got %dx%d, want %dx%d", tt.scale, result.Width, result.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registered.png")
	if err := Save(createQuadrantImage(40, 40), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("failed to reopen saved image: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("width: got %d, want 40", img.Bounds().Dx())
	}

	if err := Save(createQuadrantImage(4, 4), filepath.Join(t.TempDir(), "page.unknown")); err == nil {
		t.Error("Save should fail for an unsupported extension")
	}
}
