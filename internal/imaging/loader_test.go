package imaging

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// writeTestPNG writes img to a PNG file in a per-test directory and returns its path
func writeTestPNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "page.png", createInMemoryImage(100, 80, color.White))

	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := img1.Bounds().Size(); got != image.Pt(100, 80) {
		t.Errorf("unexpected dimensions: got %v, want 100x80", got)
	}

	// Second load should return cached image
	img2, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestImageCache_Load_Errors(t *testing.T) {
	cache := NewImageCache()

	if _, err := cache.Load("/nonexistent/path/to/page.png"); err == nil {
		t.Error("Load should fail for non-existent file")
	}

	notImage := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(notImage, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(notImage); err == nil {
		t.Error("Load should fail for a file that is not an image")
	}
}

func TestImageCache_PutEvictClear(t *testing.T) {
	cache := NewImageCache()
	page := createInMemoryImage(10, 10, color.Black)

	cache.Put("registered:1", page)
	got, err := cache.Load("registered:1")
	if err != nil {
		t.Fatalf("Load of a stored handle failed: %v", err)
	}
	if got != image.Image(page) {
		t.Error("Load did not return the stored image")
	}

	cache.Evict("registered:1")
	if _, err := cache.Load("registered:1"); err == nil {
		t.Error("Load should fail after Evict")
	}

	cache.Put("a", page)
	cache.Put("b", page)
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", cache.Len())
	}
}

func TestImageCache_Concurrent(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "page.png", createInMemoryImage(50, 50, color.White))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("concurrent Load failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "scan.png", image.NewGray(image.Rect(0, 0, 64, 48)))

	info, err := LoadImageInfo(cache, path)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("dimensions: got %dx%d, want 64x48", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if !info.Grayscale {
		t.Error("Grayscale: got false for a gray PNG")
	}
	if info.FileSizeBytes <= 0 {
		t.Errorf("FileSizeBytes: got %d", info.FileSizeBytes)
	}
	if cache.Len() != 1 {
		t.Error("LoadImageInfo did not cache the page")
	}
}

func TestLoadImageInfo_FormatFromContent(t *testing.T) {
	// a JPEG with a misleading extension
	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, createInMemoryImage(20, 20, color.White), nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	info, err := LoadImageInfo(NewImageCache(), path)
	if err != nil {
		t.Fatalf("LoadImageInfo failed: %v", err)
	}
	if info.Format != "jpeg" {
		t.Errorf("Format: got %s, want jpeg", info.Format)
	}
	if info.Grayscale {
		t.Error("Grayscale: got true for a colour JPEG")
	}
}
