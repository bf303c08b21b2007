package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestProcessPhotoReencodesAsJPEG(t *testing.T) {
	data, mime, err := ProcessPhoto(bytes.NewReader(encodePNG(t, 100, 50)))
	if err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", mime)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50 output, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestProcessPhotoDownscales(t *testing.T) {
	data, _, err := ProcessPhoto(bytes.NewReader(encodePNG(t, MaxDimension*2, MaxDimension)))
	if err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != MaxDimension {
		t.Errorf("expected width %d, got %d", MaxDimension, img.Bounds().Dx())
	}
	if img.Bounds().Dy() != MaxDimension/2 {
		t.Errorf("expected height %d, got %d", MaxDimension/2, img.Bounds().Dy())
	}
}

func TestProcessPhotoRejectsNonImage(t *testing.T) {
	_, _, err := ProcessPhoto(strings.NewReader("definitely not an image"))
	if err == nil {
		t.Error("expected error for non-image data")
	}
}
