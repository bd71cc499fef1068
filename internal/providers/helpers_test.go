package providers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jackzampolin/notejson/internal/asset"
)

func testAsset(t *testing.T) *asset.Asset {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	a, err := asset.FromBytes(buf.Bytes(), "image/png")
	if err != nil {
		t.Fatalf("asset.FromBytes() error = %v", err)
	}
	return a
}
