// Package asset decodes uploaded note images into a pixel buffer for OCR
// while keeping the untouched original bytes for transport to the model.
package asset

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	// Registered decoders for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Asset is a single uploaded image. It is immutable once Normalize returns.
type Asset struct {
	data   []byte
	mime   string
	format string
	img    image.Image
}

// DecodeError is returned when the uploaded bytes cannot be read as an image.
type DecodeError struct {
	MIME string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.MIME != "" {
		return fmt.Sprintf("cannot decode %s image: %v", e.MIME, e.Err)
	}
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Normalize decodes the image in r and captures the original bytes.
// The stream is rewound to its starting offset after decoding so the
// transport payload is read from the same source, byte for byte.
// An empty mime is sniffed from the content.
func Normalize(r io.ReadSeeker, mime string) (*Asset, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, &DecodeError{MIME: mime, Err: fmt.Errorf("failed to read stream position: %w", err)}
	}

	img, format, decodeErr := image.Decode(r)

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, &DecodeError{MIME: mime, Err: fmt.Errorf("failed to rewind stream: %w", err)}
	}
	if decodeErr != nil {
		return nil, &DecodeError{MIME: mime, Err: decodeErr}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{MIME: mime, Err: fmt.Errorf("failed to read image bytes: %w", err)}
	}

	// Leave the stream where the caller handed it to us.
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, &DecodeError{MIME: mime, Err: fmt.Errorf("failed to rewind stream: %w", err)}
	}

	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = http.DetectContentType(data)
	}

	return &Asset{
		data:   data,
		mime:   mime,
		format: format,
		img:    img,
	}, nil
}

// FromBytes normalizes an in-memory image.
func FromBytes(data []byte, mime string) (*Asset, error) {
	return Normalize(bytes.NewReader(data), mime)
}

// Size returns the length of the original payload in bytes.
func (a *Asset) Size() int { return len(a.data) }

// MIME returns the declared (or sniffed) content type.
func (a *Asset) MIME() string { return a.mime }

// Format returns the codec name reported by the decoder ("jpeg", "png", ...).
func (a *Asset) Format() string { return a.format }

// Image returns the decoded pixel buffer.
func (a *Asset) Image() image.Image { return a.img }

// Bounds returns the pixel dimensions of the decoded image.
func (a *Asset) Bounds() image.Rectangle { return a.img.Bounds() }

// Base64 encodes the original bytes with standard padding.
func (a *Asset) Base64() string {
	return base64.StdEncoding.EncodeToString(a.data)
}

// DataURL returns the asset as a data: URI suitable for image_url content parts.
func (a *Asset) DataURL() string {
	return "data:" + a.mime + ";base64," + a.Base64()
}
