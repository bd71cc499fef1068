package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/providers"
)

func noteAsset(t *testing.T) *asset.Asset {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	a, err := asset.FromBytes(buf.Bytes(), "image/png")
	if err != nil {
		t.Fatalf("asset.FromBytes() error = %v", err)
	}
	return a
}

type panicEngine struct{}

func (panicEngine) Name() string { return "panicky" }
func (panicEngine) ProcessImage(context.Context, *asset.Asset) (*providers.OCRResult, error) {
	panic("native crash")
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name       string
		engine     func() providers.OCRProvider
		wantStatus string
		wantText   string
		wantPrompt string
		wantEngine string
	}{
		{
			name: "text",
			engine: func() providers.OCRProvider {
				p := providers.NewMockOCRProvider()
				p.ResponseText = "  milk\neggs\n\n"
				return p
			},
			wantStatus: StatusText,
			wantText:   "milk\neggs",
			wantPrompt: "milk\neggs",
			wantEngine: "mock-ocr",
		},
		{
			name: "empty but valid",
			engine: func() providers.OCRProvider {
				p := providers.NewMockOCRProvider()
				p.ResponseText = " \n "
				return p
			},
			wantStatus: StatusEmpty,
			wantPrompt: NoTextSentinel,
			wantEngine: "mock-ocr",
		},
		{
			name: "engine failure",
			engine: func() providers.OCRProvider {
				p := providers.NewMockOCRProvider()
				p.Err = errors.New("tesseract binary not found")
				return p
			},
			wantStatus: StatusFailed,
			wantPrompt: NoTextSentinel,
			wantEngine: "mock-ocr",
		},
		{
			name:       "engine panic",
			engine:     func() providers.OCRProvider { return panicEngine{} },
			wantStatus: StatusFailed,
			wantPrompt: NoTextSentinel,
			wantEngine: "panicky",
		},
		{
			name:       "no engine",
			engine:     func() providers.OCRProvider { return nil },
			wantStatus: StatusFailed,
			wantPrompt: NoTextSentinel,
			wantEngine: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewExtractor(tt.engine(), nil)
			res := x.Extract(context.Background(), noteAsset(t))

			if got := res.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %q, want %q", got, tt.wantStatus)
			}
			if res.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", res.Text, tt.wantText)
			}
			if got := res.PromptText(); got != tt.wantPrompt {
				t.Errorf("PromptText() = %q, want %q", got, tt.wantPrompt)
			}
			if res.Engine != tt.wantEngine {
				t.Errorf("Engine = %q, want %q", res.Engine, tt.wantEngine)
			}
		})
	}
}

func TestExtractor_ErrorTypes(t *testing.T) {
	cause := errors.New("bad language pack")
	p := providers.NewMockOCRProvider()
	p.Err = cause

	res := NewExtractor(p, nil).Extract(context.Background(), noteAsset(t))

	var ocrErr *Error
	if !errors.As(res.Err, &ocrErr) {
		t.Fatalf("Err type = %T, want *ocr.Error", res.Err)
	}
	if ocrErr.Engine != "mock-ocr" {
		t.Errorf("Error.Engine = %q", ocrErr.Engine)
	}
	if !errors.Is(res.Err, cause) {
		t.Error("expected the engine error to be wrapped")
	}

	none := NewExtractor(nil, nil).Extract(context.Background(), noteAsset(t))
	if !errors.Is(none.Err, ErrNoEngine) {
		t.Errorf("Err = %v, want ErrNoEngine", none.Err)
	}
}

func TestExtractor_EngineName(t *testing.T) {
	var nilExtractor *Extractor
	if got := nilExtractor.EngineName(); got != "none" {
		t.Errorf("nil EngineName() = %q", got)
	}
	if got := NewExtractor(providers.NewMockOCRProvider(), nil).EngineName(); got != "mock-ocr" {
		t.Errorf("EngineName() = %q", got)
	}
}

func TestExtractor_CarriesConfidence(t *testing.T) {
	p := providers.NewMockOCRProvider()
	p.ResponseText = "milk"
	p.Confidence = 0.82

	res := NewExtractor(p, nil).Extract(context.Background(), noteAsset(t))
	if res.Confidence != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", res.Confidence)
	}
	if res.Metadata["provider"] != "mock-ocr" {
		t.Errorf("Metadata = %v", res.Metadata)
	}

	p.Err = errors.New("boom")
	failed := NewExtractor(p, nil).Extract(context.Background(), noteAsset(t))
	if failed.Confidence != 0 || failed.Metadata != nil {
		t.Errorf("failed result kept engine output: %+v", failed)
	}
}
