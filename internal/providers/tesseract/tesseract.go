// Package tesseract provides a local OCR engine backed by the gosseract
// bindings to libtesseract. Importing the package registers the "tesseract"
// provider type with the providers registry.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/providers"
)

const Name = "tesseract"

func init() {
	providers.RegisterOCRFactory(Name, func(cfg providers.OCRProviderConfig) (providers.OCRProvider, error) {
		return New(Config{
			Languages:   cfg.Languages,
			PageSegMode: cfg.PageSegMode,
			Variables:   cfg.Variables,
		}), nil
	})
}

// Config holds Tesseract engine settings.
type Config struct {
	Languages   []string // defaults to ["eng"]
	PageSegMode int      // 0 leaves the engine default
	Variables   map[string]string
}

// Engine implements providers.OCRProvider using a fresh gosseract client per image.
type Engine struct {
	languages     []string
	pageSegMode   int
	variables     map[string]string
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New(cfg Config) *Engine {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Engine{
		languages:     langs,
		pageSegMode:   cfg.PageSegMode,
		variables:     cfg.Variables,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return Name }

// ProcessImage recognizes text in the decoded pixel buffer of img.
// The buffer is re-encoded to PNG for the engine only.
func (e *Engine) ProcessImage(ctx context.Context, img *asset.Asset) (*providers.OCRResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image()); err != nil {
		return nil, fmt.Errorf("encode image for tesseract: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if e.pageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.pageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	for k, v := range e.variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	confidence, words := meanWordConfidence(c)

	return &providers.OCRResult{
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
		Metadata: map[string]any{
			"languages": strings.Join(e.languages, "+"),
			"words":     words,
			"psm":       strconv.Itoa(e.pageSegMode),
		},
		ExecutionTime: time.Since(start),
	}, nil
}

func meanWordConfidence(c *gosseract.Client) (float64, int) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes)), len(boxes)
}

// Verify interface
var _ providers.OCRProvider = (*Engine)(nil)
