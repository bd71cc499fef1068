// Package ocr runs a best-effort text extraction pass over a note image.
// Extraction never fails the caller: engine errors are captured in the
// Result and downstream stages see a fixed sentinel instead of text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/providers"
)

// NoTextSentinel replaces OCR text in the prompt when extraction failed or found nothing.
const NoTextSentinel = "No text extracted"

// Status values reported by Result.Status.
const (
	StatusText   = "text"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// ErrNoEngine is recorded when no OCR engine is configured.
var ErrNoEngine = errors.New("no OCR engine configured")

// Error wraps an engine failure.
type Error struct {
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ocr engine %s failed: %v", e.Engine, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of one extraction. It is never mutated after Extract returns.
type Result struct {
	Text       string         `json:"text"`
	Engine     string         `json:"engine"`
	Confidence float64        `json:"confidence,omitempty"` // mean word confidence in [0,1], 0 when unreported
	Metadata   map[string]any `json:"metadata,omitempty"`
	Err        error          `json:"-"`
	Duration   time.Duration  `json:"duration"`
}

// Status distinguishes usable text, an empty-but-successful pass, and a failure.
func (r Result) Status() string {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.Text == "":
		return StatusEmpty
	default:
		return StatusText
	}
}

// PromptText is the text handed to the prompt builder.
func (r Result) PromptText() string {
	if r.Err != nil || r.Text == "" {
		return NoTextSentinel
	}
	return r.Text
}

// Extractor runs a single OCR engine.
type Extractor struct {
	Engine providers.OCRProvider
	Logger *slog.Logger
}

// NewExtractor creates an extractor for engine. A nil engine is allowed.
func NewExtractor(engine providers.OCRProvider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{Engine: engine, Logger: logger}
}

// EngineName returns the configured engine name, or "none".
func (x *Extractor) EngineName() string {
	if x == nil || x.Engine == nil {
		return "none"
	}
	return x.Engine.Name()
}

// Extract runs OCR over img. It does not return an error.
func (x *Extractor) Extract(ctx context.Context, img *asset.Asset) Result {
	start := time.Now()
	name := x.EngineName()
	if x == nil || x.Engine == nil {
		return Result{Engine: name, Err: ErrNoEngine}
	}

	logger := x.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := x.run(ctx, img)
	if err != nil {
		wrapped := &Error{Engine: name, Err: err}
		logger.Warn("ocr failed, continuing without text", "engine", name, "error", err)
		return Result{Engine: name, Err: wrapped, Duration: time.Since(start)}
	}

	text := strings.TrimSpace(res.Text)
	logger.Debug("ocr complete", "engine", name, "chars", len(text), "confidence", res.Confidence, "duration", time.Since(start))
	return Result{
		Engine:     name,
		Text:       text,
		Confidence: res.Confidence,
		Metadata:   res.Metadata,
		Duration:   time.Since(start),
	}
}

// run calls the engine, converting panics from native bindings into errors.
func (x *Extractor) run(ctx context.Context, img *asset.Asset) (res *providers.OCRResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("engine panic: %v", p)
		}
	}()
	res, err = x.Engine.ProcessImage(ctx, img)
	if err == nil && res == nil {
		err = errors.New("engine returned no result")
	}
	return res, err
}
