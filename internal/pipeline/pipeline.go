// Package pipeline runs one note image through normalization, OCR, prompt
// construction, inference, and reconciliation.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/ocr"
	"github.com/jackzampolin/notejson/internal/prompt"
	"github.com/jackzampolin/notejson/internal/providers"
	"github.com/jackzampolin/notejson/internal/reconcile"
)

// Stage names, in execution order.
const (
	StageDecode    = "decode"
	StageOCR       = "ocr"
	StagePrompt    = "prompt"
	StageInference = "inference"
	StageReconcile = "reconcile"
)

// StageError reports the stage a run stopped at.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Input is one uploaded image.
type Input struct {
	Data     io.ReadSeeker
	MIME     string
	Filename string
}

// Run is the per-run context handed from stage to stage. A Run is created
// fresh for every call to Pipeline.Run and is never shared.
type Run struct {
	ID       string
	Started  time.Time
	Filename string
	Asset    *asset.Asset
	OCR      ocr.Result
	Prompt   prompt.Prompt
}

// Usage is the token accounting reported by the inference endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// Timings records per-stage wall time.
type Timings struct {
	OCR       time.Duration `json:"ocr" yaml:"ocr"`
	Inference time.Duration `json:"inference" yaml:"inference"`
	Total     time.Duration `json:"total" yaml:"total"`
}

// Result is what a caller renders after a successful run.
type Result struct {
	RunID    string
	Filename string
	OCR      ocr.Result
	Raw      string
	Outcome  reconcile.Outcome
	Model    string
	Provider string
	Usage    Usage
	Timings  Timings
}

// Pipeline holds the collaborators for a run. It carries no per-run state,
// so one Pipeline may serve concurrent runs.
type Pipeline struct {
	LLM         providers.LLMClient
	OCR         *ocr.Extractor
	Model       string
	Temperature float64
	Logger      *slog.Logger
}

// Run executes every stage for in. Decode, transport, and envelope failures
// are returned as *StageError and produce no Result. OCR failures and
// non-JSON replies do not fail the run.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if p.LLM == nil {
		return nil, &StageError{Stage: StageInference, Err: fmt.Errorf("no LLM client configured")}
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := &Run{
		ID:       uuid.New().String(),
		Started:  time.Now(),
		Filename: in.Filename,
	}
	logger = logger.With("run_id", run.ID)

	a, err := asset.Normalize(in.Data, in.MIME)
	if err != nil {
		logger.Warn("decode failed", "filename", in.Filename, "error", err)
		return nil, &StageError{Stage: StageDecode, Err: err}
	}
	run.Asset = a
	logger.Debug("image decoded", "format", a.Format(), "bytes", a.Size(), "width", a.Bounds().Dx(), "height", a.Bounds().Dy())

	run.OCR = p.OCR.Extract(ctx, a)
	logger.Info("ocr stage complete", "engine", run.OCR.Engine, "status", run.OCR.Status(), "duration", run.OCR.Duration)

	run.Prompt = prompt.Build(a, run.OCR)

	inferStart := time.Now()
	chat, err := p.LLM.Chat(ctx, &providers.ChatRequest{
		Messages:    run.Prompt.Messages(),
		Model:       p.Model,
		Temperature: p.Temperature,
		RequestID:   run.ID,
	})
	inferDuration := time.Since(inferStart)
	if err != nil {
		logger.Error("inference failed", "provider", p.LLM.Name(), "model", p.Model, "error", err)
		return nil, &StageError{Stage: StageInference, Err: err}
	}
	logger.Info("inference complete", "provider", chat.Provider, "model", chat.ModelUsed, "duration", inferDuration)

	outcome := reconcile.Reconcile(chat.Content)
	logger.Info("run complete", "outcome", outcome.Kind(), "duration", time.Since(run.Started))

	model := chat.ModelUsed
	if model == "" {
		model = p.Model
	}

	return &Result{
		RunID:    run.ID,
		Filename: run.Filename,
		OCR:      run.OCR,
		Raw:      chat.Content,
		Outcome:  outcome,
		Model:    model,
		Provider: chat.Provider,
		Usage: Usage{
			PromptTokens:     chat.PromptTokens,
			CompletionTokens: chat.CompletionTokens,
			TotalTokens:      chat.TotalTokens,
		},
		Timings: Timings{
			OCR:       run.OCR.Duration,
			Inference: inferDuration,
			Total:     time.Since(run.Started),
		},
	}, nil
}
