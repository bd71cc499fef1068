package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackzampolin/notejson/internal/asset"
	"github.com/jackzampolin/notejson/internal/ocr"
	"github.com/jackzampolin/notejson/internal/providers"
	"github.com/jackzampolin/notejson/internal/reconcile"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func pngInput(t *testing.T, w, h int) Input {
	return Input{Data: bytes.NewReader(pngBytes(t, w, h)), MIME: "image/png", Filename: "note.png"}
}

// sizeOCR reports the image dimensions as its text, or fails when fail is set.
type sizeOCR struct {
	fail bool
}

func (sizeOCR) Name() string { return "size" }

func (s sizeOCR) ProcessImage(_ context.Context, a *asset.Asset) (*providers.OCRResult, error) {
	if s.fail {
		return nil, errors.New("engine crashed")
	}
	b := a.Bounds()
	return &providers.OCRResult{Text: fmt.Sprintf("%dx%d", b.Dx(), b.Dy())}, nil
}

// echoLLM answers with a JSON object holding the last line of the user text.
type echoLLM struct {
	calls []*providers.ChatRequest
}

func (*echoLLM) Name() string { return "echo" }

func (e *echoLLM) Chat(_ context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	e.calls = append(e.calls, req)
	user := req.Messages[len(req.Messages)-1].Content
	lines := strings.Split(user, "\n")
	b, _ := json.Marshal(map[string]string{"ocr": lines[len(lines)-1]})
	return &providers.ChatResult{
		Content:   "```json\n" + string(b) + "\n```",
		Provider:  "echo",
		ModelUsed: req.Model,
	}, nil
}

func TestPipeline_Run_Structured(t *testing.T) {
	llm := &echoLLM{}
	p := &Pipeline{
		LLM:         llm,
		OCR:         ocr.NewExtractor(sizeOCR{}, nil),
		Model:       providers.DefaultModel,
		Temperature: providers.DefaultTemperature,
	}

	res, err := p.Run(context.Background(), pngInput(t, 4, 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s, ok := res.Outcome.(reconcile.Structured)
	if !ok {
		t.Fatalf("Outcome = %#v, want Structured", res.Outcome)
	}
	if got := s.Value.(map[string]any)["ocr"]; got != "4x2" {
		t.Errorf("structured ocr = %v, want 4x2", got)
	}
	if res.OCR.Text != "4x2" || res.OCR.Status() != ocr.StatusText {
		t.Errorf("OCR = %+v", res.OCR)
	}
	if res.Model != providers.DefaultModel {
		t.Errorf("Model = %q", res.Model)
	}
	if res.RunID == "" {
		t.Error("expected a run ID")
	}

	req := llm.calls[0]
	if req.Temperature != providers.DefaultTemperature {
		t.Errorf("Temperature = %v", req.Temperature)
	}
	if req.RequestID != res.RunID {
		t.Errorf("RequestID = %q, want run ID %q", req.RequestID, res.RunID)
	}
	if len(req.Messages) != 2 || len(req.Messages[1].Images) != 1 {
		t.Fatalf("unexpected message shape: %+v", req.Messages)
	}
}

func TestPipeline_Run_OCRFailureStillCallsModel(t *testing.T) {
	mock := providers.NewMockClient()
	p := &Pipeline{
		LLM: mock,
		OCR: ocr.NewExtractor(sizeOCR{fail: true}, nil),
	}

	res, err := p.Run(context.Background(), pngInput(t, 3, 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Fatalf("LLM called %d times, want 1", mock.RequestCount())
	}
	if res.OCR.Status() != ocr.StatusFailed {
		t.Errorf("OCR status = %q, want failed", res.OCR.Status())
	}

	user := mock.LastRequest().Messages[1].Content
	if !strings.HasSuffix(user, "\n"+ocr.NoTextSentinel) {
		t.Errorf("user text = %q, want sentinel suffix", user)
	}
}

func TestPipeline_Run_NoOCREngine(t *testing.T) {
	mock := providers.NewMockClient()
	p := &Pipeline{LLM: mock}

	res, err := p.Run(context.Background(), pngInput(t, 2, 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !errors.Is(res.OCR.Err, ocr.ErrNoEngine) {
		t.Errorf("OCR.Err = %v, want ErrNoEngine", res.OCR.Err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("LLM called %d times, want 1", mock.RequestCount())
	}
}

func TestPipeline_Run_Fallback(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "Sure, here's the note: milk, eggs, bread"
	p := &Pipeline{LLM: mock, OCR: ocr.NewExtractor(sizeOCR{}, nil)}

	res, err := p.Run(context.Background(), pngInput(t, 2, 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	f, ok := res.Outcome.(reconcile.Fallback)
	if !ok {
		t.Fatalf("Outcome = %#v, want Fallback", res.Outcome)
	}
	if f.Text != mock.ResponseText || f.Reason != reconcile.ReasonNotJSON {
		t.Errorf("Fallback = %+v", f)
	}
}

func TestPipeline_Run_DecodeError(t *testing.T) {
	mock := providers.NewMockClient()
	p := &Pipeline{LLM: mock, OCR: ocr.NewExtractor(sizeOCR{}, nil)}

	res, err := p.Run(context.Background(), Input{Data: strings.NewReader("not an image"), MIME: "image/jpeg"})
	if res != nil {
		t.Error("expected no result")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageDecode {
		t.Fatalf("error = %v, want decode StageError", err)
	}
	var decErr *asset.DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("error = %v, want wrapped *asset.DecodeError", err)
	}
	if mock.RequestCount() != 0 {
		t.Error("LLM should not be called after a decode failure")
	}
}

func TestPipeline_Run_TransportErrorHasNoOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := &Pipeline{
		LLM: providers.NewHTTPChatClient(providers.HTTPChatConfig{Endpoint: server.URL}),
		OCR: ocr.NewExtractor(sizeOCR{}, nil),
	}

	res, err := p.Run(context.Background(), pngInput(t, 2, 2))
	if res != nil {
		t.Errorf("expected no result, got outcome %#v", res.Outcome)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageInference {
		t.Fatalf("error = %v, want inference StageError", err)
	}
	var transportErr *providers.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want wrapped *providers.TransportError", err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", transportErr.StatusCode)
	}
}

func TestPipeline_Run_EnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	p := &Pipeline{LLM: providers.NewHTTPChatClient(providers.HTTPChatConfig{Endpoint: server.URL})}

	_, err := p.Run(context.Background(), pngInput(t, 2, 2))
	var envErr *providers.EnvelopeError
	if !errors.As(err, &envErr) {
		t.Fatalf("error = %v, want wrapped *providers.EnvelopeError", err)
	}
}

func TestPipeline_Run_SequentialRunsAreIndependent(t *testing.T) {
	llm := &echoLLM{}
	p := &Pipeline{LLM: llm, OCR: ocr.NewExtractor(sizeOCR{}, nil)}

	first, err := p.Run(context.Background(), pngInput(t, 6, 1))
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// Second run on a different image with a failing engine.
	p.OCR = ocr.NewExtractor(sizeOCR{fail: true}, nil)
	second, err := p.Run(context.Background(), pngInput(t, 2, 7))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.RunID == second.RunID {
		t.Error("runs share a run ID")
	}
	if second.OCR.Text != "" || second.OCR.Status() != ocr.StatusFailed {
		t.Errorf("second OCR leaked state: %+v", second.OCR)
	}
	if got := second.Outcome.(reconcile.Structured).Value.(map[string]any)["ocr"]; got != ocr.NoTextSentinel {
		t.Errorf("second outcome = %v, want sentinel-derived", got)
	}
	if got := first.Outcome.(reconcile.Structured).Value.(map[string]any)["ocr"]; got != "6x1" {
		t.Errorf("first outcome changed to %v", got)
	}
	if llm.calls[0].Messages[1].Images[0].Base64 == llm.calls[1].Messages[1].Images[0].Base64 {
		t.Error("second run sent the first run's image")
	}
}

func TestPipeline_Run_NoLLM(t *testing.T) {
	_, err := (&Pipeline{}).Run(context.Background(), pngInput(t, 1, 1))
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageInference {
		t.Fatalf("error = %v, want inference StageError", err)
	}
}
