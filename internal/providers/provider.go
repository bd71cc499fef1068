package providers

import (
	"context"
	"time"

	"github.com/jackzampolin/notejson/internal/asset"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMClient sends a single chat completion request to a vision-capable model.
// Implementations never retry: one call is one round trip.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "http", "openai").
	Name() string
}

// Prober is implemented by clients that can check their endpoint answers
// without running inference.
type Prober interface {
	Probe(ctx context.Context) error
}

// OCRProvider handles image-to-text extraction.
type OCRProvider interface {
	// Name returns the provider identifier (e.g., "tesseract", "mistral-ocr").
	Name() string

	// ProcessImage extracts text from an image.
	ProcessImage(ctx context.Context, img *asset.Asset) (*OCRResult, error)
}

// ImagePart is an inline image attached to a message.
type ImagePart struct {
	MIME   string `json:"mime"`
	Base64 string `json:"base64"`
}

// DataURL returns the image as a data: URI.
func (p ImagePart) DataURL() string {
	return "data:" + p.MIME + ";base64," + p.Base64
}

// Message represents a chat message.
// When Images is non-empty the content is sent as a text segment followed by
// one image segment per entry, in order.
type Message struct {
	Role    string      `json:"role"`
	Content string      `json:"content"`
	Images  []ImagePart `json:"-"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the response from an LLM call.
type ChatResult struct {
	Content string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	FinishReason  string        `json:"finish_reason,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	Text string `json:"text"`

	// Confidence is the mean word confidence in [0,1] when the engine reports one.
	Confidence float64 `json:"confidence,omitempty"`

	// Metadata from provider (dimensions, usage, etc.)
	Metadata map[string]any `json:"metadata,omitempty"`

	ExecutionTime time.Duration `json:"execution_time"`
}
