package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	HTTPChatName = "http"

	DefaultEndpoint    = "http://localhost:1234/v1/chat/completions"
	DefaultModel       = "gemma-3-12b-it"
	DefaultTemperature = 0.3
)

// HTTPChatConfig holds configuration for the HTTP chat client.
type HTTPChatConfig struct {
	Endpoint   string        // full chat completions URL
	APIKey     string        // optional bearer token
	Model      string        // default model when the request has none
	Timeout    time.Duration // 0 leaves the round trip unbounded
	HTTPClient *http.Client  // optional (tests)
}

// HTTPChatClient posts OpenAI-compatible chat completion requests to a
// single configured endpoint, such as a local LM Studio server.
type HTTPChatClient struct {
	endpoint     string
	apiKey       string
	defaultModel string
	timeout      time.Duration
	client       *http.Client
}

// NewHTTPChatClient creates a new HTTP chat client.
func NewHTTPChatClient(cfg HTTPChatConfig) *HTTPChatClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPChatClient{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
		timeout:      cfg.Timeout,
		client:       client,
	}
}

// Name returns the client identifier.
func (c *HTTPChatClient) Name() string {
	return HTTPChatName
}

// Endpoint returns the configured chat completions URL.
func (c *HTTPChatClient) Endpoint() string {
	return c.endpoint
}

// Model returns the configured default model.
func (c *HTTPChatClient) Model() string {
	return c.defaultModel
}

// Chat sends one non-streaming chat completion request.
func (c *HTTPChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	body := chatRequest{
		Model:       model,
		Messages:    toWireMessages(req.Messages),
		Temperature: req.Temperature,
		Stream:      false,
	}

	resp, err := c.doRequest(ctx, &body)
	if err != nil {
		return nil, err
	}

	choice := resp.Choices[0]
	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}

	return &ChatResult{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		FinishReason:     choice.FinishReason,
		ExecutionTime:    time.Since(start),
		Provider:         HTTPChatName,
		ModelUsed:        modelUsed,
		RequestID:        requestID,
	}, nil
}

// doRequest makes exactly one POST to the endpoint.
func (c *HTTPChatClient) doRequest(ctx context.Context, body *chatRequest) (*chatResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return decodeEnvelope(respBody)
}

// Probe checks that the inference server answers on its models listing.
func (c *HTTPChatClient) Probe(ctx context.Context) error {
	url := BaseURLFromEndpoint(c.endpoint) + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Endpoint: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Endpoint: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// BaseURLFromEndpoint strips the chat completions path from an endpoint URL,
// leaving the API root (e.g. http://localhost:1234/v1).
func BaseURLFromEndpoint(endpoint string) string {
	base := strings.TrimRight(endpoint, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return strings.TrimRight(base, "/")
}

func toWireMessages(msgs []Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := chatMessage{Role: m.Role}
		if len(m.Images) > 0 {
			content := []chatContent{
				{Type: "text", Text: m.Content},
			}
			for _, img := range m.Images {
				content = append(content, chatContent{
					Type:     "image_url",
					ImageURL: &chatImageURL{URL: img.DataURL()},
				})
			}
			wm.Content = content
		} else {
			wm.Content = m.Content
		}
		out = append(out, wm)
	}
	return out
}

// Verify interface
var (
	_ LLMClient = (*HTTPChatClient)(nil)
	_ Prober    = (*HTTPChatClient)(nil)
)
