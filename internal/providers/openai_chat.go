package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIChatName = "openai"

// OpenAIChatConfig holds configuration for the OpenAI SDK chat client.
type OpenAIChatConfig struct {
	APIKey     string
	BaseURL    string        // API root, e.g. http://localhost:1234/v1 (SDK default when empty)
	Model      string        // default model when the request has none
	Timeout    time.Duration // HTTP timeout, 0 for none
	HTTPClient *http.Client  // optional (tests)
}

// OpenAIChatClient implements LLMClient using the official OpenAI SDK.
// It targets any OpenAI-compatible host and never retries.
type OpenAIChatClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       openai.Client
}

// NewOpenAIChatClient creates a new OpenAI SDK chat client.
func NewOpenAIChatClient(cfg OpenAIChatConfig) *OpenAIChatClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIChatClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.Model,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIChatClient) Name() string {
	return OpenAIChatName
}

// Model returns the configured default model.
func (c *OpenAIChatClient) Model() string {
	return c.defaultModel
}

// Chat sends one chat completion request through the SDK.
func (c *OpenAIChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(c.baseURL, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &EnvelopeError{Reason: "missing choices[0].message.content", Body: resp.RawJSON()}
	}

	choice := resp.Choices[0]
	if !choice.Message.JSON.Content.Valid() {
		return nil, &EnvelopeError{Reason: "missing choices[0].message.content", Body: resp.RawJSON()}
	}
	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}

	return &ChatResult{
		Content:          choice.Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		FinishReason:     choice.FinishReason,
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIChatName,
		ModelUsed:        modelUsed,
		RequestID:        requestID,
	}, nil
}

// Probe lists models on the configured host.
func (c *OpenAIChatClient) Probe(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return mapOpenAIError(c.baseURL, err)
	}
	return nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(m.Content),
			}
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURL(),
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

// mapOpenAIError converts SDK errors into TransportError.
func mapOpenAIError(endpoint string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = apiErr.RawJSON()
		}
		return &TransportError{
			Endpoint:   endpoint,
			StatusCode: apiErr.StatusCode,
			Body:       body,
			Err:        err,
		}
	}
	return &TransportError{Endpoint: endpoint, Err: err}
}

// Verify interface
var (
	_ LLMClient = (*OpenAIChatClient)(nil)
	_ Prober    = (*OpenAIChatClient)(nil)
)
