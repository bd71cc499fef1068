package providers

import (
	"os"
)

// TestConfig holds provider settings loaded from environment variables.
// Live tests use it to reach real endpoints and skip when unset.
type TestConfig struct {
	Endpoint      string // NOTEJSON_TEST_ENDPOINT, a chat completions URL
	Model         string // NOTEJSON_TEST_MODEL
	MistralAPIKey string // MISTRAL_API_KEY
}

// LoadTestConfig loads provider settings from environment variables.
// Returns a TestConfig with whatever values are available.
func LoadTestConfig() TestConfig {
	return TestConfig{
		Endpoint:      os.Getenv("NOTEJSON_TEST_ENDPOINT"),
		Model:         os.Getenv("NOTEJSON_TEST_MODEL"),
		MistralAPIKey: os.Getenv("MISTRAL_API_KEY"),
	}
}

// HasEndpoint returns true if an inference endpoint is configured.
func (c TestConfig) HasEndpoint() bool {
	return c.Endpoint != ""
}

// HasMistral returns true if Mistral API key is configured.
func (c TestConfig) HasMistral() bool {
	return c.MistralAPIKey != ""
}

// NewHTTPChatClient creates an HTTP chat client from test config.
// Returns nil if not configured.
func (c TestConfig) NewHTTPChatClient() *HTTPChatClient {
	if !c.HasEndpoint() {
		return nil
	}
	return NewHTTPChatClient(HTTPChatConfig{
		Endpoint: c.Endpoint,
		Model:    c.Model,
	})
}

// NewMistralOCRClient creates a Mistral OCR client from test config.
// Returns nil if not configured.
func (c TestConfig) NewMistralOCRClient() *MistralOCRClient {
	if !c.HasMistral() {
		return nil
	}
	return NewMistralOCRClient(MistralOCRConfig{
		APIKey: c.MistralAPIKey,
	})
}

// ToRegistryConfig converts test config to a RegistryConfig for the provider registry.
// Only includes providers that are configured.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{
		OCRProviders: make(map[string]OCRProviderConfig),
		LLMProviders: make(map[string]LLMProviderConfig),
	}

	if c.HasEndpoint() {
		cfg.LLMProviders["local"] = LLMProviderConfig{
			Type:     HTTPChatName,
			Endpoint: c.Endpoint,
			Model:    c.Model,
			Enabled:  true,
		}
	}

	if c.HasMistral() {
		cfg.OCRProviders["mistral"] = OCRProviderConfig{
			Type:    MistralOCRName,
			APIKey:  c.MistralAPIKey,
			Enabled: true,
		}
	}

	return cfg
}
