package config

import (
	"time"

	"github.com/jackzampolin/notejson/internal/providers"
)

// Config holds notejson configuration.
// Stored at: ./config.yaml or {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	OCRProviders map[string]OCRProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
}

// LLMProviderCfg configures an inference endpoint.
type LLMProviderCfg struct {
	Type     string        `mapstructure:"type" yaml:"type"`         // "http", "openai"
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"` // chat completions URL
	Model    string        `mapstructure:"model" yaml:"model"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"` // 0 = transport default
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
}

// OCRProviderCfg configures an OCR engine.
type OCRProviderCfg struct {
	Type        string            `mapstructure:"type" yaml:"type"`   // "tesseract", "mistral-ocr"
	Model       string            `mapstructure:"model" yaml:"model"` // remote engines only
	APIKey      string            `mapstructure:"api_key" yaml:"api_key"`
	Languages   []string          `mapstructure:"languages" yaml:"languages"`
	PageSegMode int               `mapstructure:"psm" yaml:"psm"`
	Variables   map[string]string `mapstructure:"variables" yaml:"variables,omitempty"` // tesseract SetVariable pairs
	Enabled     bool              `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg selects the providers and request parameters used for a run.
type DefaultsCfg struct {
	LLMProvider string  `mapstructure:"llm_provider" yaml:"llm_provider"`
	OCRProvider string  `mapstructure:"ocr_provider" yaml:"ocr_provider"` // "none" disables OCR
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// ServerCfg holds HTTP server settings.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// NoOCR disables the OCR pass when used as defaults.ocr_provider.
const NoOCR = "none"

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"local": {
				Type:     providers.HTTPChatName,
				Endpoint: providers.DefaultEndpoint,
				Model:    providers.DefaultModel,
				Enabled:  true,
			},
			"openai": {
				Type:     providers.OpenAIChatName,
				Endpoint: "https://api.openai.com/v1/chat/completions",
				Model:    "gpt-4o-mini",
				APIKey:   "${OPENAI_API_KEY}",
				Enabled:  false,
			},
		},
		OCRProviders: map[string]OCRProviderCfg{
			"tesseract": {
				Type:      "tesseract",
				Languages: []string{"eng"},
				Enabled:   true,
			},
			"mistral": {
				Type:    providers.MistralOCRName,
				APIKey:  "${MISTRAL_API_KEY}",
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "local",
			OCRProvider: "tesseract",
			Temperature: providers.DefaultTemperature,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// SelectedLLM returns the config of the default LLM provider.
func (c *Config) SelectedLLM() (LLMProviderCfg, bool) {
	return c.GetLLMProvider(c.Defaults.LLMProvider)
}

// OCRDisabled reports whether runs skip the OCR pass.
func (c *Config) OCRDisabled() bool {
	return c.Defaults.OCRProvider == "" || c.Defaults.OCRProvider == NoOCR
}
