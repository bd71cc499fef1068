package providers

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// Registry holds references to LLM clients and OCR providers.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu           sync.RWMutex
	llmClients   map[string]LLMClient
	ocrProviders map[string]OCRProvider
	llmConfigs   map[string]LLMProviderConfig
	ocrConfigs   map[string]OCRProviderConfig
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients:   make(map[string]LLMClient),
		ocrProviders: make(map[string]OCRProvider),
		llmConfigs:   make(map[string]LLMProviderConfig),
		ocrConfigs:   make(map[string]OCRProviderConfig),
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	delete(r.llmConfigs, name)
	r.logger.Info("registered LLM client", "name", name)
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrProviders[name] = provider
	delete(r.ocrConfigs, name)
	r.logger.Info("registered OCR provider", "name", name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocrProviders[name]
	if !ok {
		return nil, fmt.Errorf("OCR provider not found: %s", name)
	}
	return provider, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListOCR returns all registered OCR provider names, sorted.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocrProviders))
	for name := range r.ocrProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// HasOCR checks if an OCR provider is registered.
func (r *Registry) HasOCR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ocrProviders[name]
	return ok
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
	OCRProviders map[string]OCRProviderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with resolved API key.
type LLMProviderConfig struct {
	Type     string // "http", "openai"
	Endpoint string // chat completions URL
	Model    string
	APIKey   string // resolved API key, optional for local servers
	Timeout  time.Duration
	Enabled  bool
}

// OCRProviderConfig matches config.OCRProviderCfg with resolved API key.
type OCRProviderConfig struct {
	Type        string            // "tesseract", "mistral-ocr"
	Model       string            // remote model name
	APIKey      string            // resolved API key
	Languages   []string          // tesseract languages, e.g. ["eng"]
	PageSegMode int               // tesseract page segmentation mode, 0 for engine default
	Variables   map[string]string // tesseract variables
	Enabled     bool
}

func (c OCRProviderConfig) equal(o OCRProviderConfig) bool {
	return c.Type == o.Type &&
		c.Model == o.Model &&
		c.APIKey == o.APIKey &&
		c.PageSegMode == o.PageSegMode &&
		c.Enabled == o.Enabled &&
		slices.Equal(c.Languages, o.Languages) &&
		maps.Equal(c.Variables, o.Variables)
}

// OCRFactory builds an OCR provider from its config. Engines that live in
// their own package (cgo-backed ones in particular) register a factory at init.
type OCRFactory func(cfg OCRProviderConfig) (OCRProvider, error)

var (
	ocrFactoriesMu sync.RWMutex
	ocrFactories   = map[string]OCRFactory{}
)

// RegisterOCRFactory makes an OCR provider type available to config-driven registries.
func RegisterOCRFactory(typ string, f OCRFactory) {
	ocrFactoriesMu.Lock()
	defer ocrFactoriesMu.Unlock()
	ocrFactories[typ] = f
}

func lookupOCRFactory(typ string) (OCRFactory, bool) {
	ocrFactoriesMu.RLock()
	defer ocrFactoriesMu.RUnlock()
	f, ok := ocrFactories[typ]
	return f, ok
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with the credentials their type needs will be registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured will be unregistered.
// Providers with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantLLM := make(map[string]bool)
	wantOCR := make(map[string]bool)

	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled {
			continue
		}
		wantLLM[name] = true

		prev, hasExisting := r.llmConfigs[name]
		if hasExisting && prev == provCfg {
			continue
		}
		client, err := createLLMClient(provCfg)
		if err != nil {
			r.logger.Warn("skipping LLM client", "name", name, "type", provCfg.Type, "error", err)
			delete(wantLLM, name)
			continue
		}
		r.llmClients[name] = client
		r.llmConfigs[name] = provCfg
		if hasExisting {
			r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
		} else {
			r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
		}
	}

	for name, provCfg := range cfg.OCRProviders {
		if !provCfg.Enabled {
			continue
		}
		wantOCR[name] = true

		prev, hasExisting := r.ocrConfigs[name]
		if hasExisting && prev.equal(provCfg) {
			continue
		}
		provider, err := createOCRProvider(provCfg)
		if err != nil {
			r.logger.Warn("skipping OCR provider", "name", name, "type", provCfg.Type, "error", err)
			delete(wantOCR, name)
			continue
		}
		r.ocrProviders[name] = provider
		r.ocrConfigs[name] = provCfg
		if hasExisting {
			r.logger.Info("updated OCR provider", "name", name, "type", provCfg.Type)
		} else {
			r.logger.Info("registered OCR provider", "name", name, "type", provCfg.Type)
		}
	}

	// Only config-managed entries are removed; manual registrations stay.
	for name := range r.llmConfigs {
		if !wantLLM[name] {
			delete(r.llmClients, name)
			delete(r.llmConfigs, name)
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
	for name := range r.ocrConfigs {
		if !wantOCR[name] {
			delete(r.ocrProviders, name)
			delete(r.ocrConfigs, name)
			r.logger.Info("unregistered OCR provider", "name", name)
		}
	}
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) (LLMClient, error) {
	switch cfg.Type {
	case HTTPChatName, "":
		return NewHTTPChatClient(HTTPChatConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout,
		}), nil
	case OpenAIChatName:
		return NewOpenAIChatClient(OpenAIChatConfig{
			APIKey:  cfg.APIKey,
			BaseURL: BaseURLFromEndpoint(cfg.Endpoint),
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type %q", cfg.Type)
	}
}

// createOCRProvider creates an OCR provider based on provider type.
func createOCRProvider(cfg OCRProviderConfig) (OCRProvider, error) {
	switch cfg.Type {
	case MistralOCRName:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("api key required")
		}
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}), nil
	default:
		if f, ok := lookupOCRFactory(cfg.Type); ok {
			return f(cfg)
		}
		return nil, fmt.Errorf("unknown OCR provider type %q", cfg.Type)
	}
}
