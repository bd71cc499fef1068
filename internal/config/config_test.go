package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/notejson/internal/providers"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

const localConfig = `
llm_providers:
  local:
    type: http
    endpoint: http://inference:1234/v1/chat/completions
    model: llava-13b
    timeout: 45s
    enabled: true
ocr_providers:
  tesseract:
    type: tesseract
    languages: [eng, deu]
    psm: 6
    variables:
      tessedit_char_whitelist: abc
    enabled: true
defaults:
  llm_provider: local
  ocr_provider: tesseract
  temperature: 0.1
server:
  port: "9090"
`

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	llm, ok := cfg.SelectedLLM()
	if !ok {
		t.Fatal("expected default LLM provider to exist")
	}
	if llm.Endpoint != "http://localhost:1234/v1/chat/completions" {
		t.Errorf("default endpoint = %s", llm.Endpoint)
	}
	if llm.Model != "gemma-3-12b-it" {
		t.Errorf("default model = %s", llm.Model)
	}
	if cfg.Defaults.Temperature != 0.3 {
		t.Errorf("default temperature = %v", cfg.Defaults.Temperature)
	}
	if cfg.OCRProviders["mistral"].APIKey != "${MISTRAL_API_KEY}" {
		t.Error("expected mistral API key placeholder")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		if result := ResolveEnvVars("${TEST_API_KEY}"); result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("resolves inside a URL", func(t *testing.T) {
		t.Setenv("TEST_INFER_HOST", "gpu-box")

		result := ResolveEnvVars("http://${TEST_INFER_HOST}:1234/v1/chat/completions")
		if result != "http://gpu-box:1234/v1/chat/completions" {
			t.Errorf("got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if result := ResolveEnvVars("literal-value"); result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Defaults.Temperature = 2.5 },
			wantErr: "temperature",
		},
		{
			name:    "unknown llm provider",
			mutate:  func(c *Config) { c.Defaults.LLMProvider = "missing" },
			wantErr: "not defined",
		},
		{
			name:    "disabled llm provider",
			mutate:  func(c *Config) { c.Defaults.LLMProvider = "openai" },
			wantErr: "disabled",
		},
		{
			name: "unknown llm type",
			mutate: func(c *Config) {
				llm := c.LLMProviders["local"]
				llm.Type = "grpc"
				c.LLMProviders["local"] = llm
			},
			wantErr: "unknown type",
		},
		{
			name:    "unknown ocr provider",
			mutate:  func(c *Config) { c.Defaults.OCRProvider = "paddle" },
			wantErr: "not defined",
		},
		{
			name:   "ocr disabled",
			mutate: func(c *Config) { c.Defaults.OCRProvider = NoOCR },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_MISTRAL_KEY", "m-key")

	cfg := DefaultConfig()
	mistral := cfg.OCRProviders["mistral"]
	mistral.APIKey = "${TEST_MISTRAL_KEY}"
	cfg.OCRProviders["mistral"] = mistral

	rc := cfg.ToProviderRegistryConfig()

	if got := rc.OCRProviders["mistral"].APIKey; got != "m-key" {
		t.Errorf("mistral APIKey = %q, want resolved m-key", got)
	}
	local := rc.LLMProviders["local"]
	if local.Type != providers.HTTPChatName || local.Endpoint != providers.DefaultEndpoint || !local.Enabled {
		t.Errorf("local = %+v", local)
	}
	if langs := rc.OCRProviders["tesseract"].Languages; len(langs) != 1 || langs[0] != "eng" {
		t.Errorf("tesseract languages = %v", langs)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		mgr, err := NewManager(writeConfig(t, localConfig))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		llm, _ := cfg.SelectedLLM()
		if llm.Model != "llava-13b" {
			t.Errorf("model = %s, want llava-13b", llm.Model)
		}
		if llm.Timeout != 45*time.Second {
			t.Errorf("timeout = %v, want 45s", llm.Timeout)
		}
		if cfg.Defaults.Temperature != 0.1 {
			t.Errorf("temperature = %v, want 0.1", cfg.Defaults.Temperature)
		}
		if cfg.OCRProviders["tesseract"].PageSegMode != 6 {
			t.Errorf("psm = %d, want 6", cfg.OCRProviders["tesseract"].PageSegMode)
		}
		rc := cfg.ToProviderRegistryConfig()
		if got := rc.OCRProviders["tesseract"].Variables["tessedit_char_whitelist"]; got != "abc" {
			t.Errorf("tesseract variables = %v, want whitelist abc", rc.OCRProviders["tesseract"].Variables)
		}
		if cfg.Server.Port != "9090" {
			t.Errorf("port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("host = %s, want default 127.0.0.1", cfg.Server.Host)
		}
		if mgr.ConfigFileUsed() == "" {
			t.Error("expected ConfigFileUsed to report the file")
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("NOTEJSON_DEFAULTS_TEMPERATURE", "0.7")

		mgr, err := NewManager(writeConfig(t, localConfig))
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Defaults.Temperature; got != 0.7 {
			t.Errorf("temperature = %v, want 0.7 from env", got)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		bad := strings.Replace(localConfig, "llm_provider: local", "llm_provider: nope", 1)
		_, err := NewManager(writeConfig(t, bad))
		if err == nil {
			t.Fatal("expected error for config selecting an undefined provider")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "llm_providers: [unclosed")); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestManager_OnChange(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, localConfig))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 2 {
		t.Errorf("expected 2 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Reload(t *testing.T) {
	configFile := writeConfig(t, localConfig)
	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var calls atomic.Int32
	var lastTemp atomic.Value
	mgr.OnChange(func(cfg *Config) {
		calls.Add(1)
		lastTemp.Store(cfg.Defaults.Temperature)
	})

	t.Run("valid edit applies", func(t *testing.T) {
		updated := strings.Replace(localConfig, "temperature: 0.1", "temperature: 0.5", 1)
		if err := os.WriteFile(configFile, []byte(updated), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := mgr.v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig: %v", err)
		}
		mgr.reload(configFile)

		if got := mgr.Get().Defaults.Temperature; got != 0.5 {
			t.Errorf("temperature = %v, want 0.5", got)
		}
		if calls.Load() != 1 || lastTemp.Load().(float64) != 0.5 {
			t.Errorf("callback calls = %d, last temp = %v", calls.Load(), lastTemp.Load())
		}
	})

	t.Run("invalid edit keeps previous config", func(t *testing.T) {
		updated := strings.Replace(localConfig, "temperature: 0.1", "temperature: 9", 1)
		if err := os.WriteFile(configFile, []byte(updated), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := mgr.v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig: %v", err)
		}
		mgr.reload(configFile)

		if got := mgr.Get().Defaults.Temperature; got != 0.5 {
			t.Errorf("temperature = %v, want previous 0.5", got)
		}
		if calls.Load() != 1 {
			t.Errorf("callback should not fire for rejected config, calls = %d", calls.Load())
		}
	})
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, localConfig))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Defaults.LLMProvider
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "# notejson configuration") {
		t.Error("expected header comment")
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("written default config does not load: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Defaults.LLMProvider != "local" || cfg.Defaults.Temperature != 0.3 {
		t.Errorf("reloaded defaults = %+v", cfg.Defaults)
	}
	if llm, _ := cfg.SelectedLLM(); llm.Endpoint != providers.DefaultEndpoint {
		t.Errorf("reloaded endpoint = %s", llm.Endpoint)
	}
}
