package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/notejson/internal/api"
	"github.com/jackzampolin/notejson/internal/providers"
	"github.com/jackzampolin/notejson/internal/svcctx"
)

// Inference readiness values reported by /ready.
const (
	InferenceOK          = "ok"
	InferenceUnreachable = "unreachable"
	InferenceNotProbed   = "not_probed"
	InferenceMissing     = "not_configured"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status" yaml:"status"`
	Inference string `json:"inference,omitempty" yaml:"inference,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Probes the selected inference endpoint
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Inference: InferenceOK}

	registry := svcctx.RegistryFrom(r.Context())
	cfg := svcctx.ConfigFrom(r.Context())
	if registry == nil || cfg == nil {
		resp.Status = "degraded"
		resp.Inference = InferenceMissing
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	llm, err := registry.GetLLM(cfg.Defaults.LLMProvider)
	if err != nil {
		resp.Status = "degraded"
		resp.Inference = InferenceMissing
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	prober, ok := llm.(providers.Prober)
	if !ok {
		resp.Inference = InferenceNotProbed
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err := prober.Probe(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Inference = InferenceUnreachable
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the inference endpoint)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Status:    %s\n", resp.Status)
			fmt.Printf("Inference: %s\n", resp.Inference)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server     string          `json:"server" yaml:"server"`
	ConfigFile string          `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Providers  ProvidersStatus `json:"providers" yaml:"providers"`
	Defaults   DefaultsStatus  `json:"defaults" yaml:"defaults"`
}

// ProvidersStatus shows registered OCR and LLM providers.
type ProvidersStatus struct {
	OCR []string `json:"ocr" yaml:"ocr"`
	LLM []string `json:"llm" yaml:"llm"`
}

// DefaultsStatus shows what a conversion will use.
type DefaultsStatus struct {
	LLMProvider string  `json:"llm_provider" yaml:"llm_provider"`
	OCRProvider string  `json:"ocr_provider" yaml:"ocr_provider"`
	OCRReady    bool    `json:"ocr_ready" yaml:"ocr_ready"` // false means runs degrade to the no-text sentinel
	Endpoint    string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Server status
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	StatusResponse
//	@Router		/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server: "running",
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry != nil {
		resp.Providers.OCR = registry.ListOCR()
		resp.Providers.LLM = registry.ListLLM()
	}

	if s := svcctx.ServicesFrom(r.Context()); s != nil && s.ConfigManager != nil {
		resp.ConfigFile = s.ConfigManager.ConfigFileUsed()
	}

	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil {
		resp.Defaults.LLMProvider = cfg.Defaults.LLMProvider
		resp.Defaults.OCRProvider = cfg.Defaults.OCRProvider
		resp.Defaults.Temperature = cfg.Defaults.Temperature
		resp.Defaults.OCRReady = registry != nil && !cfg.OCRDisabled() && registry.HasOCR(cfg.Defaults.OCRProvider)
		if llm, ok := cfg.SelectedLLM(); ok {
			resp.Defaults.Endpoint = llm.Endpoint
			resp.Defaults.Model = llm.Model
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Server: %s\n", resp.Server)
			if resp.ConfigFile != "" {
				fmt.Printf("Config: %s\n", resp.ConfigFile)
			}
			fmt.Printf("Defaults:\n")
			fmt.Printf("  LLM:         %s (%s @ %s)\n", resp.Defaults.LLMProvider, resp.Defaults.Model, resp.Defaults.Endpoint)
			fmt.Printf("  OCR:         %s (ready: %t)\n", resp.Defaults.OCRProvider, resp.Defaults.OCRReady)
			fmt.Printf("  Temperature: %v\n", resp.Defaults.Temperature)
			fmt.Printf("Providers:\n")
			fmt.Printf("  LLM: %v\n", resp.Providers.LLM)
			fmt.Printf("  OCR: %v\n", resp.Providers.OCR)
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
