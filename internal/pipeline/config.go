package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/notejson/internal/config"
	"github.com/jackzampolin/notejson/internal/ocr"
	"github.com/jackzampolin/notejson/internal/providers"
)

// FromConfig assembles a Pipeline from the providers cfg selects. The LLM
// client must be registered. A missing OCR engine only degrades the OCR
// stage, matching how an engine failure is handled at run time.
func FromConfig(reg *providers.Registry, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if reg == nil || cfg == nil {
		return nil, fmt.Errorf("registry and config are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	llm, err := reg.GetLLM(cfg.Defaults.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("llm provider %q unavailable: %w", cfg.Defaults.LLMProvider, err)
	}

	var model string
	if llmCfg, ok := cfg.SelectedLLM(); ok {
		model = llmCfg.Model
	}

	var engine providers.OCRProvider
	if !cfg.OCRDisabled() {
		engine, err = reg.GetOCR(cfg.Defaults.OCRProvider)
		if err != nil {
			logger.Warn("ocr provider unavailable, runs will use the no-text sentinel",
				"ocr_provider", cfg.Defaults.OCRProvider, "error", err)
			engine = nil
		}
	}

	return &Pipeline{
		LLM:         llm,
		OCR:         ocr.NewExtractor(engine, logger),
		Model:       model,
		Temperature: cfg.Defaults.Temperature,
		Logger:      logger,
	}, nil
}
