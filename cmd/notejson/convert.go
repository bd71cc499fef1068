package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/notejson/internal/api"
	"github.com/jackzampolin/notejson/internal/config"
	"github.com/jackzampolin/notejson/internal/pipeline"
	"github.com/jackzampolin/notejson/internal/providers"
	"github.com/jackzampolin/notejson/internal/reconcile"
	"github.com/jackzampolin/notejson/internal/server/endpoints"
)

var (
	convertRaw      bool
	convertSave     bool
	convertEndpoint string
	convertModel    string
	convertNoOCR    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <image>",
	Short: "Convert a handwritten note image to JSON",
	Long: `Convert one jpg, jpeg, or png note image in-process.

The image goes through OCR, then to the configured vision model together
with the OCR text. A reply that parses as JSON is printed under
"Structured JSON Output"; anything else is printed under
"Raw Output (Not Valid JSON)".

Examples:
  notejson convert note.jpg
  notejson convert note.png --raw > note.json
  notejson convert note.jpg --endpoint http://gpu-box:1234/v1/chat/completions
  notejson convert note.jpg -o json --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		mime, err := endpoints.MIMEForFilename(path)
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		h, cfgMgr, err := loadConfig(logger)
		if err != nil {
			return err
		}

		cfg := applyConvertOverrides(cfgMgr.Get())
		if err := cfg.Validate(); err != nil {
			return err
		}

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		registry.Reload(cfg.ToProviderRegistryConfig())

		p, err := pipeline.FromConfig(registry, cfg, logger)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()

		res, err := p.Run(ctx, pipeline.Input{Data: f, MIME: mime, Filename: filepath.Base(path)})
		if err != nil {
			// cobra prints this as "Error: <message>"
			return errors.New(endpoints.NewConvertErrorResponse(err).Error)
		}

		resp := endpoints.NewConvertResponse(res)
		if convertSave {
			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode run: %w", err)
			}
			saved, err := h.SaveRun(res.RunID, data)
			if err != nil {
				return err
			}
			logger.Info("saved run", "run_id", res.RunID, "path", saved)
		}

		if convertRaw {
			return printRaw(res.Outcome)
		}
		return api.Output(resp)
	},
}

// applyConvertOverrides copies cfg and applies per-invocation flags.
func applyConvertOverrides(base *config.Config) *config.Config {
	cfg := *base
	cfg.LLMProviders = make(map[string]config.LLMProviderCfg, len(base.LLMProviders))
	for name, p := range base.LLMProviders {
		cfg.LLMProviders[name] = p
	}

	if llm, ok := cfg.SelectedLLM(); ok {
		if convertEndpoint != "" {
			llm.Endpoint = convertEndpoint
		}
		if convertModel != "" {
			llm.Model = convertModel
		}
		cfg.LLMProviders[cfg.Defaults.LLMProvider] = llm
	}
	if convertNoOCR {
		cfg.Defaults.OCRProvider = config.NoOCR
	}
	return &cfg
}

// printRaw writes only the structured value, or the fallback text, to stdout.
func printRaw(o reconcile.Outcome) error {
	switch v := o.(type) {
	case reconcile.Structured:
		out, err := reconcile.Indent(v)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case reconcile.Fallback:
		fmt.Println(v.Text)
	}
	return nil
}

func init() {
	convertCmd.Flags().BoolVar(&convertRaw, "raw", false, "print only the JSON value (or fallback text)")
	convertCmd.Flags().BoolVar(&convertSave, "save", false, "save the result under <home>/runs/<run_id>.json")
	convertCmd.Flags().StringVar(&convertEndpoint, "endpoint", "", "override the chat completions URL")
	convertCmd.Flags().StringVar(&convertModel, "model", "", "override the model identifier")
	convertCmd.Flags().BoolVar(&convertNoOCR, "no-ocr", false, "skip OCR and send the no-text sentinel")

	rootCmd.AddCommand(convertCmd)
}
