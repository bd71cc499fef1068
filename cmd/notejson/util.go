package main

import (
	"os"

	"github.com/jackzampolin/notejson/internal/api"
	"github.com/jackzampolin/notejson/internal/config"
)

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// outputConfig prints cfg as YAML unless JSON was requested.
func outputConfig(cfg *config.Config) error {
	if api.GetOutputFormat() == api.OutputFormatJSON {
		return api.Output(cfg)
	}
	return api.OutputTo(os.Stdout, api.OutputFormatYAML, cfg)
}
