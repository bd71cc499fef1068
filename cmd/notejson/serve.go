package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/notejson/internal/server"
)

var (
	serveHost string
	servePort string
	serveWait time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the notejson server",
	Long: `Start the notejson HTTP server.

The server provides:
  - POST /api/convert - Convert an uploaded note image (multipart field "file")
  - /health           - Basic server health check
  - /ready            - Readiness check (probes the inference endpoint)
  - /status           - Loaded providers and defaults

Edits to the config file are picked up without a restart.

Examples:
  notejson serve                    # Start on the configured port (default 8080)
  notejson serve --port 3000        # Start on custom port
  notejson serve --wait 2m          # Wait for the model server before listening`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger()
		if err != nil {
			return err
		}

		h, cfgMgr, err := loadConfig(logger)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfg := cfgMgr.Get()
		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		if cfgMgr.ConfigFileUsed() != "" {
			cfgMgr.WatchConfig()
		}

		if serveWait > 0 {
			if err := srv.WaitForInference(ctx, serveWait); err != nil {
				return err
			}
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")
	serveCmd.Flags().DurationVar(&serveWait, "wait", 0, "wait up to this long for the inference endpoint before serving")

	rootCmd.AddCommand(serveCmd)
}
