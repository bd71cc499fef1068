package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// Registers the tesseract OCR provider type.
	_ "github.com/jackzampolin/notejson/internal/providers/tesseract"
)

func main() {
	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
