package server

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/notejson/internal/providers"
)

// WaitForInference polls the selected LLM endpoint until it answers or the
// timeout elapses. Clients without a probe are treated as ready.
func (s *Server) WaitForInference(ctx context.Context, timeout time.Duration) error {
	name := s.configMgr.Get().Defaults.LLMProvider
	llm, err := s.registry.GetLLM(name)
	if err != nil {
		return err
	}
	prober, ok := llm.(providers.Prober)
	if !ok {
		return nil
	}

	s.logger.Info("waiting for inference endpoint", "provider", name, "timeout", timeout)
	if err := waitForReady(ctx, prober, timeout, time.Second); err != nil {
		return fmt.Errorf("inference endpoint not ready: %w", err)
	}
	s.logger.Info("inference endpoint is ready", "provider", name)
	return nil
}

// waitForReady retries the probe at a fixed interval.
func waitForReady(ctx context.Context, prober providers.Prober, timeout, interval time.Duration) error {
	attempts := uint(timeout / interval)
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			return prober.Probe(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
