package server

import (
	"net/http"

	"github.com/jackzampolin/notejson/internal/svcctx"
)

// routes builds the mux for every registered endpoint.
func (s *Server) routes() http.Handler {
	return s.withServices(s.endpointRegistry.Handler(s.requireInit))
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures providers are ready.
// Returns 503 Service Unavailable until the selected LLM client is registered.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.registry == nil || !s.registry.HasLLM(s.configMgr.Get().Defaults.LLMProvider) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
