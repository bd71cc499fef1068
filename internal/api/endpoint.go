package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one server operation: the HTTP route and the `notejson api`
// subcommand that calls it.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs the selected LLM client
	// to be registered before it can serve.
	RequiresInit() bool

	// Command returns the CLI command for this endpoint. getServerURL is
	// evaluated when the command runs, after --server is parsed.
	Command(getServerURL func() string) *cobra.Command
}

// Middleware wraps a handler.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Pattern returns the ServeMux pattern for ep, e.g. "POST /api/convert".
func Pattern(ep Endpoint) string {
	method, path, _ := ep.Route()
	return method + " " + path
}
