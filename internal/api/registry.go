package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// Registry keeps server routes and CLI commands built from one endpoint list.
type Registry struct {
	endpoints []Endpoint
	patterns  map[string]bool
}

// NewRegistry registers eps in order. It fails on a repeated route.
func NewRegistry(eps ...Endpoint) (*Registry, error) {
	r := &Registry{patterns: make(map[string]bool)}
	for _, ep := range eps {
		if err := r.Register(ep); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds ep. Two endpoints may not share a method and path.
func (r *Registry) Register(ep Endpoint) error {
	if r.patterns == nil {
		r.patterns = make(map[string]bool)
	}
	pattern := Pattern(ep)
	if r.patterns[pattern] {
		return fmt.Errorf("duplicate route %q", pattern)
	}
	r.patterns[pattern] = true
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// Handler returns a mux serving every endpoint. requireInit wraps the
// handlers whose endpoint reports RequiresInit; nil leaves them unwrapped.
func (r *Registry) Handler(requireInit Middleware) *http.ServeMux {
	mux := http.NewServeMux()
	for _, ep := range r.endpoints {
		_, _, handler := ep.Route()
		if ep.RequiresInit() && requireInit != nil {
			handler = requireInit(handler)
		}
		mux.HandleFunc(Pattern(ep), handler)
	}
	return mux
}

// BuildCommands returns the `api` command with one subcommand per endpoint.
// Its long help lists the route each subcommand calls.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Call a running notejson server",
	}

	var routes strings.Builder
	for _, ep := range r.endpoints {
		sub := ep.Command(getServerURL)
		apiCmd.AddCommand(sub)
		method, path, _ := ep.Route()
		fmt.Fprintf(&routes, "  %-8s %-5s %s\n", sub.Name(), method, path)
	}

	apiCmd.Long = "Subcommands call a notejson server started with `notejson serve`.\n" +
		"Use --server to reach a server on another address.\n\n" +
		"Commands:\n" + strings.TrimRight(routes.String(), "\n")
	return apiCmd
}
