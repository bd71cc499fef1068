package endpoints

import (
	"github.com/jackzampolin/notejson/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Conversion
		&ConvertEndpoint{},
	}
}
