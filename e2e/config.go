package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_HTTP_ADDR is the base URL of a running relay, e.g. http://localhost:8000
	HTTPAddr string `envconfig:"RELAY_HTTP_ADDR"`
	GRPCAddr string `envconfig:"RELAY_GRPC_ADDR" default:"localhost:50051"`
	// E2E_DEBUG_JSON allows dumping full request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
