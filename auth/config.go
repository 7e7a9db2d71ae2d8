package auth

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Host                   string        `envconfig:"MEDIPASS_AUTH_HOST" default:"http://identity:9099"`
	APIKey                 string        `envconfig:"MEDIPASS_AUTH_API_KEY" required:"true"`
	AdminToken             string        `envconfig:"MEDIPASS_AUTH_ADMIN_TOKEN"`
	Timeout                time.Duration `envconfig:"MEDIPASS_AUTH_TIMEOUT" default:"30s"`
	AdminRequestsPerSecond uint          `envconfig:"MEDIPASS_AUTH_ADMIN_REQUESTS_PER_SECOND_LIMIT" default:"10"`
}

func NewConfig() (Config, error) {
	config := Config{}
	err := envconfig.Process("", &config)
	return config, err
}
