package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/jobs"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// GatewayToken is the shared secret of the auth gateway; empty disables the check.
	GatewayToken string `env:"GATEWAY_TOKEN" envDefault:""`

	Postgres config.PostgresConfig
	Redis    config.RedisConfig
	Stripe   config.StripeConfig
	Economy  config.EconomyConfig
	Jobs     jobs.Config
}
