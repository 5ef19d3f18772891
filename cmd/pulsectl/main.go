// Command pulsectl runs operator tasks against the credit ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/infra/redisutil"
	"github.com/fastprodman/pulsecards/internal/payments"
	rediscounters "github.com/fastprodman/pulsecards/internal/repos/counters/redis"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/fastprodman/pulsecards/pkg/envconf"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type ctlConfig struct {
	LogLevel slog.Level `env:"APP_LOG_LEVEL" envDefault:"WARN"`

	Postgres config.PostgresConfig
	Redis    config.RedisConfig
	Economy  config.EconomyConfig
}

var rootCmd = &cobra.Command{
	Use:           "pulsectl",
	Short:         "operator tools for the pulsecards credit economy",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// withCredits builds the credit service for one command and tears its
// clients down afterwards.
func withCredits(ctx context.Context, fn func(*credits.Service) error) error {
	_ = godotenv.Load()

	cfg := new(ctlConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	rdb, err := redisutil.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	//nolint:errcheck
	defer rdb.Close()

	// no command here talks to the payment gateway
	svc := credits.New(db, rediscounters.New(rdb), payments.NewSandbox(), cfg.Economy)

	return fn(svc)
}
