package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/pulsecards/internal/api"
	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/fastprodman/pulsecards/internal/infra/logging"
	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/infra/redisutil"
	"github.com/fastprodman/pulsecards/internal/jobs"
	"github.com/fastprodman/pulsecards/internal/payments"
	stripegw "github.com/fastprodman/pulsecards/internal/payments/stripe"
	rediscounters "github.com/fastprodman/pulsecards/internal/repos/counters/redis"
	"github.com/fastprodman/pulsecards/internal/services/cardpool"
	"github.com/fastprodman/pulsecards/internal/services/challenges"
	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/fastprodman/pulsecards/internal/services/marketplace"
	"github.com/fastprodman/pulsecards/internal/services/progression"
	"github.com/fastprodman/pulsecards/internal/services/referral"
	"github.com/fastprodman/pulsecards/internal/services/sharing"
	"github.com/fastprodman/pulsecards/pkg/envconf"
	"github.com/fastprodman/pulsecards/pkg/shutdownqueue"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// a missing .env is fine; the environment may be set by the platform
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("postgres", func(context.Context) error {
		return db.Close()
	})

	rdb, err := redisutil.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	shutdownqueue.Add("redis", func(context.Context) error {
		return rdb.Close()
	})

	cache := rediscounters.New(rdb)
	gateway := newGateway(cfg.Stripe)

	// --- Services ---
	creditsSvc := credits.New(db, cache, gateway, cfg.Economy)
	cardsSvc := cardpool.New(db, cfg.Economy.LockWaitTimeout)
	marketSvc := marketplace.New(db, creditsSvc, cardsSvc, cfg.Economy)
	challengeSvc := challenges.New(db, creditsSvc, cfg.Economy)

	svcs := api.Services{
		Credits:     creditsSvc,
		Sharing:     sharing.New(cache, creditsSvc, challengeSvc, cfg.Economy),
		Referral:    referral.New(db, cache, creditsSvc, cfg.Economy),
		Cards:       cardsSvc,
		Marketplace: marketSvc,
		Progression: progression.New(db, creditsSvc, cfg.Economy),
		Challenges:  challengeSvc,
	}

	// --- Scheduler ---
	sched, err := jobs.New(cfg.Jobs, marketSvc, creditsSvc, challengeSvc)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()
	shutdownqueue.Add("scheduler", sched.Shutdown)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewRouter(svcs, cfg.GatewayToken))

	shutdownqueue.Add("http server", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func newGateway(cfg config.StripeConfig) payments.Gateway {
	if cfg.SecretKey != "" {
		return stripegw.New(cfg.SecretKey, cfg.Currency)
	}

	slog.Warn("STRIPE_SECRET_KEY not set, using the sandbox payment gateway")

	if cfg.SandboxAutoSettle {
		return payments.NewSandbox(payments.AutoSettle(payments.StatusSucceeded))
	}

	return payments.NewSandbox()
}
