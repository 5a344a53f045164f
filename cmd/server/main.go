package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/config"
	"github.com/iudanet/luxta/internal/server"
	"github.com/iudanet/luxta/internal/server/auth"
	"github.com/iudanet/luxta/internal/server/identity"
	"github.com/iudanet/luxta/internal/server/jwt"
	"github.com/iudanet/luxta/internal/server/leaderboard"
	"github.com/iudanet/luxta/internal/server/ledger"
	"github.com/iudanet/luxta/internal/server/storage/backend"
	"github.com/iudanet/luxta/internal/server/sweeper"
	"github.com/iudanet/luxta/internal/server/tokens"
	"github.com/iudanet/luxta/internal/telemetry"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	args := os.Args[1:]

	// Show version and exit if requested
	if slices.Contains(args, "-version") || slices.Contains(args, "--version") {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "luxta", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	clk := clock.System{}
	l := ledger.New(logger, store)
	local := identity.NewLocal(logger, store, clk)
	sessions := auth.NewService(logger, store, local,
		jwt.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, clk), clk)

	manager := tokens.NewManager(logger, store, l, clk, tokens.Config{
		DailyQuota: cfg.DailyQuota,
		Validity:   cfg.TokenValidity,
		Retention:  cfg.TokenRetention,
		MinDwell:   cfg.MinDwell,
		Location:   loc,
		Reward:     ledger.RewardPolicy{Coins: cfg.RewardCoins, XP: cfg.RewardXP},
	})
	board := leaderboard.New(logger, store, l, clk, cfg.GameEntryCost)

	router := server.NewRouter(logger, server.RouterConfig{
		Version:       Version,
		RateLimit:     cfg.RateLimit,
		AuthRateLimit: cfg.AuthRateLimit,
		RateWindow:    cfg.RateWindow,
	}, server.Services{
		Registrar:  local,
		Sessions:   sessions,
		Authorizer: sessions,
		Tokens:     manager,
		Board:      board,
	})
	defer router.Close()

	srv, err := server.New(logger, cfg.Addr, router, cfg.ShutdownTimeout)
	if err != nil {
		return err
	}

	logger.Info("luxta server starting",
		slog.String("version", Version),
		slog.String("store", cfg.Store),
		slog.String("timezone", loc.String()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		return sweeper.New(logger, store, clk, loc, cfg.SweepInterval).Run(gctx)
	})

	return g.Wait()
}

func printVersion() {
	fmt.Printf("Luxta Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
