// Package ctl реализует административную утилиту luxtactl.
// Команды работают напрямую с хранилищем сервера.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/config"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/identity"
	"github.com/iudanet/luxta/internal/server/leaderboard"
	"github.com/iudanet/luxta/internal/server/ledger"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/storage/backend"
	"github.com/iudanet/luxta/internal/server/sweeper"
)

// DefaultGrant столько монет начисляет "user grant" без аргумента
const DefaultGrant int64 = 30

// OpenFunc открывает хранилище по конфигурации
type OpenFunc func(ctx context.Context, cfg *config.Config) (storage.Store, error)

// App состояние одного запуска luxtactl
type App struct {
	io     IO
	open   OpenFunc
	clock  clock.Clock
	logger *slog.Logger
	cfg    *config.Config
	store  storage.Store
}

// New creates the CLI application. open == nil selects backend.Open
func New(stdio IO, open OpenFunc, clk clock.Clock, logger *slog.Logger) *App {
	if open == nil {
		open = backend.Open
	}
	return &App{io: stdio, open: open, clock: clk, logger: logger}
}

// NewRootCommand собирает дерево команд
func (a *App) NewRootCommand() *cobra.Command {
	var (
		storeKind string
		boltPath  string
		sqliteDSN string
		redisAddr string
	)

	root := &cobra.Command{
		Use:           "luxtactl",
		Short:         "Administer a luxta reward store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ParseEnv()
			if err != nil {
				return err
			}
			// Флаги переопределяют окружение только если заданы явно
			flags := cmd.Flags()
			if flags.Changed("store") {
				cfg.Store = storeKind
			}
			if flags.Changed("bolt-path") {
				cfg.BoltPath = boltPath
			}
			if flags.Changed("sqlite-dsn") {
				cfg.SQLiteDSN = sqliteDSN
			}
			if flags.Changed("redis-addr") {
				cfg.RedisAddr = redisAddr
			}
			if err := cfg.ValidateStore(); err != nil {
				return err
			}

			store, err := a.open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.store = store
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&storeKind, "store", config.StoreBolt, "storage backend: bolt, sqlite, redis or memory")
	pf.StringVar(&boltPath, "bolt-path", "luxta.db", "bbolt database file")
	pf.StringVar(&sqliteDSN, "sqlite-dsn", "luxta.sqlite", "sqlite database file or DSN")
	pf.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address")

	root.AddCommand(a.newSweepCommand(), a.newUserCommand(), a.newLeaderboardCommand())
	return root
}

// Close закрывает открытое хранилище
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *App) newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired tokens and reset stale daily counters once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			report, err := sweeper.New(a.logger, a.store, a.clock, loc, time.Minute).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			a.io.Printf("tokens removed: %d\ncounters reset: %d\n", report.TokensRemoved, report.CountersReset)
			return nil
		},
	}
}

func (a *App) newUserCommand() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Register a user, the password is read from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.io.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			u, err := identity.NewLocal(a.logger, a.store, a.clock).Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			a.io.Printf("created user %s\n", u.ID)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print balance and progression of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := storage.GetJSON[models.User](cmd.Context(), a.store, storage.UserKey(args[0]))
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("user %s not found", args[0])
				}
				return err
			}
			a.io.Printf("id:     %s\nemail:  %s\ncoins:  %d\nxp:     %d\nlevel:  %d\nrules:  %t\nfrozen: %t\n",
				u.ID, u.Email, u.Coins, u.XP, u.Level, u.RulesAccepted, u.Frozen())
			return nil
		},
	}

	grant := &cobra.Command{
		Use:   "grant <user-id> [coins]",
		Short: "Add coins to a user balance",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := DefaultGrant
			if len(args) == 2 {
				v, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || v <= 0 {
					return fmt.Errorf("coins must be a positive integer, got %q", args[1])
				}
				amount = v
			}
			balance, err := ledger.New(a.logger, a.store).AddCoins(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			a.io.Printf("balance: %d\n", balance)
			return nil
		},
	}

	freeze := &cobra.Command{
		Use:   "freeze <user-id>",
		Short: "Freeze a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ledger.New(a.logger, a.store).Freeze(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.io.Printf("user %s frozen\n", args[0])
			return nil
		},
	}

	user.AddCommand(create, show, grant, freeze)
	return user
}

func (a *App) newLeaderboardCommand() *cobra.Command {
	var limit int

	top := &cobra.Command{
		Use:   "top <game>",
		Short: "Print the best scores of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board := leaderboard.New(a.logger, a.store, ledger.New(a.logger, a.store), a.clock, 0)
			entries, err := board.Top(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.io.Printf("no scores for %s\n", args[0])
				return nil
			}
			for i, e := range entries {
				a.io.Printf("%3d  %-36s  %d\n", i+1, e.UserID, e.BestScore)
			}
			return nil
		},
	}
	top.Flags().IntVar(&limit, "limit", leaderboard.DefaultLimit, "number of entries")

	lb := &cobra.Command{
		Use:   "leaderboard",
		Short: "Inspect game leaderboards",
	}
	lb.AddCommand(top)
	return lb
}

// Execute runs the command tree with args
func (a *App) Execute(ctx context.Context, args []string, stderr io.Writer) error {
	root := a.NewRootCommand()
	root.SetArgs(args)
	root.SetErr(stderr)

	// PersistentPostRunE не вызывается, если команда вернула ошибку
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.Close())
}
