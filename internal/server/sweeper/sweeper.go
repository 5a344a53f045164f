package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/telemetry"
)

// Report итог одного прохода
type Report struct {
	TokensRemoved int
	CountersReset int
}

// Sweeper периодически удаляет токены с истекшим deleteAt и сбрасывает
// устаревшие дневные счетчики ссылок
type Sweeper struct {
	logger   *slog.Logger
	store    storage.Store
	clock    clock.Clock
	location *time.Location
	tracer   trace.Tracer
	interval time.Duration
}

// New creates a new sweeper
func New(logger *slog.Logger, store storage.Store, clk clock.Clock, location *time.Location, interval time.Duration) *Sweeper {
	if location == nil {
		location = time.UTC
	}
	return &Sweeper{
		logger:   logger,
		store:    store,
		clock:    clk,
		location: location,
		tracer:   telemetry.Tracer(),
		interval: interval,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
// Ошибка прохода логируется и не останавливает цикл
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sweeper started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep выполняет один проход
func (s *Sweeper) Sweep(ctx context.Context) (_ *Report, err error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.Sweep")
	defer func() { telemetry.End(span, err) }()

	now := s.clock.Now()
	report := &Report{}

	if report.TokensRemoved, err = s.sweepTokens(ctx, now); err != nil {
		return report, err
	}
	if report.CountersReset, err = s.resetCounters(ctx, clock.Day(now, s.location)); err != nil {
		return report, err
	}

	span.SetAttributes(
		attribute.Int("tokens_removed", report.TokensRemoved),
		attribute.Int("counters_reset", report.CountersReset),
	)
	s.logger.InfoContext(ctx, "sweep completed",
		slog.Int("tokens_removed", report.TokensRemoved),
		slog.Int("counters_reset", report.CountersReset))

	return report, nil
}

// sweepTokens удаляет токены с deleteAt <= now независимо от used
func (s *Sweeper) sweepTokens(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := storage.ScanJSON(ctx, s.store, storage.PrefixTokens, func(key string, t *models.Token) error {
		if !t.Purgeable(now) {
			return nil
		}
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to remove token",
				slog.String("key", key),
				slog.Any("error", err))
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to scan tokens: %w", err)
	}
	return removed, nil
}

// resetCounters сбрасывает счетчики, записанные не за сегодняшний день
func (s *Sweeper) resetCounters(ctx context.Context, day string) (int, error) {
	reset := 0
	err := storage.ScanJSON(ctx, s.store, storage.PrefixUsers, func(key string, u *models.User) error {
		if !hasStale(u, day) {
			return nil
		}

		var n int
		_, err := storage.UpdateJSON(ctx, s.store, key, func(cur *models.User) (*models.User, error) {
			n = 0
			if cur == nil {
				return nil, storage.ErrNotFound
			}
			for _, usage := range cur.Links {
				if usage != nil && usage.Stale(day) {
					usage.Date = day
					usage.Count = 0
					n++
				}
			}
			return cur, nil
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to reset link counters",
				slog.String("key", key),
				slog.Any("error", err))
			return nil
		}
		reset += n
		return nil
	})
	if err != nil {
		return reset, fmt.Errorf("failed to scan users: %w", err)
	}
	return reset, nil
}

func hasStale(u *models.User, day string) bool {
	for _, usage := range u.Links {
		if usage != nil && usage.Stale(day) {
			return true
		}
	}
	return false
}
