package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/archive"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/go-co-op/gocron"
)

// TokenSweeper soft-deletes expired refresh tokens and hands them to an
// archiver.
type TokenSweeper struct {
	repos    repomanager.RepositoryManager
	archiver archive.Archiver
	clock    timex.Clock
	log      logging.Logger
}

func NewTokenSweeper(m repomanager.RepositoryManager, a archive.Archiver, clock timex.Clock, log logging.Logger) *TokenSweeper {
	if a == nil {
		a = archive.Nop{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &TokenSweeper{repos: m, archiver: a, clock: clock, log: log}
}

// Sweep removes every token that expired before now and returns how many
// were removed. Valid tokens are never touched. Archiving is best effort.
func (s *TokenSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()

	rows, err := s.repos.RefreshTokens().SweepExpired(ctx, now, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired refresh tokens: %w", err)
	}
	s.log.Info(ctx, "swept expired refresh tokens", "count", len(rows))

	if len(rows) > 0 {
		key, err := s.archiver.Archive(ctx, rows)
		if err != nil {
			s.log.Warn(ctx, "archiving swept refresh tokens failed", "count", len(rows), "error", err)
		} else if key != "" {
			s.log.Debug(ctx, "swept refresh tokens archived", "key", key)
		}
	}
	return len(rows), nil
}

// Start schedules Sweep on a cron expression (UTC) and returns a function
// that stops the schedule. Runs never overlap.
func (s *TokenSweeper) Start(ctx context.Context, cronExpr string) (func(), error) {
	sch := gocron.NewScheduler(time.UTC)
	sch.SingletonModeAll()

	_, err := sch.Cron(cronExpr).Do(func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error(ctx, "scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", cronExpr, err)
	}

	sch.StartAsync()
	return sch.Stop, nil
}
