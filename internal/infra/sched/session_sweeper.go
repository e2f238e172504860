package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
)

// SessionSweeper periodically evicts idle session drafts.
type SessionSweeper struct {
	interval time.Duration
	store    *session.Store
	log      zerolog.Logger
}

func NewSessionSweeper(interval time.Duration, store *session.Store, logger *zerolog.Logger) *SessionSweeper {
	return &SessionSweeper{
		interval: interval,
		store:    store,
		log:      logger.With().Str("component", "SessionSweeper").Logger(),
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting session sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping session sweeper")
			return ctx.Err()
		case <-ticker.C:
			n := w.store.Sweep()
			metrics.SetSessionsLive(w.store.Size())
			if n > 0 {
				metrics.AddSessionsSwept(n)
				w.log.Debug().Int("count", n).Msg("idle sessions evicted")
			}
		}
	}
}
