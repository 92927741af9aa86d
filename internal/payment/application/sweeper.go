package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper expires attempts abandoned mid-authentication. An expired attempt
// can never be finalized, even if a stray callback arrives later.
type Sweeper struct {
	log      *slog.Logger
	attempts AttemptRepository
	window   time.Duration
	interval time.Duration
}

func NewSweeper(log *slog.Logger, attempts AttemptRepository, window time.Duration) *Sweeper {
	return &Sweeper{
		log:      log,
		attempts: attempts,
		window:   window,
		interval: time.Minute,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ids, err := s.attempts.ExpireStale(ctx, time.Now().UTC().Add(-s.window))
	if err != nil {
		s.log.Error("expiry sweep failed", "err", err)
		return
	}
	for _, id := range ids {
		s.log.Warn("attempt expired by sweep", "gateway_attempt_id", id)
	}
}
