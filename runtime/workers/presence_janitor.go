package workers

import (
	"context"
	"log/slog"
	"time"
)

type sweeper interface {
	Sweep()
}

// PresenceJanitor periodically drops expired typing entries. Correctness
// does not depend on it (expiry is checked at read time); it only keeps
// the typing map from growing between reads.
type PresenceJanitor struct {
	presence sweeper
	interval time.Duration
	log      *slog.Logger
}

func NewPresenceJanitor(presence sweeper, interval time.Duration, log *slog.Logger) *PresenceJanitor {
	return &PresenceJanitor{presence: presence, interval: interval, log: log}
}

func (w *PresenceJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping presence janitor")
			return nil
		case <-ticker.C:
			w.presence.Sweep()
		}
	}
}
