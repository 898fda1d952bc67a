package workers

import (
	"context"
	"log/slog"
	"time"

	"chatcore/observability"
)

// DeliveryReporter logs delivery counters at a fixed interval so dropped
// and failed best-effort sends show up in operations logs.
type DeliveryReporter struct {
	stats    *observability.DeliveryStats
	interval time.Duration
	log      *slog.Logger
}

func NewDeliveryReporter(stats *observability.DeliveryStats, interval time.Duration, log *slog.Logger) *DeliveryReporter {
	return &DeliveryReporter{stats: stats, interval: interval, log: log}
}

func (w *DeliveryReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last observability.DeliverySnapshot
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping delivery reporter")
			return nil
		case <-ticker.C:
			snap := w.stats.Snapshot()
			if snap == last {
				continue
			}
			w.log.Info("delivery stats",
				"delivered", snap.Delivered,
				"dropped", snap.Dropped,
				"failed", snap.Failed)
			last = snap
		}
	}
}
