// Package observability exposes counters for the best-effort delivery
// path, so fire-and-forget sends stay measurable.
package observability

import "sync/atomic"

type DeliverySnapshot struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// DeliveryStats counts per-recipient delivery outcomes with atomics; it is
// shared by the router and the periodic reporter.
type DeliveryStats struct {
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

func NewDeliveryStats() *DeliveryStats {
	return &DeliveryStats{}
}

func (s *DeliveryStats) Delivered() { s.delivered.Add(1) }
func (s *DeliveryStats) Dropped()   { s.dropped.Add(1) }
func (s *DeliveryStats) Failed()    { s.failed.Add(1) }

func (s *DeliveryStats) Snapshot() DeliverySnapshot {
	return DeliverySnapshot{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}
