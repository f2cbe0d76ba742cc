// Package timeoutmon implements the Timeout Monitor (spec §4.4): a single-threaded
// cooperative loop on a fixed interval with an immediate initial tick; each tick
// recovers from its own panics so the loop keeps running.
package timeoutmon

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/alert"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/metrics"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
)

// Monitor is the process-wide Timeout Monitor singleton.
type Monitor struct {
	Store    store.Store
	Gate     *alert.Gate
	Interval time.Duration
	TTL      time.Duration
}

func NewMonitor(s store.Store, gate *alert.Gate) *Monitor {
	return &Monitor{Store: s, Gate: gate, Interval: config.TimeoutMonitorInterval, TTL: config.TTL}
}

// Run ticks immediately, then on m.Interval, until ctx is cancelled. A failed tick is
// logged and never aborts the loop (spec §7).
func (m *Monitor) Run(ctx context.Context) {
	m.tick(ctx)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	defer recoverer()

	cutoff := config.Clock.GetTime().Add(-m.TTL)
	count, err := m.Store.ReleaseTimedOut(ctx, cutoff)
	if err != nil {
		log.LogNoRequestID("timeout monitor tick failed", "err", err)
		return
	}

	if count > 0 {
		metrics.Metrics.TimeoutReleasedCount.Add(float64(count))
		m.Gate.NotifyTimeoutReleased(ctx, count)
	}

	// The Timeout Monitor is the component that observes the first-Aid-serviced
	// predicate and activates the fallback-activation latch on its behalf.
	first, err := m.Store.IsFirstAidServiced(ctx)
	if err != nil {
		log.LogNoRequestID("failed to check first-aid-serviced predicate", "err", err)
		return
	}
	if first {
		m.Gate.FireFallbackActivated(ctx)
	}
}

func recoverer() {
	if err := recover(); err != nil {
		log.LogNoRequestID("panic in timeout monitor tick, recovering", "err", err, "trace", string(debug.Stack()))
	}
}
