// Package alert implements the Alerting Gate (spec §4.6): a one-shot latch for first
// fallback activation, plus best-effort secondary notifications delivered over a webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/metrics"
)

// Notification is the payload delivered to the webhook URL.
type Notification struct {
	Kind     string         `json:"kind"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
}

const (
	KindFallbackActivated = "fallback_activated"
	KindTimeoutReleased   = "timeout_released"
	KindVideoHealed       = "video_healed"
	KindHealCycleSummary  = "heal_cycle_summary"
)

// Gate is the process-wide notifier. The fallback-activation latch is a single atomic
// boolean guarded by CompareAndSwap, matching spec §5's "small guarded critical section".
type Gate struct {
	latched    atomic.Bool
	webhookURL string
	httpClient *http.Client
}

// NewGate builds a Gate. An empty webhookURL silently disables all delivery (spec §6).
func NewGate(webhookURL string) *Gate {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 1 * time.Second
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: 5 * time.Second}

	return &Gate{
		webhookURL: webhookURL,
		httpClient: client.StandardClient(),
	}
}

// FireFallbackActivated fires the one-shot "fallback activated" notification at most once
// per process lifetime (P6). Subsequent calls are no-ops.
func (g *Gate) FireFallbackActivated(ctx context.Context) {
	if !g.latched.CompareAndSwap(false, true) {
		return
	}
	g.send(ctx, Notification{
		Kind:     KindFallbackActivated,
		Severity: "high",
		Message:  "Aid fallback path has been exercised for the first time this process lifetime",
	})
}

// NotifyTimeoutReleased emits a secondary (non-latched) alert for a Timeout Monitor tick
// that released one or more claims.
func (g *Gate) NotifyTimeoutReleased(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	g.send(ctx, Notification{
		Kind:     KindTimeoutReleased,
		Severity: "normal",
		Message:  fmt.Sprintf("Timeout Monitor released %d stale claim(s)", count),
		Fields:   map[string]any{"count": count},
	})
}

// NotifyVideoHealed emits a per-video heal alert.
func (g *Gate) NotifyVideoHealed(ctx context.Context, owner, permlink string) {
	g.send(ctx, Notification{
		Kind:     KindVideoHealed,
		Severity: "normal",
		Message:  fmt.Sprintf("Repaired video record %s/%s", owner, permlink),
		Fields:   map[string]any{"owner": owner, "permlink": permlink},
	})
}

// NotifyHealCycleSummary emits a per-cycle heal summary, listing the first five repaired
// identities by owner/permlink (spec §4.5).
func (g *Gate) NotifyHealCycleSummary(ctx context.Context, stuckRepaired int, sample []string) {
	if stuckRepaired <= 0 && len(sample) == 0 {
		return
	}
	if len(sample) > 5 {
		sample = sample[:5]
	}
	g.send(ctx, Notification{
		Kind:     KindHealCycleSummary,
		Severity: "normal",
		Message:  fmt.Sprintf("Healer cycle repaired %d stuck job(s)", stuckRepaired),
		Fields:   map[string]any{"stuck_repaired": stuckRepaired, "sample": sample},
	})
}

// send delivers a notification best-effort. Failures are logged, never raised (spec §7).
func (g *Gate) send(ctx context.Context, n Notification) {
	metrics.Metrics.WebhookDeliveryCount.WithLabelValues(n.Kind).Inc()

	if g.webhookURL == "" {
		return
	}

	body, err := json.Marshal(n)
	if err != nil {
		log.LogNoRequestID("failed to marshal alert notification", "kind", n.Kind, "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.LogNoRequestID("failed to build alert notification request", "kind", n.Kind, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.Metrics.WebhookDeliveryFailures.Inc()
		log.LogNoRequestID("failed to deliver alert notification", "kind", n.Kind, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.Metrics.WebhookDeliveryFailures.Inc()
		log.LogNoRequestID("alert notification rejected", "kind", n.Kind, "status", resp.StatusCode)
	}
}
