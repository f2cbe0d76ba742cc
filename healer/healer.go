// Package healer implements the Video Healer (spec §4.5): a periodic two-phase
// reconciler, same ticker shape as the Timeout Monitor. Phase A repairs stuck jobs;
// Phase B repairs missing video-metadata records via an external collaborator.
package healer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/alert"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/clients"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/metrics"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
)

// Healer is the process-wide Video Healer singleton.
type Healer struct {
	Store             store.Store
	VideoRecords      clients.VideoRecordClient
	Gate              *alert.Gate
	Interval          time.Duration
	JobWindow         time.Duration
	VideoRecordWindow time.Duration
}

func NewHealer(s store.Store, vrc clients.VideoRecordClient, gate *alert.Gate) *Healer {
	return &Healer{
		Store: s, VideoRecords: vrc, Gate: gate,
		Interval: config.HealerInterval, JobWindow: config.HealerJobWindow,
		VideoRecordWindow: config.HealerVideoRecordWindow,
	}
}

// Run ticks immediately, then on h.Interval, until ctx is cancelled.
func (h *Healer) Run(ctx context.Context) {
	h.tick(ctx)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Healer) tick(ctx context.Context) {
	defer recoverer()

	repaired := h.healStuckJobs(ctx)
	h.healVideoRecords(ctx)

	if len(repaired) > 0 {
		h.Gate.NotifyHealCycleSummary(ctx, len(repaired), repaired)
	}
}

// healStuckJobs is Phase A: promote jobs with result.cid set but status != complete.
func (h *Healer) healStuckJobs(ctx context.Context) []string {
	jobs, err := h.Store.HealStuckJobs(ctx, h.JobWindow)
	if err != nil {
		log.LogNoRequestID("healer phase A failed", "err", err)
		return nil
	}
	if len(jobs) == 0 {
		return nil
	}

	metrics.Metrics.HealerRepairedCount.WithLabelValues("stuck_jobs").Add(float64(len(jobs)))

	identities := make([]string, 0, len(jobs))
	for _, j := range jobs {
		identities = append(identities, fmt.Sprintf("%s/%s", j.Metadata.VideoOwner, j.Metadata.VideoPermlink))
	}
	return identities
}

// healVideoRecords is Phase B: repair missing video-metadata records for recently
// completed jobs.
func (h *Healer) healVideoRecords(ctx context.Context) {
	jobs, err := h.Store.RecentlyCompleted(ctx, h.JobWindow)
	if err != nil {
		log.LogNoRequestID("healer phase B failed to list recently completed jobs", "err", err)
		return
	}

	for _, j := range jobs {
		h.healOne(ctx, j)
	}
}

func (h *Healer) healOne(ctx context.Context, j store.Job) {
	owner, permlink := j.Metadata.VideoOwner, j.Metadata.VideoPermlink
	if owner == "" || permlink == "" || j.Result == nil || j.Result.CID == "" {
		return
	}

	rec, err := h.VideoRecords.Get(ctx, owner, permlink)
	if err != nil {
		log.LogNoRequestID("healer failed to fetch video record", "owner", owner, "permlink", permlink, "err", err)
		return
	}
	if !needsHealing(rec, h.VideoRecordWindow) {
		return
	}

	patch := clients.VideoRecordPatch{Status: "published", VideoV2: j.Result.CID}
	if err := h.VideoRecords.Patch(ctx, owner, permlink, patch); err != nil {
		log.LogNoRequestID("healer failed to patch video record", "owner", owner, "permlink", permlink, "err", err)
		return
	}

	metrics.Metrics.HealerRepairedCount.WithLabelValues("video_records").Inc()
	h.Gate.NotifyVideoHealed(ctx, owner, permlink)
}

// needsHealing reports whether rec exists, is published, was created within window, and
// is missing its video_v2 field (spec §4.5 Phase B step 2).
func needsHealing(rec *clients.VideoRecord, window time.Duration) bool {
	if rec == nil {
		return false
	}
	if rec.Status != "published" {
		return false
	}
	if config.Clock.GetTime().Sub(rec.Created) > window {
		return false
	}
	return rec.VideoV2 == ""
}

func recoverer() {
	if err := recover(); err != nil {
		log.LogNoRequestID("panic in healer tick, recovering", "err", err, "trace", string(debug.Stack()))
	}
}
