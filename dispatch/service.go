// Package dispatch implements the Aid Dispatch Core (spec §4.2): list/claim/update/complete
// against the Job Store Gateway, enforcing ownership and validation. A struct holding its
// dependencies, one method per operation, returning typed results or a tagged
// errors.APIError.
package dispatch

import (
	"context"
	"time"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/alert"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	aiderrors "github.com/Mantequilla-Soft/3speak-gateway-aid/errors"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/metrics"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
)

// Service is the Aid Dispatch Core. It is the only component permitted to mutate
// authoritative job state from encoder-driven requests (spec §1).
type Service struct {
	Store store.Store
	Gate  *alert.Gate
}

func NewService(s store.Store, gate *alert.Gate) *Service {
	return &Service{Store: s, Gate: gate}
}

// ListAvailable returns unassigned jobs, newest first, capped at config.ListJobsLimit.
// Never returns jobs owned by any encoder (spec §4.2).
func (s *Service) ListAvailable(ctx context.Context) ([]store.Job, error) {
	start := time.Now()
	jobs, err := s.Store.ListUnassigned(ctx, config.ListJobsLimit)
	metrics.Metrics.DispatchRequestDurationSec.WithLabelValues("list").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("list", "error").Inc()
		return nil, aiderrors.Internal("failed to list unassigned jobs", err)
	}
	metrics.Metrics.DispatchRequestCount.WithLabelValues("list", "ok").Inc()
	return jobs, nil
}

// Claim atomically transitions jobID from unassigned to assigned for did (spec P1).
func (s *Service) Claim(ctx context.Context, did, jobID string) (*store.Job, error) {
	if jobID == "" {
		return nil, aiderrors.InvalidRequest("job_id is required")
	}

	start := time.Now()
	job, err := s.Store.ClaimAtomic(ctx, jobID, did, config.Clock.GetTime())
	metrics.Metrics.DispatchRequestDurationSec.WithLabelValues("claim").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("claim", "error").Inc()
		return nil, aiderrors.Internal("failed to claim job", err)
	}
	if job == nil {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("claim", "already_assigned").Inc()
		return nil, aiderrors.AlreadyAssigned("job is already assigned")
	}

	metrics.Metrics.DispatchRequestCount.WithLabelValues("claim", "ok").Inc()
	metrics.Metrics.JobsClaimed.Inc()

	// First successful claim ever observed activates the fallback notification (spec §4.2, P6).
	s.Gate.FireFallbackActivated(ctx)

	return job, nil
}

// Update validates and applies a heartbeat/progress update. Ownership mismatches and
// missing jobs are both reported as JOB_NOT_FOUND so existence is never disclosed to
// non-owners (spec §4.2).
func (s *Service) Update(ctx context.Context, did, jobID string, status store.Status, progress store.Progress) error {
	if jobID == "" {
		return aiderrors.InvalidRequest("job_id is required")
	}
	if status != store.StatusAssigned && status != store.StatusRunning && status != store.StatusFailed {
		return aiderrors.InvalidRequest("status must be one of assigned, running, failed")
	}
	if progress.Pct < 0 || progress.Pct > 100 {
		return aiderrors.InvalidRequest("progress.pct must be in [0,100]")
	}
	if progress.DownloadPct < 0 || progress.DownloadPct > 100 {
		return aiderrors.InvalidRequest("progress.download_pct must be in [0,100]")
	}

	start := time.Now()
	ok, err := s.Store.UpdateProgress(ctx, jobID, did, status, progress, config.Clock.GetTime())
	metrics.Metrics.DispatchRequestDurationSec.WithLabelValues("update").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("update", "error").Inc()
		return aiderrors.Internal("failed to update job", err)
	}
	if !ok {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("update", "not_found").Inc()
		return aiderrors.NotFound("job not found")
	}

	metrics.Metrics.DispatchRequestCount.WithLabelValues("update", "ok").Inc()
	return nil
}

// Complete transitions jobID to complete for did. Idempotent when repeated by the same
// owner on an already-complete job (spec §4.2, R1).
func (s *Service) Complete(ctx context.Context, did, jobID string, result store.Result) error {
	if jobID == "" {
		return aiderrors.InvalidRequest("job_id is required")
	}
	if result.CID == "" {
		return aiderrors.InvalidCID("result.cid is required")
	}

	start := time.Now()
	ok, err := s.Store.CompleteJob(ctx, jobID, did, result, config.Clock.GetTime())
	metrics.Metrics.DispatchRequestDurationSec.WithLabelValues("complete").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("complete", "error").Inc()
		return aiderrors.Internal("failed to complete job", err)
	}
	if !ok {
		metrics.Metrics.DispatchRequestCount.WithLabelValues("complete", "not_found").Inc()
		return aiderrors.NotFound("job not found")
	}

	metrics.Metrics.DispatchRequestCount.WithLabelValues("complete", "ok").Inc()
	metrics.Metrics.JobsCompleted.Inc()

	return nil
}

// Get returns a job plus whether the requesting DID currently owns it (spec §4.2).
func (s *Service) Get(ctx context.Context, did, jobID string) (*store.Job, bool, error) {
	if jobID == "" {
		return nil, false, aiderrors.InvalidRequest("job_id is required")
	}

	job, err := s.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, aiderrors.Internal("failed to get job", err)
	}
	if job == nil {
		return nil, false, aiderrors.NotFound("job not found")
	}
	return job, job.IsOwnedBy(did), nil
}

// Health reports store reachability. No auth is required (spec §4.2).
func (s *Service) Health(ctx context.Context) bool {
	return s.Store.Ping(ctx) == nil
}
