package store

import (
	"context"
	"time"
)

// Store is the Job Store Gateway's contract (spec §4.3). Every mutating method is
// single-row atomic except ReleaseTimedOut and HealStuckJobs, which are bulk mutations.
type Store interface {
	// ListUnassigned returns up to limit unassigned jobs, newest first.
	ListUnassigned(ctx context.Context, limit int) ([]Job, error)

	// ClaimAtomic conditionally transitions a job from unassigned to assigned, stamping
	// the owner and timestamps. Returns (nil, nil) if the row was not in unassigned state.
	ClaimAtomic(ctx context.Context, jobID, did string, now time.Time) (*Job, error)

	// UpdateProgress conditionally updates status/progress/last_pinged for a job owned by did.
	// Returns false if no row matched {id: jobID, assigned_to: did}.
	UpdateProgress(ctx context.Context, jobID, did string, status Status, progress Progress, now time.Time) (bool, error)

	// CompleteJob conditionally transitions a job owned by did to complete. Returns false
	// if no row matched {id: jobID, assigned_to: did}.
	CompleteJob(ctx context.Context, jobID, did string, result Result, now time.Time) (bool, error)

	// GetJob returns a single job by ID, or nil if it doesn't exist.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ReleaseTimedOut clears the claim on every job with status in {assigned, running} whose
	// last_pinged predates cutoff, in one bulk update. Returns the number of rows affected.
	ReleaseTimedOut(ctx context.Context, cutoff time.Time) (int, error)

	// RecentlyCompleted returns jobs completed within the last hoursBack.
	RecentlyCompleted(ctx context.Context, hoursBack time.Duration) ([]Job, error)

	// HealStuckJobs promotes jobs with a non-empty result.cid but status != complete, within
	// the given window, to complete. Returns the jobs it repaired.
	HealStuckJobs(ctx context.Context, window time.Duration) ([]Job, error)

	// IsFirstAidServiced reports whether exactly one completed job exists in the store.
	IsFirstAidServiced(ctx context.Context) (bool, error)

	// Ping reports whether the store is currently reachable (used by the health endpoint
	// and by the Process Supervisor's fail-open gate).
	Ping(ctx context.Context) error
}
