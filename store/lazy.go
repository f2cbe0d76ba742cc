package store

import (
	"context"
	"sync/atomic"
	"time"

	aiderrors "github.com/Mantequilla-Soft/3speak-gateway-aid/errors"
)

// Lazy wraps a Store that may not have finished connecting yet. The Process Supervisor
// hands one to every consumer immediately at startup and swaps in the real connection
// once it completes in the background, so the transport layer never blocks on the
// database at boot (spec §4.7). Every method returns a retryable unavailable error
// until Set has been called.
type Lazy struct {
	store atomic.Pointer[Store]
}

func NewLazy() *Lazy {
	return &Lazy{}
}

// Set installs the real store. The Process Supervisor calls it once the background
// connection attempt has finished, whether or not its first ping succeeded.
func (l *Lazy) Set(s Store) {
	l.store.Store(&s)
}

func (l *Lazy) get() (Store, error) {
	p := l.store.Load()
	if p == nil {
		return nil, aiderrors.Internal("job store not yet connected", nil)
	}
	return *p, nil
}

func (l *Lazy) ListUnassigned(ctx context.Context, limit int) ([]Job, error) {
	s, err := l.get()
	if err != nil {
		return nil, err
	}
	return s.ListUnassigned(ctx, limit)
}

func (l *Lazy) ClaimAtomic(ctx context.Context, jobID, did string, now time.Time) (*Job, error) {
	s, err := l.get()
	if err != nil {
		return nil, err
	}
	return s.ClaimAtomic(ctx, jobID, did, now)
}

func (l *Lazy) UpdateProgress(ctx context.Context, jobID, did string, status Status, progress Progress, now time.Time) (bool, error) {
	s, err := l.get()
	if err != nil {
		return false, err
	}
	return s.UpdateProgress(ctx, jobID, did, status, progress, now)
}

func (l *Lazy) CompleteJob(ctx context.Context, jobID, did string, result Result, now time.Time) (bool, error) {
	s, err := l.get()
	if err != nil {
		return false, err
	}
	return s.CompleteJob(ctx, jobID, did, result, now)
}

func (l *Lazy) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s, err := l.get()
	if err != nil {
		return nil, err
	}
	return s.GetJob(ctx, jobID)
}

func (l *Lazy) ReleaseTimedOut(ctx context.Context, cutoff time.Time) (int, error) {
	s, err := l.get()
	if err != nil {
		return 0, err
	}
	return s.ReleaseTimedOut(ctx, cutoff)
}

func (l *Lazy) RecentlyCompleted(ctx context.Context, hoursBack time.Duration) ([]Job, error) {
	s, err := l.get()
	if err != nil {
		return nil, err
	}
	return s.RecentlyCompleted(ctx, hoursBack)
}

func (l *Lazy) HealStuckJobs(ctx context.Context, window time.Duration) ([]Job, error) {
	s, err := l.get()
	if err != nil {
		return nil, err
	}
	return s.HealStuckJobs(ctx, window)
}

func (l *Lazy) IsFirstAidServiced(ctx context.Context) (bool, error) {
	s, err := l.get()
	if err != nil {
		return false, err
	}
	return s.IsFirstAidServiced(ctx)
}

func (l *Lazy) Ping(ctx context.Context) error {
	s, err := l.get()
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

var _ Store = (*Lazy)(nil)
