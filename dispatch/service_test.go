package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/alert"
	aiderrors "github.com/Mantequilla-Soft/3speak-gateway-aid/errors"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
)

type fakeStore struct {
	jobs map[string]*store.Job
}

func newFakeStore(jobs ...store.Job) *fakeStore {
	m := map[string]*store.Job{}
	for i := range jobs {
		j := jobs[i]
		m[j.ID] = &j
	}
	return &fakeStore{jobs: m}
}

func (f *fakeStore) ListUnassigned(ctx context.Context, limit int) ([]store.Job, error) {
	var out []store.Job
	for _, j := range f.jobs {
		if j.Status == store.StatusUnassigned {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimAtomic(ctx context.Context, jobID, did string, now time.Time) (*store.Job, error) {
	j, ok := f.jobs[jobID]
	if !ok || j.Status != store.StatusUnassigned {
		return nil, nil
	}
	j.Status = store.StatusAssigned
	j.AssignedTo = did
	j.AssignedDate = &now
	j.LastPinged = &now
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateProgress(ctx context.Context, jobID, did string, status store.Status, progress store.Progress, now time.Time) (bool, error) {
	j, ok := f.jobs[jobID]
	if !ok || j.AssignedTo != did {
		return false, nil
	}
	j.Status = status
	j.Progress = &progress
	j.LastPinged = &now
	return true, nil
}

func (f *fakeStore) CompleteJob(ctx context.Context, jobID, did string, result store.Result, now time.Time) (bool, error) {
	j, ok := f.jobs[jobID]
	if !ok || j.AssignedTo != did {
		return false, nil
	}
	j.Status = store.StatusComplete
	j.Result = &result
	j.CompletedAt = &now
	return true, nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*store.Job, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ReleaseTimedOut(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }
func (f *fakeStore) RecentlyCompleted(ctx context.Context, hoursBack time.Duration) ([]store.Job, error) {
	return nil, nil
}
func (f *fakeStore) HealStuckJobs(ctx context.Context, window time.Duration) ([]store.Job, error) {
	return nil, nil
}
func (f *fakeStore) IsFirstAidServiced(ctx context.Context) (bool, error) { return false, nil }
func (f *fakeStore) Ping(ctx context.Context) error                      { return nil }

func TestClaimSuccess(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusUnassigned})
	svc := NewService(s, alert.NewGate(""))

	job, err := svc.Claim(context.Background(), "did:example:E1", "J1")
	require.NoError(t, err)
	require.Equal(t, "did:example:E1", job.AssignedTo)
}

func TestClaimAlreadyAssigned(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"})
	svc := NewService(s, alert.NewGate(""))

	_, err := svc.Claim(context.Background(), "did:example:E2", "J1")
	require.Error(t, err)
}

func TestUpdateOwnershipMismatchReturnsNotFound(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"})
	svc := NewService(s, alert.NewGate(""))

	err := svc.Update(context.Background(), "did:example:E2", "J1", store.StatusRunning, store.Progress{Pct: 50})
	require.Error(t, err)
	var apiErr *aiderrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, aiderrors.CodeJobNotFound, apiErr.Code)
}

func TestUpdateInvalidProgressRejected(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"})
	svc := NewService(s, alert.NewGate(""))

	err := svc.Update(context.Background(), "did:example:E1", "J1", store.StatusRunning, store.Progress{Pct: 150})
	require.Error(t, err)
}

func TestCompleteRequiresCID(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"})
	svc := NewService(s, alert.NewGate(""))

	err := svc.Complete(context.Background(), "did:example:E1", "J1", store.Result{})
	require.Error(t, err)
}

func TestCompleteHijackAttemptReturnsNotFound(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J3", Status: store.StatusAssigned, AssignedTo: "did:example:E1"})
	svc := NewService(s, alert.NewGate(""))

	err := svc.Complete(context.Background(), "did:example:E2", "J3", store.Result{CID: "bafy1"})
	require.Error(t, err)
	var apiErr *aiderrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, aiderrors.CodeJobNotFound, apiErr.Code)

	got, _ := s.GetJob(context.Background(), "J3")
	require.Equal(t, store.StatusAssigned, got.Status)
}

func TestRoundTripClaimUpdateComplete(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusUnassigned})
	svc := NewService(s, alert.NewGate(""))

	_, err := svc.Claim(context.Background(), "did:example:E1", "J1")
	require.NoError(t, err)

	err = svc.Update(context.Background(), "did:example:E1", "J1", store.StatusRunning, store.Progress{DownloadPct: 100, Pct: 50})
	require.NoError(t, err)

	err = svc.Complete(context.Background(), "did:example:E1", "J1", store.Result{CID: "bafy...1"})
	require.NoError(t, err)

	job, owned, err := svc.Get(context.Background(), "did:example:E1", "J1")
	require.NoError(t, err)
	require.True(t, owned)
	require.Equal(t, store.StatusComplete, job.Status)
	require.Equal(t, "bafy...1", job.Result.CID)
}

func TestGetReportsOwnership(t *testing.T) {
	s := newFakeStore(store.Job{ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"})
	svc := NewService(s, alert.NewGate(""))

	_, owned, err := svc.Get(context.Background(), "did:example:E2", "J1")
	require.NoError(t, err)
	require.False(t, owned)
}
