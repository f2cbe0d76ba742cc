package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/alert"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/dispatch"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/middleware"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/registry"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
)

type fakeStore struct {
	jobs map[string]*store.Job
	ping error
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
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateProgress(ctx context.Context, jobID, did string, status store.Status, progress store.Progress, now time.Time) (bool, error) {
	j, ok := f.jobs[jobID]
	if !ok || j.AssignedTo != did {
		return false, nil
	}
	j.Status = status
	return true, nil
}

func (f *fakeStore) CompleteJob(ctx context.Context, jobID, did string, result store.Result, now time.Time) (bool, error) {
	j, ok := f.jobs[jobID]
	if !ok || j.AssignedTo != did {
		return false, nil
	}
	j.Status = store.StatusComplete
	j.Result = &result
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
func (f *fakeStore) Ping(ctx context.Context) error                      { return f.ping }

func withEncoder(r *http.Request, did string) *http.Request {
	e := &registry.Encoder{EncoderID: did, IsActive: true}
	return r.WithContext(middleware.ContextWithEncoderForTest(r.Context(), e))
}

func TestHealthReportsStoreConnectivity(t *testing.T) {
	s := &fakeStore{jobs: map[string]*store.Job{}}
	h := NewAidHandlers(dispatch.NewService(s, alert.NewGate("")))

	req := httptest.NewRequest(http.MethodGet, "/aid/v1/health", nil)
	rec := httptest.NewRecorder()
	h.Health()(rec, req, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.StoreConnected)
}

func TestClaimJobHandlerHappyPath(t *testing.T) {
	s := &fakeStore{jobs: map[string]*store.Job{"J1": {ID: "J1", Status: store.StatusUnassigned}}}
	h := NewAidHandlers(dispatch.NewService(s, alert.NewGate("")))

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/claim-job", bytes.NewReader([]byte(`{"job_id":"J1"}`)))
	req = withEncoder(req, "did:example:E1")
	rec := httptest.NewRecorder()
	h.ClaimJob()(rec, req, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp claimJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "did:example:E1", resp.AssignedTo)
}

func TestClaimJobHandlerAlreadyAssigned(t *testing.T) {
	s := &fakeStore{jobs: map[string]*store.Job{"J1": {ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"}}}
	h := NewAidHandlers(dispatch.NewService(s, alert.NewGate("")))

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/claim-job", bytes.NewReader([]byte(`{"job_id":"J1"}`)))
	req = withEncoder(req, "did:example:E2")
	rec := httptest.NewRecorder()
	h.ClaimJob()(rec, req, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCompleteJobHandlerInvalidCID(t *testing.T) {
	s := &fakeStore{jobs: map[string]*store.Job{"J1": {ID: "J1", Status: store.StatusAssigned, AssignedTo: "did:example:E1"}}}
	h := NewAidHandlers(dispatch.NewService(s, alert.NewGate("")))

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/complete-job", bytes.NewReader([]byte(`{"job_id":"J1","result":{}}`)))
	req = withEncoder(req, "did:example:E1")
	rec := httptest.NewRecorder()
	h.CompleteJob()(rec, req, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
