// Package handlers adapts the Aid Dispatch Core to HTTP/JSON (spec §6).
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	aiderrors "github.com/Mantequilla-Soft/3speak-gateway-aid/errors"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/dispatch"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/middleware"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
)

// AidHandlers wires the Aid Dispatch Core to the five Aid API endpoints.
type AidHandlers struct {
	Service *dispatch.Service
}

func NewAidHandlers(svc *dispatch.Service) *AidHandlers {
	return &AidHandlers{Service: svc}
}

type healthResponse struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	StoreConnected bool      `json:"store_connected"`
	Timestamp      time.Time `json:"timestamp"`
}

// Health reports store reachability. No auth is required (spec §6).
func (h *AidHandlers) Health() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		connected := h.Service.Health(r.Context())
		status := "ok"
		if !connected {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status:         status,
			Version:        config.Version,
			StoreConnected: connected,
			Timestamp:      config.Clock.GetTime(),
		})
	}
}

type jobSummary struct {
	ID              string        `json:"id"`
	Status          store.Status  `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	Metadata        store.Metadata `json:"metadata"`
	StorageMetadata string        `json:"storage_metadata"`
	Input           store.Input   `json:"input"`
}

type listJobsResponse struct {
	Success bool         `json:"success"`
	Jobs    []jobSummary `json:"jobs"`
}

// ListJobs implements POST /aid/v1/list-jobs.
func (h *AidHandlers) ListJobs() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		jobs, err := h.Service.ListAvailable(r.Context())
		if err != nil {
			writeAPIError(w, err)
			return
		}

		summaries := make([]jobSummary, 0, len(jobs))
		for _, j := range jobs {
			summaries = append(summaries, jobSummary{
				ID: j.ID, Status: j.Status, CreatedAt: j.CreatedAt,
				Metadata: j.Metadata, StorageMetadata: j.StorageMetadata, Input: j.Input,
			})
		}

		writeJSON(w, http.StatusOK, listJobsResponse{Success: true, Jobs: summaries})
	}
}

type claimJobRequest struct {
	JobID string `json:"job_id"`
}

type claimJobResponse struct {
	Success    bool       `json:"success"`
	JobID      string     `json:"job_id"`
	AssignedTo string     `json:"assigned_to"`
	AssignedAt *time.Time `json:"assigned_at"`
	JobDetails store.Job  `json:"job_details"`
}

// ClaimJob implements POST /aid/v1/claim-job.
func (h *AidHandlers) ClaimJob() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		did := requesterDID(r)

		var req claimJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, aiderrors.InvalidRequest("malformed request body"))
			return
		}

		job, err := h.Service.Claim(r.Context(), did, req.JobID)
		if err != nil {
			writeAPIError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, claimJobResponse{
			Success: true, JobID: job.ID, AssignedTo: job.AssignedTo,
			AssignedAt: job.AssignedDate, JobDetails: *job,
		})
	}
}

type updateJobRequest struct {
	JobID    string         `json:"job_id"`
	Status   store.Status   `json:"status"`
	Progress store.Progress `json:"progress"`
}

type updateJobResponse struct {
	Success   bool         `json:"success"`
	JobID     string       `json:"job_id"`
	Status    store.Status `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// UpdateJob implements POST /aid/v1/update-job.
func (h *AidHandlers) UpdateJob() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		did := requesterDID(r)

		var req updateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, aiderrors.InvalidRequest("malformed request body"))
			return
		}

		if err := h.Service.Update(r.Context(), did, req.JobID, req.Status, req.Progress); err != nil {
			writeAPIError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, updateJobResponse{
			Success: true, JobID: req.JobID, Status: req.Status, UpdatedAt: config.Clock.GetTime(),
		})
	}
}

type completeJobRequest struct {
	JobID  string       `json:"job_id"`
	Result store.Result `json:"result"`
}

type completeJobResponse struct {
	Success     bool      `json:"success"`
	JobID       string    `json:"job_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// CompleteJob implements POST /aid/v1/complete-job.
func (h *AidHandlers) CompleteJob() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		did := requesterDID(r)

		var req completeJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, aiderrors.InvalidRequest("malformed request body"))
			return
		}

		if err := h.Service.Complete(r.Context(), did, req.JobID, req.Result); err != nil {
			writeAPIError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, completeJobResponse{
			Success: true, JobID: req.JobID, CompletedAt: config.Clock.GetTime(),
		})
	}
}

func requesterDID(r *http.Request) string {
	if encoder, ok := middleware.EncoderFromContext(r.Context()); ok {
		return encoder.EncoderID
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("failed to write JSON response", "err", err)
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*aiderrors.APIError)
	if !ok {
		apiErr = aiderrors.Internal("internal error", err)
	}
	aiderrors.WriteJSON(w, apiErr)
}
