// Package store implements the Job Store Gateway: typed atomic operations against the
// shared job collection (spec §4.3). It is the only package permitted to issue raw SQL
// against the jobs table; every other package talks to a job through this interface.
package store

import "time"

// Status is one of the five states a Job can occupy (spec §3).
type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Metadata is immutable after job creation.
type Metadata struct {
	VideoOwner    string `json:"video_owner"`
	VideoPermlink string `json:"video_permlink"`
}

// Input describes the source media the encoder should fetch.
type Input struct {
	URI  string `json:"uri"`
	Size int64  `json:"size"`
}

// Progress is reported by the owning encoder via UpdateProgress.
type Progress struct {
	DownloadPct int `json:"download_pct"`
	Pct         int `json:"pct"`
}

// Result carries the identifier of the encoded artifact. CompleteJob writes it, and a
// repeated CompleteJob by the owner writes it again.
type Result struct {
	CID string `json:"cid"`
}

// Job is the canonical unit of work dispatched to encoders (spec §3).
type Job struct {
	ID              string
	Status          Status
	CreatedAt       time.Time
	AssignedDate    *time.Time
	LastPinged      *time.Time
	CompletedAt     *time.Time
	AssignedTo      string
	Metadata        Metadata
	StorageMetadata string
	Input           Input
	Progress        *Progress
	Result          *Result
}

// IsOwnedBy reports whether did currently holds the claim on this job.
func (j Job) IsOwnedBy(did string) bool {
	return j.AssignedTo != "" && j.AssignedTo == did
}
