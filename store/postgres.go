package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// registers the "postgres" driver with database/sql.
	_ "github.com/lib/pq"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
)

// Postgres is the production Job Store Gateway, backed by a `jobs` table with secondary
// indexes on status, assigned_to, last_pinged and completed_at (spec §6).
type Postgres struct {
	db *sql.DB
}

// Open connects to the job store and bounds its connection pool per spec §5 (<= 10 conns).
func Open(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening job store connection: %w", err)
	}
	db.SetMaxOpenConns(config.MaxStoreConnections)
	db.SetMaxIdleConns(config.MaxStoreConnections)
	db.SetConnMaxLifetime(time.Hour)
	return &Postgres{db: db}, nil
}

// OpenWithDB wraps an already-open *sql.DB, used by tests with sqlmock.
func OpenWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) ListUnassigned(ctx context.Context, limit int) ([]Job, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, status, created_at, assigned_date, last_pinged, completed_at, assigned_to,
		       video_owner, video_permlink, storage_metadata, input_uri, input_size, progress, result
		FROM jobs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, StatusUnassigned, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unassigned jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimAtomic is a single compare-and-set: the WHERE clause re-checks status=unassigned at
// UPDATE time, so two concurrent claims of the same job race on the row lock and exactly one
// wins (spec P1).
func (p *Postgres) ClaimAtomic(ctx context.Context, jobID, did string, now time.Time) (*Job, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = $1, assigned_to = $2, assigned_date = $3, last_pinged = $3
		WHERE id = $4 AND status = $5
		RETURNING id, status, created_at, assigned_date, last_pinged, completed_at, assigned_to,
		          video_owner, video_permlink, storage_metadata, input_uri, input_size, progress, result`,
		StatusAssigned, did, now, jobID, StatusUnassigned)

	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", jobID, err)
	}
	return &j, nil
}

func (p *Postgres) UpdateProgress(ctx context.Context, jobID, did string, status Status, progress Progress, now time.Time) (bool, error) {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return false, fmt.Errorf("marshalling progress: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, progress = $2, last_pinged = $3
		WHERE id = $4 AND assigned_to = $5`,
		status, progressJSON, now, jobID, did)
	if err != nil {
		return false, fmt.Errorf("updating job %s: %w", jobID, err)
	}
	return rowsAffected(res)
}

func (p *Postgres) CompleteJob(ctx context.Context, jobID, did string, result Result, now time.Time) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshalling result: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, result = $2, completed_at = $3
		WHERE id = $4 AND assigned_to = $5`,
		StatusComplete, resultJSON, now, jobID, did)
	if err != nil {
		return false, fmt.Errorf("completing job %s: %w", jobID, err)
	}
	return rowsAffected(res)
}

func (p *Postgres) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, status, created_at, assigned_date, last_pinged, completed_at, assigned_to,
		       video_owner, video_permlink, storage_metadata, input_uri, input_size, progress, result
		FROM jobs WHERE id = $1`, jobID)

	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}
	return &j, nil
}

// ReleaseTimedOut is a single bulk statement (spec §4.3); double execution is harmless
// because the WHERE predicate re-evaluates per row.
func (p *Postgres) ReleaseTimedOut(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, assigned_to = '', assigned_date = NULL, last_pinged = NULL
		WHERE status IN ($2, $3) AND last_pinged < $4`,
		StatusUnassigned, StatusAssigned, StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("releasing timed out jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *Postgres) RecentlyCompleted(ctx context.Context, hoursBack time.Duration) ([]Job, error) {
	cutoff := config.Clock.GetTime().Add(-hoursBack)
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, status, created_at, assigned_date, last_pinged, completed_at, assigned_to,
		       video_owner, video_permlink, storage_metadata, input_uri, input_size, progress, result
		FROM jobs
		WHERE status = $1 AND completed_at >= $2`, StatusComplete, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing recently completed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// HealStuckJobs promotes any job with result.cid set but status != complete, within window,
// to complete. Ownership is deliberately not re-checked (see SPEC_FULL.md Open Question Decisions).
func (p *Postgres) HealStuckJobs(ctx context.Context, window time.Duration) ([]Job, error) {
	cutoff := config.Clock.GetTime().Add(-window)
	now := config.Clock.GetTime()

	rows, err := p.db.QueryContext(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = $2
		WHERE status != $1 AND result IS NOT NULL AND result->>'cid' != '' AND created_at >= $3
		RETURNING id, status, created_at, assigned_date, last_pinged, completed_at, assigned_to,
		          video_owner, video_permlink, storage_metadata, input_uri, input_size, progress, result`,
		StatusComplete, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("healing stuck jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (p *Postgres) IsFirstAidServiced(ctx context.Context) (bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE status = $1`, StatusComplete).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting completed jobs: %w", err)
	}
	return count == 1, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows so scanJob serves both QueryRow and Query callers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var assignedDate, lastPinged, completedAt sql.NullTime
	var assignedTo sql.NullString
	var progressJSON, resultJSON []byte

	err := row.Scan(
		&j.ID, &j.Status, &j.CreatedAt, &assignedDate, &lastPinged, &completedAt, &assignedTo,
		&j.Metadata.VideoOwner, &j.Metadata.VideoPermlink, &j.StorageMetadata, &j.Input.URI, &j.Input.Size,
		&progressJSON, &resultJSON,
	)
	if err != nil {
		return Job{}, err
	}

	if assignedDate.Valid {
		j.AssignedDate = &assignedDate.Time
	}
	if lastPinged.Valid {
		j.LastPinged = &lastPinged.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	j.AssignedTo = assignedTo.String

	if len(progressJSON) > 0 {
		var progress Progress
		if err := json.Unmarshal(progressJSON, &progress); err != nil {
			return Job{}, fmt.Errorf("unmarshalling progress for job %s: %w", j.ID, err)
		}
		j.Progress = &progress
	}
	if len(resultJSON) > 0 {
		var result Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return Job{}, fmt.Errorf("unmarshalling result for job %s: %w", j.ID, err)
		}
		j.Result = &result
	}

	return j, nil
}
