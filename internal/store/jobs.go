package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelhaven/mediaserver/internal/models"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(kind string, payloadJSON *string) (*models.Job, error) {
	now := time.Now().Unix()
	job := &models.Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      models.JobQueued,
		Progress:    0,
		PayloadJSON: payloadJSON,
		CreatedTS:   now,
		UpdatedTS:   now,
	}
	_, err := r.db.Exec(
		`INSERT INTO jobs (id, kind, status, progress, payload_json, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Kind, job.Status, job.Progress, job.PayloadJSON, job.CreatedTS, job.UpdatedTS,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) UpdateStatus(id string, status models.JobStatus, progress float64, errMsg *string) error {
	_, err := r.db.Exec(
		`UPDATE jobs SET status = ?, progress = ?, error = ?, updated_ts = ? WHERE id = ?`,
		status, progress, errMsg, time.Now().Unix(), id,
	)
	return err
}

// UpdateStatusWithRetry retries a transient store failure up to 5 attempts
// with ~120ms backoff; the job worker is the only writer for a given job
// id, so retrying here is safe.
func (r *JobRepository) UpdateStatusWithRetry(id string, status models.JobStatus, progress float64, errMsg *string) error {
	var lastErr error
	for i := 0; i < 5; i++ {
		if lastErr = r.UpdateStatus(id, status, progress, errMsg); lastErr == nil {
			return nil
		}
		time.Sleep(120 * time.Millisecond)
	}
	return lastErr
}

func (r *JobRepository) GetByID(id string) (*models.Job, error) {
	job := &models.Job{}
	err := r.db.QueryRow(
		`SELECT id, kind, status, progress, payload_json, error, created_ts, updated_ts FROM jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.Kind, &job.Status, &job.Progress, &job.PayloadJSON, &job.Error, &job.CreatedTS, &job.UpdatedTS)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) ListRecent(limit int) ([]*models.Job, error) {
	rows, err := r.db.Query(
		`SELECT id, kind, status, progress, payload_json, error, created_ts, updated_ts FROM jobs ORDER BY created_ts DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		job := &models.Job{}
		if err := rows.Scan(&job.ID, &job.Kind, &job.Status, &job.Progress, &job.PayloadJSON, &job.Error, &job.CreatedTS, &job.UpdatedTS); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// CancelJob transitions queued|running -> cancelled; a no-op (returns
// false) for any job already in a terminal state.
func (r *JobRepository) CancelJob(id string) (bool, error) {
	res, err := r.db.Exec(
		`UPDATE jobs SET status = 'cancelled', updated_ts = ? WHERE id = ? AND status IN ('queued','running')`,
		time.Now().Unix(), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
