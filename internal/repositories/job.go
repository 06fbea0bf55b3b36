package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// DefaultListLimit caps [JobRepository.List] when no limit is given.
const DefaultListLimit = 20

// JobRepository persists [models.Job] rows and their per-track outcomes.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new [JobRepository] with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// StartJob inserts job, assigning its sequence number. An empty ID is generated.
func (r *JobRepository) StartJob(ctx context.Context, job *models.Job) error {
	sequence, err := NextSequence(ctx, r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	job.Sequence = sequence

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, sequence, kind, reference, name, directory, status,
			track_count, succeeded, failed, excluded, error_message,
			started_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.Sequence,
		job.Kind.String(),
		job.Reference,
		job.Name,
		job.Directory,
		string(job.Status),
		job.TrackCount,
		job.Succeeded,
		job.Failed,
		job.Excluded,
		job.ErrorMessage,
		job.StartedAt,
		nullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// RecordOutcome stores the outcome of one track. Recording the same ordinal
// twice keeps the latest outcome.
func (r *JobRepository) RecordOutcome(ctx context.Context, jobID string, o models.TrackOutcome) error {
	query := `
		INSERT OR REPLACE INTO job_tracks (
			job_id, ordinal, title, artist, album, status, stage, reason,
			output_path, bytes_written, skipped
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		jobID,
		o.Ordinal,
		o.Track.Title,
		o.Track.Artist,
		o.Track.Album,
		string(o.Status),
		string(o.Stage),
		o.Reason,
		o.OutputPath,
		o.BytesWritten,
		o.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	return nil
}

// FinishJob writes the terminal status, counters and metadata of job.
func (r *JobRepository) FinishJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	completedAt := job.CompletedAt
	if completedAt == nil {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `
		UPDATE jobs
		SET name = ?, directory = ?, status = ?, track_count = ?,
			succeeded = ?, failed = ?, excluded = ?, error_message = ?,
			completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		job.Name,
		job.Directory,
		string(job.Status),
		job.TrackCount,
		job.Succeeded,
		job.Failed,
		job.Excluded,
		job.ErrorMessage,
		*completedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID)
	}

	return nil
}

// Get retrieves a job by ID, or by its sequence number when id is numeric.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT id, sequence, kind, reference, name, directory, status,
			track_count, succeeded, failed, excluded, error_message,
			started_at, completed_at
		FROM jobs
		WHERE id = ? OR CAST(sequence AS TEXT) = ?
	`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, err
}

// List returns the most recent jobs, newest first.
func (r *JobRepository) List(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, sequence, kind, reference, name, directory, status,
			track_count, succeeded, failed, excluded, error_message,
			started_at, completed_at
		FROM jobs
		ORDER BY sequence DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// Outcomes returns the recorded track outcomes of a job in ordinal order.
func (r *JobRepository) Outcomes(ctx context.Context, jobID string) ([]models.TrackOutcome, error) {
	query := `
		SELECT ordinal, title, artist, album, status, stage, reason,
			output_path, bytes_written, skipped
		FROM job_tracks
		WHERE job_id = ?
		ORDER BY ordinal
	`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.TrackOutcome
	for rows.Next() {
		var (
			o      models.TrackOutcome
			status string
			stage  string
		)
		err := rows.Scan(
			&o.Ordinal, &o.Track.Title, &o.Track.Artist, &o.Track.Album,
			&status, &stage, &o.Reason, &o.OutputPath, &o.BytesWritten, &o.Skipped,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status, o.Stage = models.OutcomeStatus(status), models.Stage(stage)
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return outcomes, nil
}

// Delete removes a job and, through the foreign key, its outcomes.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanJob scans a jobs row from either [sql.Row] or [sql.Rows].
func scanJob(row scanner) (*models.Job, error) {
	var (
		job         models.Job
		kind        string
		status      string
		completedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.Sequence, &kind, &job.Reference, &job.Name, &job.Directory, &status,
		&job.TrackCount, &job.Succeeded, &job.Failed, &job.Excluded, &job.ErrorMessage,
		&job.StartedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Kind = parseKind(kind)
	job.Status = models.JobStatus(status)
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

func parseKind(s string) models.ReferenceKind {
	if s == models.KindPlaylist.String() {
		return models.KindPlaylist
	}
	return models.KindTrack
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
