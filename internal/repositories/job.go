package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
)

// JobRepository implements models.Repository[*models.Job] for session job history.
type JobRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Job] = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, sequence, session_id, source, filename, size_bytes, state,
	status_message, result_length, error_message, submitted_at,
	finished_at, created_at, updated_at
`

// Create inserts a new job with a generated ID and sequence
func (r *JobRepository) Create(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	job.SetID(shared.GenerateID())
	job.SetSequence(sequence)

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		job.ID(),
		job.Sequence(),
		job.SessionID(),
		string(job.Source()),
		job.Filename(),
		job.SizeBytes(),
		job.State().String(),
		nullable(job.StatusMessage()),
		job.ResultLength(),
		nullable(job.ErrorMessage()),
		job.SubmittedAt(),
		job.FinishedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID
func (r *JobRepository) Get(id string) (*models.Job, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, err
}

// Update writes the mutable lifecycle fields of an existing job
func (r *JobRepository) Update(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	job.SetUpdatedAt(time.Now())

	query := `
		UPDATE jobs
		SET state = ?, status_message = ?, result_length = ?, error_message = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		job.State().String(),
		nullable(job.StatusMessage()),
		job.ResultLength(),
		nullable(job.ErrorMessage()),
		job.FinishedAt(),
		job.UpdatedAt(),
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID())
	}

	return nil
}

// List retrieves jobs matching the given criteria, newest first.
//
// Supported criteria: "session_id" (string), "state" (string).
func (r *JobRepository) List(criteria map[string]any) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if sessionID, ok := criteria["session_id"].(string); ok && sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	if state, ok := criteria["state"].(string); ok && state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
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

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.Job, error) {
	var (
		id            string
		sequence      int
		sessionID     string
		source        string
		filename      string
		sizeBytes     int
		state         string
		statusMessage sql.NullString
		resultLength  int
		errorMessage  sql.NullString
		submittedAt   time.Time
		finishedAt    sql.NullTime
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := s.Scan(
		&id, &sequence, &sessionID, &source, &filename, &sizeBytes, &state,
		&statusMessage, &resultLength, &errorMessage, &submittedAt,
		&finishedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	jobState, err := models.ParseJobState(state)
	if err != nil {
		return nil, err
	}

	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}

	return models.RestoreJob(
		id, sequence, sessionID, models.InputSource(source), filename, sizeBytes,
		jobState, statusMessage.String, resultLength, errorMessage.String,
		submittedAt, finished, createdAt, updatedAt,
	), nil
}

// nullable maps empty strings to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
