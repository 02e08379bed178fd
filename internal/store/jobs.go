package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/auto-migrate/internal/db"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobReady      JobStatus = "ready"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further writes are accepted in this state.
func (s JobStatus) Terminal() bool {
	return s == JobReady || s == JobFailed || s == JobCancelled
}

// allowedTransitions keeps the lifecycle monotonic.
var allowedTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing, JobFailed, JobCancelled},
	JobProcessing: {JobReady, JobFailed, JobCancelled},
}

// FileDescriptor names one file to materialize for a job.
type FileDescriptor struct {
	RelativePath string `json:"relative_path"`
	FetchURL     string `json:"fetch_url"`
	IsDirectory  bool   `json:"is_directory,omitempty"`
}

// Job is an ingestion request for one session.
type Job struct {
	ID             string           `json:"id"`
	SessionID      string           `json:"session_id"`
	UserID         string           `json:"user_id,omitempty"`
	Status         JobStatus        `json:"status"`
	Error          string           `json:"error,omitempty"`
	TotalFiles     int              `json:"total_files"`
	ProcessedFiles int              `json:"processed_files"`
	TotalChunks    int              `json:"total_chunks"`
	StartedAt      time.Time        `json:"started_at,omitzero"`
	FinishedAt     time.Time        `json:"finished_at,omitzero"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Files          []FileDescriptor `json:"files,omitempty"`
}

// JobStore persists jobs and their file lists.
type JobStore struct {
	db  *db.DB
	now func() time.Time
}

// NewJobStore creates a job store backed by the given database.
func NewJobStore(d *db.DB) *JobStore {
	return &JobStore{db: d, now: time.Now}
}

const jobColumns = `id, session_id, user_id, status, error, total_files, processed_files,
	total_chunks, started_at, finished_at, created_at, updated_at`

// Create inserts a pending job with its file descriptors.
func (s *JobStore) Create(ctx context.Context, sessionID, userID string, files []FileDescriptor) (*Job, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	now := s.now()
	job := &Job{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		UserID:     userID,
		Status:     JobPending,
		TotalFiles: countFiles(files),
		CreatedAt:  now,
		UpdatedAt:  now,
		Files:      files,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning job transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`INSERT INTO jobs (id, session_id, user_id, status, total_files, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.SessionID, job.UserID, string(job.Status), job.TotalFiles, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("inserting job: %w", err)
	}
	if err := insertFiles(ctx, tx, s.db, job.ID, files); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing job: %w", err)
	}
	return job, nil
}

// AddFiles appends descriptors to a job that has not been claimed yet.
func (s *JobStore) AddFiles(ctx context.Context, id string, files []FileDescriptor) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != JobPending {
		return fmt.Errorf("adding files to %s job %s: %w", job.Status, id, ErrJobTerminal)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning file transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFiles(ctx, tx, s.db, id, files); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, s.db.Rebind(`UPDATE jobs SET total_files = (SELECT COUNT(*) FROM job_files WHERE job_id = ? AND is_directory = 0), updated_at = ? WHERE id = ?`),
		id, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("updating file count: %w", err)
	}
	return tx.Commit()
}

// Get returns the job without its file list.
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	return job, nil
}

// Files returns a job's descriptors ordered by relative path.
func (s *JobStore) Files(ctx context.Context, id string) ([]FileDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT relative_path, fetch_url, is_directory
		FROM job_files WHERE job_id = ? ORDER BY relative_path`), id)
	if err != nil {
		return nil, fmt.Errorf("listing job files: %w", err)
	}
	defer rows.Close()

	var files []FileDescriptor
	for rows.Next() {
		var (
			f     FileDescriptor
			isDir int
		)
		if err := rows.Scan(&f.RelativePath, &f.FetchURL, &isDir); err != nil {
			return nil, fmt.Errorf("scanning job file: %w", err)
		}
		f.IsDirectory = isDir != 0
		files = append(files, f)
	}
	return files, rows.Err()
}

// NextClaimable returns the oldest job that has no chunks yet and is either
// pending or processing without an update for longer than reclaimAfter.
// Jobs whose ids are in exclude are skipped. It returns nil, nil when there
// is nothing to do.
func (s *JobStore) NextClaimable(ctx context.Context, reclaimAfter time.Duration, exclude []string) (*Job, error) {
	cutoff := s.now().Add(-reclaimAfter).UnixMilli()
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE total_chunks = 0
		AND (status = 'pending' OR (status = 'processing' AND updated_at < ?))`
	args := []any{cutoff}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(`, ?`, len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at, id LIMIT 1`

	job, err := scanJob(s.db.QueryRowContext(ctx, s.db.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding claimable job: %w", err)
	}
	return job, nil
}

// Claim atomically moves a claimable job to processing. It reports false
// when another worker won the race or the job is no longer claimable.
func (s *JobStore) Claim(ctx context.Context, id string, reclaimAfter time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE jobs
		SET status = 'processing', started_at = ?, updated_at = ?, processed_files = 0, error = ''
		WHERE id = ? AND total_chunks = 0
		AND (status = 'pending' OR (status = 'processing' AND updated_at < ?))`),
		now.UnixMilli(), now.UnixMilli(), id, now.Add(-reclaimAfter).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claiming job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming job %s: %w", id, err)
	}
	return n == 1, nil
}

// UpdateProgress records the processed file count of a processing job. It
// doubles as a heartbeat that keeps the job from being reclaimed.
func (s *JobStore) UpdateProgress(ctx context.Context, id string, processedFiles, totalFiles int) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE jobs SET processed_files = ?, total_files = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`),
		processedFiles, totalFiles, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	return s.checkApplied(ctx, res, id)
}

// UpdateStatus moves a job forward in its lifecycle. Moving to ready records
// totalChunks; moving to failed records errMsg.
func (s *JobStore) UpdateStatus(ctx context.Context, id string, status JobStatus, errMsg string, totalChunks int) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return fmt.Errorf("job %s is %s: %w", id, current.Status, ErrJobTerminal)
	}
	if !transitionAllowed(current.Status, status) {
		return fmt.Errorf("%s -> %s: %w", current.Status, status, ErrInvalidTransition)
	}

	now := s.now().UnixMilli()
	query := `UPDATE jobs SET status = ?, error = ?, updated_at = ?`
	args := []any{string(status), errMsg, now}
	if status.Terminal() {
		query += `, finished_at = ?`
		args = append(args, now)
	}
	if status == JobReady {
		query += `, total_chunks = ?`
		args = append(args, totalChunks)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(current.Status))

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	return s.checkApplied(ctx, res, id)
}

// Cancel marks a job cancelled. Cancelling an already cancelled job is a no-op.
func (s *JobStore) Cancel(ctx context.Context, id string) error {
	err := s.UpdateStatus(ctx, id, JobCancelled, "", 0)
	if errors.Is(err, ErrJobTerminal) {
		job, getErr := s.Get(ctx, id)
		if getErr == nil && job.Status == JobCancelled {
			return nil
		}
	}
	return err
}

// Delete removes a job and its file list.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM jobs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListBySession returns a session's jobs, newest first.
func (s *JobStore) ListBySession(ctx context.Context, sessionID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT `+jobColumns+` FROM jobs
		WHERE session_id = ? ORDER BY created_at DESC, id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// checkApplied turns a zero-row update into ErrJobNotFound or ErrJobTerminal.
func (s *JobStore) checkApplied(ctx context.Context, res sql.Result, id string) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, ErrJobTerminal)
	}
	return fmt.Errorf("job %s is %s: %w", id, job.Status, ErrInvalidTransition)
}

func transitionAllowed(from, to JobStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j                                        Job
		status                                   string
		started, finished, created, updatedMilli int64
	)
	err := row.Scan(&j.ID, &j.SessionID, &j.UserID, &status, &j.Error, &j.TotalFiles,
		&j.ProcessedFiles, &j.TotalChunks, &started, &finished, &created, &updatedMilli)
	if err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.StartedAt = fromMillis(started)
	j.FinishedAt = fromMillis(finished)
	j.CreatedAt = fromMillis(created)
	j.UpdatedAt = fromMillis(updatedMilli)
	return &j, nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFiles(ctx context.Context, tx execer, d *db.DB, jobID string, files []FileDescriptor) error {
	for _, f := range files {
		_, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO job_files (job_id, relative_path, fetch_url, is_directory)
			VALUES (?, ?, ?, ?) ON CONFLICT (job_id, relative_path) DO UPDATE SET fetch_url = excluded.fetch_url`),
			jobID, f.RelativePath, f.FetchURL, boolToInt(f.IsDirectory))
		if err != nil {
			return fmt.Errorf("inserting job file %s: %w", f.RelativePath, err)
		}
	}
	return nil
}

func countFiles(files []FileDescriptor) int {
	n := 0
	for _, f := range files {
		if !f.IsDirectory {
			n++
		}
	}
	return n
}
