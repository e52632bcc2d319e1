package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tubegrab/internal/models"
	"tubegrab/internal/youtube"
)

// JobRepository is the authoritative record of job identity, status and claim
// state. All mutations are single-row conditional updates; the claim update in
// Claim is the only cross-process synchronization point in the system.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, owner_id, download_type, source_url, status, attempt_count, max_attempts,
	holder_id, claimed_at, created_at, updated_at, completed_at, result_ref, error_kind, error_message`

/// eligibleExpr matches jobs a scheduler may claim: never started, or carrying
// a claim that has expired (worker presumed dead). Takes one parameter, the
// stale-claim cutoff instant.
const eligibleExpr = `(status = 'pending'
	OR (status IN ('queued', 'processing') AND (claimed_at IS NULL OR claimed_at <= ?)))`

// Create validates the submission and inserts a new job in pending status.
func (r *JobRepository) Create(ctx context.Context, ownerID string, downloadType models.DownloadType, sourceURL string, maxAttempts int) (*models.Job, error) {
	if !downloadType.Valid() {
		return nil, errors.Wrapf(ErrInvalidInput, "unrecognized download type %q", downloadType)
	}
	if _, err := youtube.ExtractVideoID(sourceURL); err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "malformed source URL %q", sourceURL)
	}
	if maxAttempts < 1 {
		return nil, errors.Wrap(ErrInvalidInput, "max attempts must be at least 1")
	}
	if ownerID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "missing owner id")
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		DownloadType: downloadType,
		SourceURL:    sourceURL,
		Status:       models.JobStatusPending,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, owner_id, download_type, source_url, status, attempt_count, max_attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, job.ID, job.OwnerID, string(job.DownloadType), job.SourceURL, string(job.Status), job.MaxAttempts, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert job")
	}
	return job, nil
}

// GetByID retrieves a job by id, or ErrNotFound.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load job")
	}
	return job, nil
}

// Claim atomically claims the oldest eligible job for holderID and moves it to
// processing with a fresh lease. Eligibility is re-evaluated inside the UPDATE
// itself, so of any number of concurrent claimers exactly one wins per job;
// the losers see zero rows affected and move on to the next candidate.
// Returns (nil, nil) when no job is eligible.
func (r *JobRepository) Claim(ctx context.Context, holderID string, leaseTTL time.Duration) (*models.Job, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-leaseTTL)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM jobs WHERE `+eligibleExpr+` ORDER BY created_at ASC LIMIT 10
	`, staleBefore)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claimable jobs")
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan job id")
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "failed to iterate claimable jobs")
	}
	rows.Close()

	for _, id := range candidates {
		res, err := r.db.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'processing', holder_id = ?, claimed_at = ?, updated_at = ?
			WHERE id = ? AND `+eligibleExpr+`
		`, holderID, now, now, id, staleBefore)
		if err != nil {
			return nil, errors.Wrap(err, "failed to claim job")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read claim result")
		}
		if affected == 1 {
			return r.GetByID(ctx, id)
		}
		// Lost the race for this candidate; try the next one.
	}
	return nil, nil
}

// TransitionFields carries the optional column writes of a status transition.
type TransitionFields struct {
	// HolderID, when set, additionally requires the row to still be leased
	// by this holder.
	HolderID     string
	ResultRef    string
	CompletedAt  *time.Time
	ErrorKind    string
	ErrorMessage string
}

// Transition moves a job from any status in fromSet to the target status in a
// single conditional update. A job whose current status is not in fromSet (or
// that is leased by someone else when fields.HolderID is set) yields
// ErrConflict. Claims are cleared whenever the job leaves processing.
func (r *JobRepository) Transition(ctx context.Context, id string, fromSet []models.JobStatus, to models.JobStatus, fields TransitionFields) error {
	now := time.Now().UTC()

	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(to), now}
	if to != models.JobStatusProcessing {
		sets = append(sets, "holder_id = NULL", "claimed_at = NULL")
	}
	if fields.ResultRef != "" {
		sets = append(sets, "result_ref = ?")
		args = append(args, fields.ResultRef)
	}
	if fields.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, fields.CompletedAt.UTC())
	}
	if fields.ErrorKind != "" {
		sets = append(sets, "error_kind = ?", "error_message = ?")
		args = append(args, fields.ErrorKind, fields.ErrorMessage)
	}

	args = append(args, id)
	placeholders := make([]string, len(fromSet))
	for i, s := range fromSet {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE id = ? AND status IN (%s)`,
		strings.Join(sets, ", "), strings.Join(placeholders, ", "))
	if fields.HolderID != "" {
		query += " AND holder_id = ?"
		args = append(args, fields.HolderID)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "failed to transition job")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read transition result")
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a missing row from a lost race.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return errors.Wrapf(ErrConflict, "job %s not in %v", id, fromSet)
}

// BumpAttempt increments the attempt counter of a job the holder is
// processing. Fails with ErrConflict when the lease was lost or all attempts
// are exhausted, preserving attempt_count <= max_attempts.
func (r *JobRepository) BumpAttempt(ctx context.Context, id, holderID string) (int, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET attempt_count = attempt_count + 1, updated_at = ?
		WHERE id = ? AND status = 'processing' AND holder_id = ? AND attempt_count < max_attempts
	`, now, id, holderID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to bump attempt count")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read attempt bump result")
	}
	if affected != 1 {
		return 0, errors.Wrapf(ErrConflict, "job %s is not processing under holder %s with attempts left", id, holderID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT attempt_count FROM jobs WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to read attempt count")
	}
	return count, nil
}

// ReleaseForRetry returns a processing job to the queue without a terminal
// verdict, clearing the claim so any scheduler instance may reclaim it.
func (r *JobRepository) ReleaseForRetry(ctx context.Context, id, holderID string) error {
	return r.Transition(ctx, id, []models.JobStatus{models.JobStatusProcessing}, models.JobStatusQueued,
		TransitionFields{HolderID: holderID})
}

// Cancel marks a non-terminal job cancelled. An extraction already in flight
// is not interrupted; its eventual completion attempt fails with ErrConflict
// because cancelled is outside every worker transition's from-set.
func (r *JobRepository) Cancel(ctx context.Context, id string) error {
	return r.Transition(ctx, id,
		[]models.JobStatus{models.JobStatusPending, models.JobStatusQueued, models.JobStatusProcessing},
		models.JobStatusCancelled, TransitionFields{})
}

// ListRecent returns the most recently created jobs.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]models.Job, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListByStatus returns jobs in the given status, most recent first.
func (r *JobRepository) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs by status")
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CleanupTerminal deletes terminal jobs last touched before the cutoff and
// returns the ids removed, so the caller can drop any published artifacts.
// Retention is an operator concern; the orchestration core never calls this.
func (r *JobRepository) CleanupTerminal(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM jobs WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at <= ?
	`, cutoff.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list expired jobs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan job id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
			return nil, errors.Wrap(err, "failed to clean up job")
		}
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var downloadType, status string
	var holderID, resultRef, errorKind, errorMessage sql.NullString
	var claimedAt, completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.OwnerID, &downloadType, &job.SourceURL, &status,
		&job.AttemptCount, &job.MaxAttempts, &holderID, &claimedAt,
		&job.CreatedAt, &job.UpdatedAt, &completedAt, &resultRef, &errorKind, &errorMessage)
	if err != nil {
		return nil, err
	}

	job.DownloadType = models.DownloadType(downloadType)
	job.Status = models.JobStatus(status)
	job.HolderID = holderID.String
	job.ResultRef = resultRef.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	if claimedAt.Valid {
		t := claimedAt.Time
		job.ClaimedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
