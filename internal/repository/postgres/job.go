package postgres

import (
	"context"
	"fmt"

	"capture-service/internal/domain/job"
	apperrors "capture-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `
	id, video_id, owner_id, owner_name, status, run_id,
	parameters, notes, result_path, is_public, visible_to, created_at
`

// Terminal statuses are excluded from every status UPDATE predicate, which
// is what makes them sticky under concurrent terminate/sync calls.
const nonTerminalPredicate = ` AND status NOT IN ('completed', 'failed', 'terminated')`

type JobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	query := `
		INSERT INTO jobs (
			id, video_id, owner_id, owner_name, status, run_id,
			parameters, notes, result_path, is_public, visible_to, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		j.ID, j.VideoID, j.OwnerID, j.OwnerName, j.Status, j.RunID,
		j.Parameters, j.Notes, j.ResultPath, j.IsPublic, uuidsToStrings(j.VisibleTo), j.CreatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("referenced video not found")
		}
		return errFailedCreateJob(err)
	}

	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *JobRepository) ListVisibleTo(ctx context.Context, callerID uuid.UUID, isAdmin bool) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []interface{}

	if !isAdmin {
		query += ` WHERE owner_id = $1 OR is_public OR $2 = ANY(visible_to)`
		args = append(args, callerID, callerID.String())
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errFailedListJobs(err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// ListNonTerminal returns jobs a periodic status sweep should visit.
func (r *JobRepository) ListNonTerminal(ctx context.Context) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status NOT IN ('completed', 'failed', 'terminated') AND run_id IS NOT NULL`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, errFailedListJobs(err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// SetRunID records the engine's run identifier. run_id only ever moves from
// NULL to a value; a second submission attempt cannot overwrite it.
func (r *JobRepository) SetRunID(ctx context.Context, id uuid.UUID, runID string) error {
	query := `UPDATE jobs SET run_id = $2 WHERE id = $1 AND run_id IS NULL`

	result, err := r.db.Pool.Exec(ctx, query, id, runID)
	if err != nil {
		return errFailedUpdateJob(err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return apperrors.InvalidState("job run id is already set")
	}

	return nil
}

// UpdateStatus advances a non-terminal job. The result reports whether the
// row actually moved; a sync racing a terminate simply sees changed=false.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status job.Status, resultPath string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $2, result_path = COALESCE(NULLIF($3, ''), result_path)
		WHERE id = $1` + nonTerminalPredicate

	result, err := r.db.Pool.Exec(ctx, query, id, status, resultPath)
	if err != nil {
		return false, errFailedUpdateJob(err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *JobRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE jobs SET notes = $2 WHERE id = $1`, id, notes)
	if err != nil {
		return errFailedUpdateJob(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound(errJobNotFound)
	}

	return nil
}

func (r *JobRepository) UpdateVisibility(ctx context.Context, id uuid.UUID, input job.UpdateVisibilityInput) error {
	query := `UPDATE jobs SET id = id`
	args := []interface{}{id}
	argCount := 1

	if input.IsPublic != nil {
		argCount++
		query += fmt.Sprintf(", is_public = $%d", argCount)
		args = append(args, *input.IsPublic)
	}

	if input.VisibleTo != nil {
		argCount++
		query += fmt.Sprintf(", visible_to = $%d", argCount)
		args = append(args, uuidsToStrings(*input.VisibleTo))
	}

	query += ` WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return errFailedUpdateVisibility(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound(errJobNotFound)
	}

	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return errFailedDeleteJob(err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound(errJobNotFound)
	}

	return nil
}

func (r *JobRepository) scanOne(row pgx.Row) (*job.Job, error) {
	j := &job.Job{}
	var visibleTo []string

	err := row.Scan(
		&j.ID, &j.VideoID, &j.OwnerID, &j.OwnerName, &j.Status, &j.RunID,
		&j.Parameters, &j.Notes, &j.ResultPath, &j.IsPublic, &visibleTo, &j.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound(errJobNotFound)
		}
		return nil, errFailedScanJob(err)
	}

	j.VisibleTo = stringsToUUIDs(visibleTo)
	return j, nil
}
