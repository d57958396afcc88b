// Package postgres implements the PostgreSQL record store for the progress service.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const progressColumns = `id, user_id, course_id, completion_percentage, last_accessed,
	   total_time_spent, created_at, updated_at`

// ProgressRepository implements progress.Repository for PostgreSQL.
// It runs against any Querier: the pool for standalone reads, a
// transaction inside a unit of work.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a repository bound to the connection pool.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{q: conn}
}

// newProgressRepositoryTx creates a repository bound to a transaction.
func newProgressRepositoryTx(tx pgx.Tx) *ProgressRepository {
	return &ProgressRepository{q: tx}
}

// Create inserts a new progress record.
func (r *ProgressRepository) Create(ctx context.Context, rec *progress.ProgressRecord) error {
	query := `
		INSERT INTO progress_records (
			id, user_id, course_id, completion_percentage, last_accessed,
			total_time_spent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		int64(rec.UserID),
		int64(rec.CourseID),
		float64(rec.CompletionPercentage),
		rec.LastAccessed,
		int(rec.TotalTimeSpent),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProgressAlreadyExists
		}
		return mapStoreError("create progress record", err)
	}

	return nil
}

// GetByPair returns the record for a pair.
func (r *ProgressRepository) GetByPair(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE user_id = $1 AND course_id = $2
	`

	row := r.q.QueryRow(ctx, query, int64(pair.UserID), int64(pair.CourseID))
	return scanProgressRecord(row)
}

// GetByPairForUpdate returns the record for a pair with FOR UPDATE.
// The row lock serializes all mutation for the pair until commit.
func (r *ProgressRepository) GetByPairForUpdate(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE user_id = $1 AND course_id = $2
		FOR UPDATE
	`

	row := r.q.QueryRow(ctx, query, int64(pair.UserID), int64(pair.CourseID))
	return scanProgressRecord(row)
}

// Update persists changes to an existing record.
func (r *ProgressRepository) Update(ctx context.Context, rec *progress.ProgressRecord) error {
	query := `
		UPDATE progress_records SET
			completion_percentage = $1,
			last_accessed = $2,
			total_time_spent = $3,
			updated_at = $4
		WHERE id = $5
	`

	result, err := r.q.Exec(ctx, query,
		float64(rec.CompletionPercentage),
		rec.LastAccessed,
		int(rec.TotalTimeSpent),
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return mapStoreError("update progress record", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrProgressNotFound
	}

	return nil
}

// ListByUser returns a user's progress records, most recently touched first.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID progress.UserID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE user_id = $1
		ORDER BY updated_at DESC
		OFFSET $2 LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, int64(userID), opts.Offset, opts.Limit)
	if err != nil {
		return nil, mapStoreError("list progress by user", err)
	}
	defer rows.Close()

	return scanProgressRecords(rows)
}

// ListByCourse returns all records for a course.
func (r *ProgressRepository) ListByCourse(ctx context.Context, courseID progress.CourseID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE course_id = $1
		ORDER BY user_id
		OFFSET $2 LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, int64(courseID), opts.Offset, opts.Limit)
	if err != nil {
		return nil, mapStoreError("list progress by course", err)
	}
	defer rows.Close()

	return scanProgressRecords(rows)
}

// CountByUser returns the number of records for a user.
func (r *ProgressRepository) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM progress_records WHERE user_id = $1`,
		int64(userID),
	).Scan(&count)
	if err != nil {
		return 0, mapStoreError("count progress by user", err)
	}
	return count, nil
}

// Count returns the total number of progress records.
func (r *ProgressRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM progress_records`).Scan(&count)
	if err != nil {
		return 0, mapStoreError("count progress records", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanProgressRecord(row pgx.Row) (*progress.ProgressRecord, error) {
	var (
		rec        progress.ProgressRecord
		userID     int64
		courseID   int64
		completion float64
		timeSpent  int
	)

	err := row.Scan(
		&rec.ID,
		&userID,
		&courseID,
		&completion,
		&rec.LastAccessed,
		&timeSpent,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, mapStoreError("scan progress record", err)
	}

	rec.UserID = progress.UserID(userID)
	rec.CourseID = progress.CourseID(courseID)
	rec.CompletionPercentage = progress.Completion(completion)
	rec.TotalTimeSpent = progress.Minutes(timeSpent)

	return &rec, nil
}

func scanProgressRecords(rows pgx.Rows) ([]*progress.ProgressRecord, error) {
	var records []*progress.ProgressRecord
	for rows.Next() {
		rec, err := scanProgressRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

// mapStoreError converts infrastructure failures into the domain's store
// error taxonomy so callers can decide on retries without importing pgx.
func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("store", op, shared.ErrTimeout, "query timed out", err)
	case errors.Is(err, ErrConnectionClosed):
		return shared.WrapError("store", op, shared.ErrServiceUnavailable, "connection closed", err)
	default:
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
}
