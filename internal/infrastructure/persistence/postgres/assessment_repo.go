// Package postgres implements the PostgreSQL record store for the progress service.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const assessmentColumns = `id, user_id, assessment_id, course_id, score, max_score,
	   percentage_score, attempt_number, completed_at, time_taken, progress_id`

// AssessmentRepository implements progress.AssessmentRepository for PostgreSQL.
type AssessmentRepository struct {
	q Querier
}

// NewAssessmentRepository creates a repository bound to the connection pool.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{q: conn}
}

// newAssessmentRepositoryTx creates a repository bound to a transaction.
func newAssessmentRepositoryTx(tx pgx.Tx) *AssessmentRepository {
	return &AssessmentRepository{q: tx}
}

// Create inserts a new assessment result. A unique violation on the
// attempt index means another writer claimed the number first; the
// caller recounts and retries.
func (r *AssessmentRepository) Create(ctx context.Context, res *progress.AssessmentResult) error {
	query := `
		INSERT INTO assessment_results (
			id, user_id, assessment_id, course_id, score, max_score,
			percentage_score, attempt_number, completed_at, time_taken, progress_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.Exec(ctx, query,
		res.ID,
		int64(res.UserID),
		int64(res.AssessmentID),
		int64(res.CourseID),
		res.Score,
		res.MaxScore,
		res.PercentageScore,
		res.AttemptNumber,
		res.CompletedAt,
		int(res.TimeTaken),
		res.ProgressID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateAttempt
		}
		return mapStoreError("create assessment result", err)
	}

	return nil
}

// CountAttempts returns the number of stored results for a key.
func (r *AssessmentRepository) CountAttempts(ctx context.Context, key progress.AttemptKey) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE user_id = $1 AND assessment_id = $2`,
		int64(key.UserID), int64(key.AssessmentID),
	).Scan(&count)
	if err != nil {
		return 0, mapStoreError("count attempts", err)
	}
	return count, nil
}

// ListByProgress returns the results owned by a progress record.
func (r *AssessmentRepository) ListByProgress(ctx context.Context, progressID string) ([]*progress.AssessmentResult, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessment_results
		WHERE progress_id = $1
		ORDER BY completed_at
	`

	rows, err := r.q.Query(ctx, query, progressID)
	if err != nil {
		return nil, mapStoreError("list results by progress", err)
	}
	defer rows.Close()

	return scanAssessmentResults(rows)
}

// ListByUserCourse returns a user's results for one course.
func (r *AssessmentRepository) ListByUserCourse(ctx context.Context, userID progress.UserID, courseID progress.CourseID) ([]*progress.AssessmentResult, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessment_results
		WHERE user_id = $1 AND course_id = $2
		ORDER BY completed_at
	`

	rows, err := r.q.Query(ctx, query, int64(userID), int64(courseID))
	if err != nil {
		return nil, mapStoreError("list results by user and course", err)
	}
	defer rows.Close()

	return scanAssessmentResults(rows)
}

// CountByUser returns the number of results for a user.
func (r *AssessmentRepository) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE user_id = $1`,
		int64(userID),
	).Scan(&count)
	if err != nil {
		return 0, mapStoreError("count results by user", err)
	}
	return count, nil
}

// Count returns the total number of assessment results.
func (r *AssessmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM assessment_results`).Scan(&count)
	if err != nil {
		return 0, mapStoreError("count assessment results", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanAssessmentResult(row pgx.Row) (*progress.AssessmentResult, error) {
	var (
		res          progress.AssessmentResult
		userID       int64
		assessmentID int64
		courseID     int64
		timeTaken    int
	)

	err := row.Scan(
		&res.ID,
		&userID,
		&assessmentID,
		&courseID,
		&res.Score,
		&res.MaxScore,
		&res.PercentageScore,
		&res.AttemptNumber,
		&res.CompletedAt,
		&timeTaken,
		&res.ProgressID,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssessmentNotFound
		}
		return nil, mapStoreError("scan assessment result", err)
	}

	res.UserID = progress.UserID(userID)
	res.AssessmentID = progress.AssessmentID(assessmentID)
	res.CourseID = progress.CourseID(courseID)
	res.TimeTaken = progress.Minutes(timeTaken)

	return &res, nil
}

func scanAssessmentResults(rows pgx.Rows) ([]*progress.AssessmentResult, error) {
	var results []*progress.AssessmentResult
	for rows.Next() {
		res, err := scanAssessmentResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
