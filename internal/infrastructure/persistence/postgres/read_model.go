// Package postgres implements the PostgreSQL record store for the progress service.
package postgres

import (
	"context"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS READ MODEL
// Read-only access for the aggregator. Runs on the pool, never inside
// a unit of work: staleness relative to an in-flight write for another
// pair is acceptable.
// ══════════════════════════════════════════════════════════════════════════════

// ReadModel implements analytics.ReadModel for PostgreSQL.
type ReadModel struct {
	conn         *Connection
	progressRepo *ProgressRepository
	assessments  *AssessmentRepository
	certificates *CertificateRepository
}

// NewReadModel creates a new analytics read model.
func NewReadModel(conn *Connection) *ReadModel {
	return &ReadModel{
		conn:         conn,
		progressRepo: NewProgressRepository(conn),
		assessments:  NewAssessmentRepository(conn),
		certificates: NewCertificateRepository(conn),
	}
}

// UserRows fetches everything needed for a user snapshot.
func (m *ReadModel) UserRows(ctx context.Context, userID progress.UserID) (analytics.UserRows, error) {
	var rows analytics.UserRows

	records, err := m.allUserRecords(ctx, userID)
	if err != nil {
		return rows, err
	}
	rows.Records = records

	results, err := m.allUserResults(ctx, userID)
	if err != nil {
		return rows, err
	}
	rows.Results = results

	var validCerts int
	err = m.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM certificates WHERE user_id = $1 AND is_valid`,
		int64(userID),
	).Scan(&validCerts)
	if err != nil {
		return rows, mapStoreError("count valid certificates", err)
	}
	rows.ValidCertificates = validCerts

	return rows, nil
}

// CourseRows fetches everything needed for a course snapshot.
func (m *ReadModel) CourseRows(ctx context.Context, courseID progress.CourseID) (analytics.CourseRows, error) {
	var rows analytics.CourseRows

	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE course_id = $1
	`
	r, err := m.conn.Query(ctx, query, int64(courseID))
	if err != nil {
		return rows, mapStoreError("load course records", err)
	}
	defer r.Close()

	records, err := scanProgressRecords(r)
	if err != nil {
		return rows, err
	}
	rows.Records = records

	var issued int
	err = m.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM certificates WHERE course_id = $1 AND is_valid`,
		int64(courseID),
	).Scan(&issued)
	if err != nil {
		return rows, mapStoreError("count issued certificates", err)
	}
	rows.CertificatesIssued = issued

	return rows, nil
}

// ServiceTotals returns store-wide row counts.
func (m *ReadModel) ServiceTotals(ctx context.Context) (analytics.ServiceTotals, error) {
	var totals analytics.ServiceTotals

	err := m.conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM progress_records),
			(SELECT COUNT(*) FROM assessment_results),
			(SELECT COUNT(*) FROM certificates)
	`).Scan(&totals.ProgressRecords, &totals.AssessmentResults, &totals.Certificates)
	if err != nil {
		return totals, mapStoreError("service totals", err)
	}

	return totals, nil
}

// ActiveCourses returns course IDs with progress activity since the
// given time, most recently active first. Used by the snapshot
// refresh job to pick warm targets.
func (m *ReadModel) ActiveCourses(ctx context.Context, since time.Time, limit int) ([]progress.CourseID, error) {
	rows, err := m.conn.Query(ctx, `
		SELECT course_id
		FROM progress_records
		WHERE last_accessed >= $1
		GROUP BY course_id
		ORDER BY MAX(last_accessed) DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, mapStoreError("list active courses", err)
	}
	defer rows.Close()

	var ids []progress.CourseID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapStoreError("scan active course", err)
		}
		ids = append(ids, progress.CourseID(id))
	}
	return ids, rows.Err()
}

// ActiveUsers returns user IDs with progress activity since the given
// time, most recently active first.
func (m *ReadModel) ActiveUsers(ctx context.Context, since time.Time, limit int) ([]progress.UserID, error) {
	rows, err := m.conn.Query(ctx, `
		SELECT user_id
		FROM progress_records
		WHERE last_accessed >= $1
		GROUP BY user_id
		ORDER BY MAX(last_accessed) DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, mapStoreError("list active users", err)
	}
	defer rows.Close()

	var ids []progress.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapStoreError("scan active user", err)
		}
		ids = append(ids, progress.UserID(id))
	}
	return ids, rows.Err()
}

// allUserRecords loads every record for a user without pagination.
// Analytics needs the full set; users realistically hold tens of
// enrollments, not thousands.
func (m *ReadModel) allUserRecords(ctx context.Context, userID progress.UserID) ([]*progress.ProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE user_id = $1
	`
	rows, err := m.conn.Query(ctx, query, int64(userID))
	if err != nil {
		return nil, mapStoreError("load user records", err)
	}
	defer rows.Close()

	return scanProgressRecords(rows)
}

// allUserResults loads every assessment result for a user.
func (m *ReadModel) allUserResults(ctx context.Context, userID progress.UserID) ([]*progress.AssessmentResult, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessment_results
		WHERE user_id = $1
	`
	rows, err := m.conn.Query(ctx, query, int64(userID))
	if err != nil {
		return nil, mapStoreError("load user results", err)
	}
	defer rows.Close()

	return scanAssessmentResults(rows)
}
