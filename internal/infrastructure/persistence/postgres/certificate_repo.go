// Package postgres implements the PostgreSQL record store for the progress service.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const certificateColumns = `id, user_id, course_id, certificate_url, issued_at,
	   final_score, is_valid`

// CertificateRepository implements progress.CertificateRepository for PostgreSQL.
type CertificateRepository struct {
	q Querier
}

// NewCertificateRepository creates a repository bound to the connection pool.
func NewCertificateRepository(conn *Connection) *CertificateRepository {
	return &CertificateRepository{q: conn}
}

// newCertificateRepositoryTx creates a repository bound to a transaction.
func newCertificateRepositoryTx(tx pgx.Tx) *CertificateRepository {
	return &CertificateRepository{q: tx}
}

// Create inserts a new certificate. A unique violation on the partial
// valid index means another writer issued concurrently.
func (r *CertificateRepository) Create(ctx context.Context, cert *progress.Certificate) error {
	query := `
		INSERT INTO certificates (
			id, user_id, course_id, certificate_url, issued_at, final_score, is_valid
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		cert.ID,
		int64(cert.UserID),
		int64(cert.CourseID),
		cert.CertificateURL,
		cert.IssuedAt,
		cert.FinalScore,
		cert.IsValid,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStoreConflict
		}
		return mapStoreError("create certificate", err)
	}

	return nil
}

// GetValidByPair returns the valid certificate for a pair.
func (r *CertificateRepository) GetValidByPair(ctx context.Context, pair progress.Pair) (*progress.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE user_id = $1 AND course_id = $2 AND is_valid
	`

	row := r.q.QueryRow(ctx, query, int64(pair.UserID), int64(pair.CourseID))
	return scanCertificate(row)
}

// InvalidatePair marks every valid certificate for a pair as superseded.
func (r *CertificateRepository) InvalidatePair(ctx context.Context, pair progress.Pair) (int, error) {
	result, err := r.q.Exec(ctx,
		`UPDATE certificates SET is_valid = FALSE WHERE user_id = $1 AND course_id = $2 AND is_valid`,
		int64(pair.UserID), int64(pair.CourseID),
	)
	if err != nil {
		return 0, mapStoreError("invalidate certificates", err)
	}
	return int(result.RowsAffected()), nil
}

// ListByUser returns all of a user's certificates, newest first.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID progress.UserID) ([]*progress.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE user_id = $1
		ORDER BY issued_at DESC
	`

	rows, err := r.q.Query(ctx, query, int64(userID))
	if err != nil {
		return nil, mapStoreError("list certificates by user", err)
	}
	defer rows.Close()

	var certs []*progress.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}

// Count returns the total number of certificates.
func (r *CertificateRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&count)
	if err != nil {
		return 0, mapStoreError("count certificates", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanCertificate(row pgx.Row) (*progress.Certificate, error) {
	var (
		cert     progress.Certificate
		userID   int64
		courseID int64
	)

	err := row.Scan(
		&cert.ID,
		&userID,
		&courseID,
		&cert.CertificateURL,
		&cert.IssuedAt,
		&cert.FinalScore,
		&cert.IsValid,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCertificateNotFound
		}
		return nil, mapStoreError("scan certificate", err)
	}

	cert.UserID = progress.UserID(userID)
	cert.CourseID = progress.CourseID(courseID)

	return &cert, nil
}
