// Package postgres implements the PostgreSQL record store for the progress service.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK IMPLEMENTATION
// One pgx transaction wrapping the three repositories. The row lock taken
// by GetByPairForUpdate inside the transaction is what serializes pair
// mutation; this type only scopes the repositories to the same tx.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWorkFactory implements progress.UnitOfWorkFactory for PostgreSQL.
type UnitOfWorkFactory struct {
	conn *Connection
}

// NewUnitOfWorkFactory creates a new factory.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{conn: conn}
}

// Begin starts a new transaction.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (progress.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, mapStoreError("begin transaction", err)
	}

	return &unitOfWork{
		tx:           tx,
		progressRepo: newProgressRepositoryTx(tx),
		assessments:  newAssessmentRepositoryTx(tx),
		certificates: newCertificateRepositoryTx(tx),
	}, nil
}

type unitOfWork struct {
	tx           pgx.Tx
	progressRepo *ProgressRepository
	assessments  *AssessmentRepository
	certificates *CertificateRepository
	finished     bool
}

// Progress returns the progress repository bound to this transaction.
func (u *unitOfWork) Progress() progress.Repository {
	return u.progressRepo
}

// Assessments returns the assessment repository bound to this transaction.
func (u *unitOfWork) Assessments() progress.AssessmentRepository {
	return u.assessments
}

// Certificates returns the certificate repository bound to this transaction.
func (u *unitOfWork) Certificates() progress.CertificateRepository {
	return u.certificates
}

// Commit commits the transaction.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.finished {
		return shared.ErrStoreConflict
	}
	u.finished = true

	if err := u.tx.Commit(ctx); err != nil {
		return mapStoreError("commit transaction", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit so callers
// can defer it unconditionally.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true

	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return mapStoreError("rollback transaction", err)
	}
	return nil
}
