package progress

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the contract with the record store.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines operations on progress records.
type Repository interface {
	// Create inserts a new progress record.
	// Returns shared.ErrProgressAlreadyExists on a duplicate pair.
	Create(ctx context.Context, record *ProgressRecord) error

	// GetByPair returns the record for a pair.
	// Returns shared.ErrProgressNotFound when no record exists.
	GetByPair(ctx context.Context, pair Pair) (*ProgressRecord, error)

	// GetByPairForUpdate returns the record for a pair with an exclusive
	// row lock held for the remainder of the enclosing transaction.
	// Only meaningful inside a UnitOfWork.
	GetByPairForUpdate(ctx context.Context, pair Pair) (*ProgressRecord, error)

	// Update persists changes to an existing record.
	// Returns shared.ErrProgressNotFound when no record exists.
	Update(ctx context.Context, record *ProgressRecord) error

	// ListByUser returns a user's progress records.
	ListByUser(ctx context.Context, userID UserID, opts ListOptions) ([]*ProgressRecord, error)

	// ListByCourse returns all records for a course.
	ListByCourse(ctx context.Context, courseID CourseID, opts ListOptions) ([]*ProgressRecord, error)

	// CountByUser returns the number of records for a user.
	CountByUser(ctx context.Context, userID UserID) (int, error)

	// Count returns the total number of progress records.
	Count(ctx context.Context) (int, error)
}

// AssessmentRepository defines operations on assessment results.
type AssessmentRepository interface {
	// Create inserts a new result. Returns shared.ErrDuplicateAttempt
	// when the attempt number is already taken for the key (two
	// concurrent writers raced); the caller retries with a fresh count.
	Create(ctx context.Context, result *AssessmentResult) error

	// CountAttempts returns the number of stored results for a key.
	// The next attempt number is this count plus one; call inside the
	// same transaction that inserts the result.
	CountAttempts(ctx context.Context, key AttemptKey) (int, error)

	// ListByProgress returns the results owned by a progress record,
	// ordered by completion time.
	ListByProgress(ctx context.Context, progressID string) ([]*AssessmentResult, error)

	// ListByUserCourse returns a user's results for one course.
	ListByUserCourse(ctx context.Context, userID UserID, courseID CourseID) ([]*AssessmentResult, error)

	// CountByUser returns the number of results for a user.
	CountByUser(ctx context.Context, userID UserID) (int, error)

	// Count returns the total number of assessment results.
	Count(ctx context.Context) (int, error)
}

// CertificateRepository defines operations on certificates.
type CertificateRepository interface {
	// Create inserts a new certificate.
	Create(ctx context.Context, cert *Certificate) error

	// GetValidByPair returns the valid certificate for a pair.
	// Returns shared.ErrCertificateNotFound when none exists.
	GetValidByPair(ctx context.Context, pair Pair) (*Certificate, error)

	// InvalidatePair marks every valid certificate for a pair as
	// superseded. Returns the number of certificates invalidated;
	// zero is not an error.
	InvalidatePair(ctx context.Context, pair Pair) (int, error)

	// ListByUser returns all of a user's certificates, newest first,
	// including invalidated ones (audit trail).
	ListByUser(ctx context.Context, userID UserID) ([]*Certificate, error)

	// Count returns the total number of certificates.
	Count(ctx context.Context) (int, error)
}

// ListOptions contains pagination parameters.
type ListOptions struct {
	// Offset is the pagination offset.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int
}

// DefaultListOptions returns the default pagination.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  50,
	}
}

// WithOffset sets the offset.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit sets the limit.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK (transactions)
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork is one transaction over the record store. The lock scope for
// a pair must never span an external network call: cache invalidation and
// event publication happen after Commit, best-effort.
type UnitOfWork interface {
	// Progress returns the progress repository bound to this transaction.
	Progress() Repository

	// Assessments returns the assessment repository bound to this transaction.
	Assessments() AssessmentRepository

	// Certificates returns the certificate repository bound to this transaction.
	Certificates() CertificateRepository

	// Commit commits the transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory creates units of work.
type UnitOfWorkFactory interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context) (UnitOfWork, error)
}
