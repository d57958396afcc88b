package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE
// ══════════════════════════════════════════════════════════════════════════════

// Certificate is a completion certificate for a pair. At most one valid
// certificate exists per pair at any time: issuing a new one invalidates
// the prior instead of deleting it, so the audit trail survives.
type Certificate struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// UserID references the certified user.
	UserID UserID

	// CourseID references the completed course.
	CourseID CourseID

	// CertificateURL points at the rendered certificate document.
	CertificateURL string

	// IssuedAt is the issuance timestamp.
	IssuedAt time.Time

	// FinalScore is the average percentage score across the user's
	// assessment results for the course at issuance time; 0 when the
	// course completed on content progress alone.
	FinalScore float64

	// IsValid is false once a newer certificate supersedes this one.
	IsValid bool
}

// NewCertificateParams contains parameters for issuing a certificate.
type NewCertificateParams struct {
	ID             string
	Pair           Pair
	CertificateURL string
	FinalScore     float64
}

// NewCertificate creates a valid certificate with field validation.
func NewCertificate(params NewCertificateParams) (*Certificate, error) {
	if params.ID == "" {
		return nil, errors.New("certificate id is required")
	}
	if !params.Pair.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if params.CertificateURL == "" {
		return nil, shared.ErrEmptyValue
	}
	if params.FinalScore < 0 || params.FinalScore > 100 {
		return nil, shared.ErrValueOutOfRange
	}

	return &Certificate{
		ID:             params.ID,
		UserID:         params.Pair.UserID,
		CourseID:       params.Pair.CourseID,
		CertificateURL: params.CertificateURL,
		IssuedAt:       time.Now().UTC(),
		FinalScore:     params.FinalScore,
		IsValid:        true,
	}, nil
}

// Invalidate marks the certificate as superseded.
func (c *Certificate) Invalidate() {
	c.IsValid = false
}

// Pair returns the identity this certificate was issued for.
func (c *Certificate) Pair() Pair {
	return Pair{UserID: c.UserID, CourseID: c.CourseID}
}

// DefaultCertificateURL derives the canonical certificate location for a
// pair. Used when the caller does not supply an explicit URL.
func DefaultCertificateURL(baseURL string, pair Pair, certificateID string) string {
	return fmt.Sprintf("%s/certificates/%d/%d/%s.pdf", baseURL, pair.UserID, pair.CourseID, certificateID)
}
