package query

import (
	"context"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST CERTIFICATES QUERY
// Returns a user's certificates, newest first. Invalidated certificates
// stay visible as the audit trail of re-issuance.
// ══════════════════════════════════════════════════════════════════════════════

// ListCertificatesQuery contains the parameters for a certificate listing.
type ListCertificatesQuery struct {
	// UserID identifies the learner.
	UserID int64

	// ValidOnly filters out invalidated certificates.
	ValidOnly bool
}

// Validate validates the query.
func (q ListCertificatesQuery) Validate() error {
	if q.UserID <= 0 {
		return shared.ErrInvalidID
	}
	return nil
}

// CertificateDTO is the read-side shape of one certificate.
type CertificateDTO struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	CourseID       int64     `json:"course_id"`
	CertificateURL string    `json:"certificate_url"`
	IssuedAt       time.Time `json:"issued_at"`
	FinalScore     float64   `json:"final_score"`
	IsValid        bool      `json:"is_valid"`
}

// NewCertificateDTO maps a domain certificate to its DTO.
func NewCertificateDTO(cert *progress.Certificate) CertificateDTO {
	return CertificateDTO{
		ID:             cert.ID,
		UserID:         int64(cert.UserID),
		CourseID:       int64(cert.CourseID),
		CertificateURL: cert.CertificateURL,
		IssuedAt:       cert.IssuedAt,
		FinalScore:     analytics.Round1(cert.FinalScore),
		IsValid:        cert.IsValid,
	}
}

// ListCertificatesResult contains a user's certificates.
type ListCertificatesResult struct {
	Certificates []CertificateDTO `json:"certificates"`
	Total        int              `json:"total"`
}

// ListCertificatesHandler handles the ListCertificatesQuery.
type ListCertificatesHandler struct {
	certificateRepo progress.CertificateRepository
}

// NewListCertificatesHandler creates a new ListCertificatesHandler.
func NewListCertificatesHandler(certificateRepo progress.CertificateRepository) *ListCertificatesHandler {
	return &ListCertificatesHandler{certificateRepo: certificateRepo}
}

// Handle executes the list certificates query.
func (h *ListCertificatesHandler) Handle(ctx context.Context, query ListCertificatesQuery) (*ListCertificatesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListCertificates", shared.ErrValidation, "invalid user id", err)
	}

	certs, err := h.certificateRepo.ListByUser(ctx, progress.UserID(query.UserID))
	if err != nil {
		return nil, err
	}

	result := &ListCertificatesResult{
		Certificates: make([]CertificateDTO, 0, len(certs)),
	}
	for _, cert := range certs {
		if query.ValidOnly && !cert.IsValid {
			continue
		}
		result.Certificates = append(result.Certificates, NewCertificateDTO(cert))
	}
	result.Total = len(result.Certificates)

	return result, nil
}
