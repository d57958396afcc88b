package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

func TestPercentageScore(t *testing.T) {
	pct, err := PercentageScore(85, 100)
	require.NoError(t, err)
	assert.Equal(t, 85.0, pct)

	pct, err = PercentageScore(7, 8)
	require.NoError(t, err)
	assert.InDelta(t, 87.5, pct, 0.0001)

	// Bonus points clamp at 100.
	pct, err = PercentageScore(110, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
}

func TestPercentageScore_Invalid(t *testing.T) {
	_, err := PercentageScore(10, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidMaxScore)

	_, err = PercentageScore(10, -5)
	assert.ErrorIs(t, err, shared.ErrInvalidMaxScore)

	_, err = PercentageScore(-1, 100)
	assert.ErrorIs(t, err, shared.ErrNegativeScore)
}

func TestNewAssessmentResult(t *testing.T) {
	completedAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	res, err := NewAssessmentResult(NewAssessmentResultParams{
		ID:            "res-1",
		Key:           AttemptKey{UserID: 42, AssessmentID: 9},
		CourseID:      7,
		Score:         85,
		MaxScore:      100,
		AttemptNumber: 1,
		TimeTaken:     20,
		ProgressID:    "rec-1",
		CompletedAt:   completedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, 85.0, res.PercentageScore)
	assert.Equal(t, 1, res.AttemptNumber)
	assert.Equal(t, completedAt, res.CompletedAt)
	assert.Equal(t, AttemptKey{UserID: 42, AssessmentID: 9}, res.Key())
}

func TestNewAssessmentResult_DefaultsCompletedAt(t *testing.T) {
	res, err := NewAssessmentResult(NewAssessmentResultParams{
		ID:            "res-1",
		Key:           AttemptKey{UserID: 42, AssessmentID: 9},
		CourseID:      7,
		Score:         50,
		MaxScore:      100,
		AttemptNumber: 1,
	})
	require.NoError(t, err)
	assert.False(t, res.CompletedAt.IsZero())
}

func TestNewAssessmentResult_Validation(t *testing.T) {
	params := NewAssessmentResultParams{
		ID:            "res-1",
		Key:           AttemptKey{UserID: 42, AssessmentID: 9},
		CourseID:      7,
		Score:         50,
		MaxScore:      100,
		AttemptNumber: 1,
	}

	bad := params
	bad.AttemptNumber = 0
	_, err := NewAssessmentResult(bad)
	assert.ErrorIs(t, err, shared.ErrInvalidAttemptNumber)

	bad = params
	bad.Key.AssessmentID = 0
	_, err = NewAssessmentResult(bad)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	bad = params
	bad.TimeTaken = -1
	_, err = NewAssessmentResult(bad)
	assert.ErrorIs(t, err, shared.ErrNegativeTimeSpent)
}

func TestNewCertificate(t *testing.T) {
	cert, err := NewCertificate(NewCertificateParams{
		ID:             "cert-1",
		Pair:           Pair{UserID: 42, CourseID: 7},
		CertificateURL: "https://certificates.example.com/42/7/cert-1.pdf",
		FinalScore:     88.5,
	})
	require.NoError(t, err)

	assert.True(t, cert.IsValid)
	assert.Equal(t, 88.5, cert.FinalScore)

	cert.Invalidate()
	assert.False(t, cert.IsValid)
}

func TestNewCertificate_Validation(t *testing.T) {
	_, err := NewCertificate(NewCertificateParams{
		ID:             "cert-1",
		Pair:           Pair{UserID: 42, CourseID: 7},
		CertificateURL: "",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = NewCertificate(NewCertificateParams{
		ID:             "cert-1",
		Pair:           Pair{UserID: 42, CourseID: 7},
		CertificateURL: "https://example.com/c.pdf",
		FinalScore:     101,
	})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestDefaultCertificateURL(t *testing.T) {
	url := DefaultCertificateURL("https://certs.example.com", Pair{UserID: 42, CourseID: 7}, "cert-1")
	assert.Equal(t, "https://certs.example.com/certificates/42/7/cert-1.pdf", url)
}
