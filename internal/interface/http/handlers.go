package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edulearn/progress-service/internal/application/command"
	"github.com/edulearn/progress-service/internal/application/query"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/pkg/logger"
)

// validate checks request body structs against their validate tags.
var validate = validator.New()

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Progress & Analytics API",
		"version":     "v1",
		"description": "Learning progress tracking, assessment results, certificates, and analytics",
		"endpoints": map[string]string{
			"health":           "/health",
			"progress":         "/api/v1/progress",
			"assessments":      "/api/v1/assessments/results",
			"certificates":     "/api/v1/certificates",
			"user_analytics":   "/api/v1/analytics/users/{user_id}",
			"course_analytics": "/api/v1/analytics/courses/{course_id}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles GET /metrics with store totals and server state.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	if s.deps.GetServiceMetrics != nil {
		result, err := s.deps.GetServiceMetrics.Handle(r.Context())
		if err != nil {
			s.logger.Error("failed to read service metrics", logger.Err(err))
		} else {
			metrics["totals"] = result.Totals
			metrics["generated_at"] = result.GeneratedAt
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// upsertProgressRequest is the body of POST /api/v1/progress.
type upsertProgressRequest struct {
	UserID               int64     `json:"user_id" validate:"required,gt=0"`
	CourseID             int64     `json:"course_id" validate:"required,gt=0"`
	CompletionPercentage *float64  `json:"completion_percentage" validate:"omitempty,gte=0,lte=100"`
	TimeSpentMinutes     int       `json:"time_spent_minutes" validate:"gte=0"`
	AllowRegression      bool      `json:"allow_regression"`
	AccessedAt           time.Time `json:"accessed_at"`
}

// upsertProgressResponse mirrors the command result.
type upsertProgressResponse struct {
	Record            query.ProgressDTO     `json:"record"`
	Created           bool                  `json:"created"`
	CompletionChanged bool                  `json:"completion_changed"`
	JustCompleted     bool                  `json:"just_completed"`
	Certificate       *query.CertificateDTO `json:"certificate,omitempty"`
}

// handleUpsertProgress handles POST /api/v1/progress
func (s *Server) handleUpsertProgress(w http.ResponseWriter, r *http.Request) {
	var req upsertProgressRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.UpsertProgressCommand{
		UserID:               req.UserID,
		CourseID:             req.CourseID,
		CompletionPercentage: req.CompletionPercentage,
		TimeSpentDelta:       req.TimeSpentMinutes,
		AllowRegression:      req.AllowRegression,
		AccessedAt:           req.AccessedAt,
		CorrelationID:        getRequestID(r.Context()),
	}

	result, err := s.deps.UpsertProgress.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, "upsert progress", err)
		return
	}

	resp := upsertProgressResponse{
		Record:            query.NewProgressDTO(result.Record),
		Created:           result.Created,
		CompletionChanged: result.CompletionChanged,
		JustCompleted:     result.JustCompleted,
	}
	if result.Certificate != nil {
		cert := query.NewCertificateDTO(result.Certificate)
		resp.Certificate = &cert
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// handleGetProgress handles GET /api/v1/progress/{user_id}/{course_id}
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "user_id")
	if !ok {
		return
	}
	courseID, ok := s.pathID(w, r, "course_id")
	if !ok {
		return
	}

	q := query.GetProgressQuery{
		UserID:             userID,
		CourseID:           courseID,
		ExcludeAssessments: getQueryParamBool(r, "exclude_assessments"),
	}

	result, err := s.deps.GetProgress.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "get progress", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListProgress handles GET /api/v1/users/{user_id}/progress
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "user_id")
	if !ok {
		return
	}

	q := query.ListProgressQuery{
		UserID: userID,
		Offset: getQueryParamInt(r, "offset", 0),
		Limit:  getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.ListProgress.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "list progress", err)
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.Total,
		Offset:     result.Offset,
		Limit:      result.Limit,
		HasMore:    result.Offset+len(result.Records) < result.Total,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordAssessmentRequest is the body of POST /api/v1/assessments/results.
type recordAssessmentRequest struct {
	UserID           int64     `json:"user_id" validate:"required,gt=0"`
	AssessmentID     int64     `json:"assessment_id" validate:"required,gt=0"`
	CourseID         int64     `json:"course_id" validate:"required,gt=0"`
	Score            float64   `json:"score" validate:"gte=0"`
	MaxScore         float64   `json:"max_score" validate:"required,gt=0"`
	TimeTakenMinutes int       `json:"time_taken_minutes" validate:"gte=0"`
	CompletedAt      time.Time `json:"completed_at"`
}

// recordAssessmentResponse mirrors the command result.
type recordAssessmentResponse struct {
	Result        query.AssessmentResultDTO `json:"result"`
	AttemptNumber int                       `json:"attempt_number"`
	Record        query.ProgressDTO         `json:"record"`
	RecordCreated bool                      `json:"record_created"`
}

// handleRecordAssessment handles POST /api/v1/assessments/results
func (s *Server) handleRecordAssessment(w http.ResponseWriter, r *http.Request) {
	var req recordAssessmentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.RecordAssessmentCommand{
		UserID:        req.UserID,
		AssessmentID:  req.AssessmentID,
		CourseID:      req.CourseID,
		Score:         req.Score,
		MaxScore:      req.MaxScore,
		TimeTaken:     req.TimeTakenMinutes,
		CompletedAt:   req.CompletedAt,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.RecordAssessment.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, "record assessment", err)
		return
	}

	writeJSON(w, http.StatusCreated, recordAssessmentResponse{
		Result:        query.NewAssessmentResultDTO(result.Result),
		AttemptNumber: result.AttemptNumber,
		Record:        query.NewProgressDTO(result.Record),
		RecordCreated: result.RecordCreated,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// issueCertificateRequest is the body of POST /api/v1/certificates.
type issueCertificateRequest struct {
	UserID         int64  `json:"user_id" validate:"required,gt=0"`
	CourseID       int64  `json:"course_id" validate:"required,gt=0"`
	CertificateURL string `json:"certificate_url" validate:"omitempty,url"`
}

// issueCertificateResponse mirrors the command result.
type issueCertificateResponse struct {
	Certificate   query.CertificateDTO `json:"certificate"`
	AlreadyIssued bool                 `json:"already_issued"`
}

// handleIssueCertificate handles POST /api/v1/certificates
func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req issueCertificateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.IssueCertificateCommand{
		UserID:         req.UserID,
		CourseID:       req.CourseID,
		CertificateURL: req.CertificateURL,
		CorrelationID:  getRequestID(r.Context()),
	}

	result, err := s.deps.IssueCertificate.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, "issue certificate", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyIssued {
		status = http.StatusOK
	}
	writeJSON(w, status, issueCertificateResponse{
		Certificate:   query.NewCertificateDTO(result.Certificate),
		AlreadyIssued: result.AlreadyIssued,
	})
}

// handleListCertificates handles GET /api/v1/users/{user_id}/certificates
func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "user_id")
	if !ok {
		return
	}

	q := query.ListCertificatesQuery{
		UserID:    userID,
		ValidOnly: getQueryParamBool(r, "valid_only"),
	}

	result, err := s.deps.ListCertificates.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "list certificates", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserAnalytics handles GET /api/v1/analytics/users/{user_id}
func (s *Server) handleGetUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "user_id")
	if !ok {
		return
	}

	snapshot, err := s.deps.GetUserAnalytics.Handle(r.Context(), query.GetUserAnalyticsQuery{UserID: userID})
	if err != nil {
		s.writeDomainError(w, r, "get user analytics", err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// handleGetCourseAnalytics handles GET /api/v1/analytics/courses/{course_id}
func (s *Server) handleGetCourseAnalytics(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathID(w, r, "course_id")
	if !ok {
		return
	}

	snapshot, err := s.deps.GetCourseAnalytics.Handle(r.Context(), query.GetCourseAnalyticsQuery{CourseID: courseID})
	if err != nil {
		s.writeDomainError(w, r, "get course analytics", err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeAndValidate decodes a JSON body into dst and checks its validate
// tags. It writes the error response itself and reports success.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload", err.Error())
		return false
	}

	if err := validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Request validation failed", err.Error())
		return false
	}

	return true
}

// pathID parses a positive int64 path parameter. It writes the error
// response itself and reports success.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	raw := r.PathValue(key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", key+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// writeDomainError maps application errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	requestID := getRequestID(r.Context())

	switch {
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Request validation failed", err.Error())
	case errors.Is(err, shared.ErrCourseNotCompleted):
		writeJSONError(w, http.StatusConflict, "course_not_completed", "Certificates require 100% course completion")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", "Resource already exists")
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", "Concurrent modification, please retry")
	case shared.IsTransient(err):
		s.logger.Error("store unavailable", logger.String("op", op), logger.Err(err), logger.String("request_id", requestID))
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "Storage temporarily unavailable")
	default:
		s.logger.Error("request failed", logger.String("op", op), logger.Err(err), logger.String("request_id", requestID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
