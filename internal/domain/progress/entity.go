// Package progress contains the domain model for course progress tracking.
// This is the core of the business logic - there are no external dependencies here.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID identifies a user in the user service.
type UserID int64

// IsValid checks that the UserID is positive.
func (u UserID) IsValid() bool {
	return u > 0
}

// CourseID identifies a course in the course service.
type CourseID int64

// IsValid checks that the CourseID is positive.
func (c CourseID) IsValid() bool {
	return c > 0
}

// Pair identifies one ProgressRecord: a (user, course) combination.
// All mutation for a pair is serialized; cross-pair operations may
// interleave freely.
type Pair struct {
	UserID   UserID
	CourseID CourseID
}

// IsValid checks that both identifiers are valid.
func (p Pair) IsValid() bool {
	return p.UserID.IsValid() && p.CourseID.IsValid()
}

// String returns the pair in "user/course" format for logging and cache keys.
func (p Pair) String() string {
	return fmt.Sprintf("%d/%d", p.UserID, p.CourseID)
}

// Completion represents a course completion percentage (0.0 - 100.0).
type Completion float64

// IsValid checks that the completion percentage is within range.
func (c Completion) IsValid() bool {
	return c >= 0 && c <= 100
}

// IsComplete returns true when the course is fully completed.
func (c Completion) IsComplete() bool {
	return c >= 100
}

// Clamp bounds the value to the valid [0, 100] range.
func (c Completion) Clamp() Completion {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// Minutes represents time spent, in whole minutes.
type Minutes int

// IsValid checks that the duration is non-negative.
func (m Minutes) IsValid() bool {
	return m >= 0
}

// Add sums two durations.
func (m Minutes) Add(delta Minutes) Minutes {
	return m + delta
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State is the progress state of a pair. NotStarted is implicit - it means
// no record exists for the pair. The InProgress -> Completed transition
// happens exactly when completion_percentage first reaches 100 and is
// idempotent: repeated 100% updates do not re-fire it.
type State string

const (
	// StateNotStarted - no progress record exists yet.
	StateNotStarted State = "not_started"
	// StateInProgress - a record exists with completion below 100.
	StateInProgress State = "in_progress"
	// StateCompleted - completion has reached 100.
	StateCompleted State = "completed"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROGRESS RECORD
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRecord tracks a user's progress through a single course.
// At most one record exists per pair; records are never physically
// deleted (they are retained for analytics history).
type ProgressRecord struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// UserID references the user service's user.
	UserID UserID

	// CourseID references the course service's course.
	CourseID CourseID

	// CompletionPercentage is monotonically non-decreasing under normal
	// operation; see Apply for the regression policy.
	CompletionPercentage Completion

	// LastAccessed is the last time the user touched the course.
	LastAccessed time.Time

	// TotalTimeSpent is cumulative and never decreases.
	TotalTimeSpent Minutes

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}

// NewProgressRecordParams contains parameters for creating a progress record.
type NewProgressRecordParams struct {
	ID         string
	Pair       Pair
	Completion Completion
	TimeSpent  Minutes
}

// NewProgressRecord creates a progress record with validation of all fields.
func NewProgressRecord(params NewProgressRecordParams) (*ProgressRecord, error) {
	if params.ID == "" {
		return nil, errors.New("progress record id is required")
	}
	if !params.Pair.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if !params.Completion.IsValid() {
		return nil, shared.ErrInvalidCompletion
	}
	if !params.TimeSpent.IsValid() {
		return nil, shared.ErrNegativeTimeSpent
	}

	now := time.Now().UTC()

	return &ProgressRecord{
		ID:                   params.ID,
		UserID:               params.Pair.UserID,
		CourseID:             params.Pair.CourseID,
		CompletionPercentage: params.Completion,
		LastAccessed:         now,
		TotalTimeSpent:       params.TimeSpent,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Pair returns the identity of this record.
func (p *ProgressRecord) Pair() Pair {
	return Pair{UserID: p.UserID, CourseID: p.CourseID}
}

// State returns the current progress state.
func (p *ProgressRecord) State() State {
	if p.CompletionPercentage.IsComplete() {
		return StateCompleted
	}
	return StateInProgress
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// Update describes one mutation of a progress record.
type Update struct {
	// Completion is the reported completion percentage; nil means
	// "no completion change" (time-only update).
	Completion *Completion

	// TimeSpentDelta is added to TotalTimeSpent. Never negative.
	TimeSpentDelta Minutes

	// AllowRegression accepts a lower completion value into storage.
	// This is the explicit corrective-reset path; the default policy
	// clamps downgrades away to protect against out-of-order events.
	AllowRegression bool
}

// Validate checks the update.
func (u Update) Validate() error {
	if u.Completion != nil && !u.Completion.IsValid() {
		return shared.ErrInvalidCompletion
	}
	if !u.TimeSpentDelta.IsValid() {
		return shared.ErrNegativeTimeSpent
	}
	return nil
}

// ApplyResult describes what an Update changed.
type ApplyResult struct {
	// CompletionChanged is true when the stored percentage moved.
	CompletionChanged bool

	// JustCompleted is true when this update caused the
	// InProgress -> Completed transition. It is false when the record
	// was already complete, which is what makes the transition
	// idempotent under retried delivery.
	JustCompleted bool
}

// Apply mutates the record according to the update. The caller must hold
// the pair's write lock; this method itself is not concurrency-safe.
func (p *ProgressRecord) Apply(u Update, now time.Time) (ApplyResult, error) {
	if err := u.Validate(); err != nil {
		return ApplyResult{}, err
	}

	wasComplete := p.CompletionPercentage.IsComplete()
	var res ApplyResult

	if u.Completion != nil {
		next := u.Completion.Clamp()
		if next < p.CompletionPercentage && !u.AllowRegression {
			// Silent clamp to the max: a stale or reordered event must
			// not lower stored progress.
			next = p.CompletionPercentage
		}
		if next != p.CompletionPercentage {
			p.CompletionPercentage = next
			res.CompletionChanged = true
		}
	}

	p.TotalTimeSpent = p.TotalTimeSpent.Add(u.TimeSpentDelta)
	p.LastAccessed = now
	p.UpdatedAt = now

	res.JustCompleted = !wasComplete && p.CompletionPercentage.IsComplete()
	return res, nil
}

// String returns a string representation for logging.
func (p *ProgressRecord) String() string {
	return fmt.Sprintf(
		"ProgressRecord{ID: %s, Pair: %s, Completion: %.1f, TimeSpent: %d}",
		p.ID, p.Pair(), float64(p.CompletionPercentage), int(p.TotalTimeSpent),
	)
}

// Clone creates a deep copy of the record.
func (p *ProgressRecord) Clone() *ProgressRecord {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
