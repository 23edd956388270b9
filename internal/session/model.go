package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

// Kind identifies the wellness activity a session belongs to.
type Kind string

const (
	KindMeditation   Kind = "meditation"
	KindBreathing    Kind = "breathing"
	KindPMR          Kind = "pmr"
	KindStressRelief Kind = "stress_relief"
	KindGroup        Kind = "group"
)

// ValidKinds defines the allowed session kinds.
var ValidKinds = []Kind{KindMeditation, KindBreathing, KindPMR, KindStressRelief, KindGroup}

// Status tracks the session lifecycle.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

// ValidMoods defines the allowed mood options
var ValidMoods = []string{
	"calm",
	"relaxed",
	"focused",
	"energetic",
	"tired",
	"anxious",
	"stressed",
	"sad",
}

const (
	minStressLevel = 1
	maxStressLevel = 10
)

// Session is one wellness activity run by a user.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Kind   Kind   `json:"kind"`
	// Technique is the breathing pattern, PMR technique or stress-relief technique.
	Technique       string     `json:"technique,omitempty"`
	ContentID       string     `json:"content_id,omitempty"`
	StressBefore    *int       `json:"stress_before,omitempty"`
	StressAfter     *int       `json:"stress_after,omitempty"`
	MoodBefore      string     `json:"mood_before,omitempty"`
	MoodAfter       string     `json:"mood_after,omitempty"`
	Status          Status     `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DurationMinutes converts the recorded duration to whole minutes. Any
// positive duration counts as at least one minute.
func (s Session) DurationMinutes() int {
	return minutesFromSeconds(s.DurationSeconds)
}

func minutesFromSeconds(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	minutes := seconds / 60
	if minutes == 0 {
		return 1
	}
	return minutes
}

// StartInput captures the data required to start a session.
type StartInput struct {
	UserID       string
	Kind         Kind
	Technique    string
	ContentID    string
	StressBefore *int
	MoodBefore   string
}

// Validate ensures the input fields meet the domain constraints.
func (i StartInput) Validate() error {
	var problems []string

	if strings.TrimSpace(i.UserID) == "" {
		problems = append(problems, "user_id is required")
	}
	if !isValidKind(i.Kind) {
		problems = append(problems, fmt.Sprintf("kind must be one of: %s", joinKinds()))
	}
	if p := checkStress("stress_before", i.StressBefore); p != "" {
		problems = append(problems, p)
	}
	if p := checkMood("mood_before", i.MoodBefore); p != "" {
		problems = append(problems, p)
	}
	if len(i.Technique) > 64 {
		problems = append(problems, "technique must be at most 64 characters")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// CompleteInput captures the data recorded when a session ends.
type CompleteInput struct {
	UserID          string
	SessionID       string
	DurationSeconds int
	StressAfter     *int
	MoodAfter       string
}

// Validate ensures the input fields meet the domain constraints.
func (i CompleteInput) Validate() error {
	var problems []string

	if strings.TrimSpace(i.UserID) == "" {
		problems = append(problems, "user_id is required")
	}
	if strings.TrimSpace(i.SessionID) == "" {
		problems = append(problems, "session id is required")
	}
	if i.DurationSeconds <= 0 {
		problems = append(problems, "duration_seconds must be greater than 0")
	}
	if p := checkStress("stress_after", i.StressAfter); p != "" {
		problems = append(problems, p)
	}
	if p := checkMood("mood_after", i.MoodAfter); p != "" {
		problems = append(problems, p)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// Completion is the state written when a session completes.
type Completion struct {
	DurationSeconds int
	StressAfter     *int
	MoodAfter       string
	CompletedAt     time.Time
}

// Repository encapsulates persistence for sessions.
type Repository interface {
	Create(ctx context.Context, s Session) error
	GetByID(ctx context.Context, userID, sessionID string) (Session, error)
	// Complete moves a started session to completed in one atomic step and
	// fails with ErrAlreadyCompleted when it is not in the started state.
	Complete(ctx context.Context, userID, sessionID string, c Completion) (Session, error)
	List(ctx context.Context, userID string, kind Kind, limit int) ([]Session, error)
	// CompletedTimes returns the completion timestamps of every completed session.
	CompletedTimes(ctx context.Context, userID string) ([]time.Time, error)
	// ListRated returns completed sessions of kind carrying both stress readings.
	ListRated(ctx context.Context, userID string, kind Kind) ([]Session, error)
}

var (
	// ErrNotFound indicates the requested session does not exist for the user.
	ErrNotFound = sharederrors.New(sharederrors.KindNotFound, "session not found")
	// ErrConflict indicates a duplicate identifier collision.
	ErrConflict = sharederrors.New(sharederrors.KindConflict, "session already exists")
	// ErrAlreadyCompleted indicates a second completion of the same session.
	ErrAlreadyCompleted = sharederrors.New(sharederrors.KindConflict, "session already completed")
	// ErrInvalidInput indicates the provided data failed validation.
	ErrInvalidInput = sharederrors.New(sharederrors.KindValidation, "invalid input")
)

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new sessions.
type IDGenerator interface {
	NewID() string
}

func isValidKind(k Kind) bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ParseKind validates a raw kind; empty input yields an empty kind.
func ParseKind(raw string) (Kind, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	if !isValidKind(Kind(raw)) {
		return "", fmt.Errorf("%w: kind must be one of: %s", ErrInvalidInput, joinKinds())
	}
	return Kind(raw), nil
}

func joinKinds() string {
	parts := make([]string, len(ValidKinds))
	for i, k := range ValidKinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func checkStress(field string, v *int) string {
	if v == nil {
		return ""
	}
	if *v < minStressLevel || *v > maxStressLevel {
		return fmt.Sprintf("%s must be between %d and %d", field, minStressLevel, maxStressLevel)
	}
	return ""
}

func checkMood(field, mood string) string {
	if mood == "" {
		return ""
	}
	for _, m := range ValidMoods {
		if m == mood {
			return ""
		}
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(ValidMoods, ", "))
}
