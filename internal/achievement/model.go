package achievement

import (
	"context"
	"fmt"
	"strings"
	"time"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

// Category groups definitions for display.
type Category string

const (
	CategoryTime      Category = "time"
	CategoryDuration  Category = "duration"
	CategoryStreak    Category = "streak"
	CategoryMilestone Category = "milestone"
	CategorySpecial   Category = "special"
)

// ValidCategories defines the allowed achievement categories.
var ValidCategories = []Category{CategoryTime, CategoryDuration, CategoryStreak, CategoryMilestone, CategorySpecial}

// CriteriaType identifies how progress toward a definition advances.
type CriteriaType string

const (
	// CriteriaSessionCount counts completed sessions.
	CriteriaSessionCount CriteriaType = "SESSION_COUNT"
	// CriteriaStreakDays mirrors the current consecutive-day streak.
	CriteriaStreakDays CriteriaType = "STREAK_DAYS"
	// CriteriaTotalMinutes accumulates session minutes.
	CriteriaTotalMinutes CriteriaType = "TOTAL_MINUTES"
	// CriteriaFriendCount mirrors the number of accepted friends.
	CriteriaFriendCount CriteriaType = "FRIEND_COUNT"
)

// ValidCriteriaTypes defines the supported rule families.
var ValidCriteriaTypes = []CriteriaType{CriteriaSessionCount, CriteriaStreakDays, CriteriaTotalMinutes, CriteriaFriendCount}

// ActivityKind identifies what the user did.
type ActivityKind string

const (
	ActivitySessionCompleted ActivityKind = "session_completed"
	ActivityStreakAdvanced   ActivityKind = "streak_advanced"
	ActivityFriendAccepted   ActivityKind = "friend_accepted"
)

// criteriaTypesFor lists the rule families an activity kind can advance.
func criteriaTypesFor(kind ActivityKind) []CriteriaType {
	switch kind {
	case ActivitySessionCompleted:
		return []CriteriaType{CriteriaSessionCount, CriteriaTotalMinutes}
	case ActivityStreakAdvanced:
		return []CriteriaType{CriteriaStreakDays}
	case ActivityFriendAccepted:
		return []CriteriaType{CriteriaFriendCount}
	default:
		return nil
	}
}

// Criteria is the rule a user has to satisfy.
type Criteria struct {
	Type   CriteriaType `json:"type"`
	Target int          `json:"target"`
	// SessionKind restricts session based criteria to one kind of session; empty matches all.
	SessionKind string `json:"session_kind,omitempty"`
}

// Validate checks the criteria type and target.
func (c Criteria) Validate() error {
	if !isValidCriteriaType(c.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidCriteriaType, c.Type)
	}
	if c.Target <= 0 {
		return fmt.Errorf("%w: criteria target must be greater than 0", ErrInvalidInput)
	}
	return nil
}

// Matches reports whether event can advance progress under these criteria.
func (c Criteria) Matches(event ActivityEvent) bool {
	applicable := false
	for _, t := range criteriaTypesFor(event.Kind) {
		if t == c.Type {
			applicable = true
			break
		}
	}
	if !applicable {
		return false
	}
	if event.Kind == ActivitySessionCompleted && c.SessionKind != "" {
		return strings.EqualFold(c.SessionKind, event.SessionKind)
	}
	return true
}

// Definition is an admin-authored achievement rule and its reward.
type Definition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Criteria    Criteria  `json:"criteria"`
	Icon        string    `json:"icon,omitempty"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefinitionInput carries the admin-editable fields of a definition.
type DefinitionInput struct {
	ID           string       `json:"id" validate:"omitempty,max=64,excludesall=/"`
	Name         string       `json:"name" validate:"required,max=120"`
	Description  string       `json:"description" validate:"max=1000"`
	Category     Category     `json:"category" validate:"required"`
	CriteriaType CriteriaType `json:"criteria_type" validate:"required"`
	Target       int          `json:"target" validate:"gt=0"`
	SessionKind  string       `json:"session_kind" validate:"max=32"`
	Icon         string       `json:"icon" validate:"max=512"`
	Points       int          `json:"points" validate:"gte=0"`
}

// Progress is a user's advancement toward one definition.
type Progress struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	Progress      int        `json:"progress"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	PointsAwarded int        `json:"points_awarded"`
	LastEventID   string     `json:"-"`
	Version       int64      `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ProgressID is the stable document key of a user's progress record.
func ProgressID(userID, achievementID string) string {
	return userID + "_" + achievementID
}

// ActivityEvent describes something the user did that may advance achievements.
type ActivityEvent struct {
	// ID deduplicates redelivery of the same event; optional.
	ID              string
	UserID          string
	Kind            ActivityKind
	SessionKind     string
	DurationMinutes int
	StreakDays      int
	FriendCount     int
	OccurredAt      time.Time
}

// Validate rejects events that cannot be evaluated.
func (e ActivityEvent) Validate() error {
	var problems []string

	if strings.TrimSpace(e.UserID) == "" {
		problems = append(problems, "user_id is required")
	}
	switch e.Kind {
	case ActivitySessionCompleted:
		if e.DurationMinutes <= 0 {
			problems = append(problems, "duration_minutes must be greater than 0")
		}
	case ActivityStreakAdvanced:
		if e.StreakDays <= 0 {
			problems = append(problems, "streak_days must be greater than 0")
		}
	case ActivityFriendAccepted:
		if e.FriendCount <= 0 {
			problems = append(problems, "friend_count must be greater than 0")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown activity kind %q", e.Kind))
	}
	if e.DurationMinutes < 0 || e.StreakDays < 0 || e.FriendCount < 0 {
		problems = append(problems, "activity values must be non-negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// ProgressView joins a progress record with its definition for API responses.
type ProgressView struct {
	Achievement     Definition `json:"achievement"`
	Progress        int        `json:"progress"`
	Target          int        `json:"target"`
	ProgressPercent int        `json:"progress_percent"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	PointsAwarded   int        `json:"points_awarded"`
}

// Badge represents a milestone earned from points.
type Badge struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	MinPts int    `json:"min_points"`
}

// Summary is returned by GET /v1/achievements/me/summary.
type Summary struct {
	UserID           string         `json:"user_id"`
	PointsTotal      int            `json:"points_total"`
	Badges           []Badge        `json:"badges"`
	CompletedCount   int            `json:"completed_count"`
	InProgressCount  int            `json:"in_progress_count"`
	TotalDefinitions int            `json:"total_definitions"`
	Recent           []ProgressView `json:"recent"`
}

// Repository persists definitions and per-user progress.
type Repository interface {
	CreateDefinition(ctx context.Context, def Definition) error
	GetDefinition(ctx context.Context, id string) (Definition, error)
	ListDefinitions(ctx context.Context) ([]Definition, error)
	UpdateDefinition(ctx context.Context, def Definition) error
	// DeleteDefinition fails with ErrInUse when any progress references the definition.
	DeleteDefinition(ctx context.Context, id string) error
	// FindApplicable returns definitions whose criteria type can be advanced by kind.
	FindApplicable(ctx context.Context, kind ActivityKind) ([]Definition, error)

	GetOrCreateProgress(ctx context.Context, userID, achievementID string) (Progress, error)
	// SaveProgress writes record only if the stored version still equals
	// record.Version (ErrConflict otherwise). transitioned is true only for the
	// write that flipped the stored record from not completed to completed.
	SaveProgress(ctx context.Context, record Progress) (saved Progress, transitioned bool, err error)
	ListByUser(ctx context.Context, userID string) ([]Progress, error)
	ListCompletedByUser(ctx context.Context, userID string) ([]Progress, error)
	ListInProgressByUser(ctx context.Context, userID string) ([]Progress, error)
	ListRecentlyCompleted(ctx context.Context, userID string, limit int) ([]Progress, error)
}

// Notifier receives best-effort "achievement completed" messages.
type Notifier interface {
	Notify(ctx context.Context, userID, achievementID string) error
}

// Recorder observes processing outcomes; implemented by the metrics package.
type Recorder interface {
	AchievementCompleted(achievementID string)
	ProcessingFailed(kind ActivityKind)
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new definitions.
type IDGenerator interface {
	NewID() string
}

var (
	// ErrInvalidInput indicates the provided data failed validation.
	ErrInvalidInput = sharederrors.New(sharederrors.KindValidation, "invalid input")
	// ErrInvalidCriteriaType indicates an unsupported criteria type.
	ErrInvalidCriteriaType = sharederrors.New(sharederrors.KindValidation, "invalid criteria type")
	// ErrNotFound indicates the requested definition does not exist.
	ErrNotFound = sharederrors.New(sharederrors.KindNotFound, "achievement not found")
	// ErrProgressNotFound indicates a progress record that must exist is missing.
	ErrProgressNotFound = sharederrors.New(sharederrors.KindNotFound, "achievement progress not found")
	// ErrAlreadyExists indicates a duplicate definition identifier.
	ErrAlreadyExists = sharederrors.New(sharederrors.KindConflict, "achievement already exists")
	// ErrInUse guards deletion of definitions users already progress against.
	ErrInUse = sharederrors.New(sharederrors.KindConflict, "achievement already assigned to users")
	// ErrConflict indicates the progress record changed since it was read.
	ErrConflict = sharederrors.New(sharederrors.KindConflict, "achievement progress modified concurrently")
	// ErrProcessing is returned when every applicable definition failed.
	ErrProcessing = sharederrors.New(sharederrors.KindProcessing, "achievement processing failed")
)

func isValidCriteriaType(t CriteriaType) bool {
	for _, v := range ValidCriteriaTypes {
		if v == t {
			return true
		}
	}
	return false
}

func isValidCategory(c Category) bool {
	for _, v := range ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}
