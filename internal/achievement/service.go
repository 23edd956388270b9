package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

var validate = validator.New()

// ProgressFilter selects which progress records a listing returns.
type ProgressFilter string

const (
	FilterAll        ProgressFilter = "all"
	FilterCompleted  ProgressFilter = "completed"
	FilterInProgress ProgressFilter = "in_progress"
)

// Service manages definitions and answers per-user progress queries.
type Service struct {
	repo   Repository
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
}

// NewService wires a Service against repo.
func NewService(repo Repository, clock Clock, ids IDGenerator, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if ids == nil {
		ids = NewUUIDGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, ids: ids, logger: logger}, nil
}

// ListDefinitions returns the full catalogue.
func (s *Service) ListDefinitions(ctx context.Context) ([]Definition, error) {
	return s.repo.ListDefinitions(ctx)
}

// GetDefinition returns one definition.
func (s *Service) GetDefinition(ctx context.Context, id string) (Definition, error) {
	if strings.TrimSpace(id) == "" {
		return Definition{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.repo.GetDefinition(ctx, id)
}

// CreateDefinition validates input and stores a new definition.
func (s *Service) CreateDefinition(ctx context.Context, input DefinitionInput) (Definition, error) {
	if err := validateInput(input); err != nil {
		return Definition{}, err
	}
	now := s.clock.Now().UTC()
	def := definitionFromInput(input)
	def.ID = strings.TrimSpace(input.ID)
	if def.ID == "" {
		def.ID = s.ids.NewID()
	}
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.repo.CreateDefinition(ctx, def); err != nil {
		return Definition{}, err
	}
	s.logger.Info("achievement definition created", slog.String("achievement_id", def.ID))
	return def, nil
}

// UpdateDefinition replaces the editable fields of an existing definition.
// Progress and points already recorded against it are kept as they are.
func (s *Service) UpdateDefinition(ctx context.Context, id string, input DefinitionInput) (Definition, error) {
	if err := validateInput(input); err != nil {
		return Definition{}, err
	}
	existing, err := s.GetDefinition(ctx, id)
	if err != nil {
		return Definition{}, err
	}

	def := definitionFromInput(input)
	def.ID = existing.ID
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.UpdateDefinition(ctx, def); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// DeleteDefinition removes a definition nobody has progress against yet.
func (s *Service) DeleteDefinition(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := s.repo.DeleteDefinition(ctx, id); err != nil {
		return err
	}
	s.logger.Info("achievement definition deleted", slog.String("achievement_id", id))
	return nil
}

// SeedDefaults creates the starter catalogue, skipping definitions that exist.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	created := 0
	for _, def := range defaultDefinitions() {
		def.CreatedAt = now
		def.UpdatedAt = now
		err := s.repo.CreateDefinition(ctx, def)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", def.ID, err)
		}
		created++
	}
	return created, nil
}

// ListProgress returns the user's progress joined with definitions. With
// FilterAll, definitions the user has not touched yet appear at zero.
func (s *Service) ListProgress(ctx context.Context, userID string, filter ProgressFilter) ([]ProgressView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	var (
		defs    []Definition
		records []Progress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.repo.ListDefinitions(gctx)
		defs = d
		return err
	})
	g.Go(func() error {
		var err error
		switch filter {
		case FilterCompleted:
			records, err = s.repo.ListCompletedByUser(gctx, userID)
		case FilterInProgress:
			records, err = s.repo.ListInProgressByUser(gctx, userID)
		case FilterAll, "":
			records, err = s.repo.ListByUser(gctx, userID)
		default:
			err = fmt.Errorf("%w: unknown filter %q", ErrInvalidInput, filter)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := indexDefinitions(defs)
	views := make([]ProgressView, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		def, ok := byID[rec.AchievementID]
		if !ok {
			continue
		}
		seen[def.ID] = struct{}{}
		views = append(views, buildView(def, rec))
	}
	if filter == FilterAll || filter == "" {
		for _, def := range defs {
			if _, ok := seen[def.ID]; !ok {
				views = append(views, buildView(def, Progress{}))
			}
		}
	}
	return views, nil
}

// RecentlyCompleted returns the user's latest completions, newest first.
func (s *Service) RecentlyCompleted(ctx context.Context, userID string, limit int) ([]ProgressView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	records, err := s.repo.ListRecentlyCompleted(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return s.joinDefinitions(ctx, records)
}

// GetUserPoints sums the points snapshotted on the user's completed records.
func (s *Service) GetUserPoints(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	completed, err := s.repo.ListCompletedByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sumPoints(completed), nil
}

// GetSummary aggregates points, badges, counts and recent completions.
func (s *Service) GetSummary(ctx context.Context, userID string) (Summary, error) {
	if err := requireUser(userID); err != nil {
		return Summary{}, err
	}

	var (
		defs       []Definition
		completed  []Progress
		inProgress []Progress
		recent     []Progress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.repo.ListDefinitions(gctx)
		defs = d
		return err
	})
	g.Go(func() error {
		c, err := s.repo.ListCompletedByUser(gctx, userID)
		completed = c
		return err
	})
	g.Go(func() error {
		p, err := s.repo.ListInProgressByUser(gctx, userID)
		inProgress = p
		return err
	})
	g.Go(func() error {
		r, err := s.repo.ListRecentlyCompleted(gctx, userID, defaultRecentLimit)
		recent = r
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	points := sumPoints(completed)
	byID := indexDefinitions(defs)
	recentViews := make([]ProgressView, 0, len(recent))
	for _, rec := range recent {
		if def, ok := byID[rec.AchievementID]; ok {
			recentViews = append(recentViews, buildView(def, rec))
		}
	}

	return Summary{
		UserID:           userID,
		PointsTotal:      points,
		Badges:           badgesForPoints(points),
		CompletedCount:   len(completed),
		InProgressCount:  len(inProgress),
		TotalDefinitions: len(defs),
		Recent:           recentViews,
	}, nil
}

func (s *Service) joinDefinitions(ctx context.Context, records []Progress) ([]ProgressView, error) {
	defs, err := s.repo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	byID := indexDefinitions(defs)
	views := make([]ProgressView, 0, len(records))
	for _, rec := range records {
		if def, ok := byID[rec.AchievementID]; ok {
			views = append(views, buildView(def, rec))
		}
	}
	return views, nil
}

func sumPoints(records []Progress) int {
	total := 0
	for _, rec := range records {
		if rec.Completed {
			total += rec.PointsAwarded
		}
	}
	return total
}

func validateInput(input DefinitionInput) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !isValidCategory(input.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, input.Category)
	}
	criteria := Criteria{Type: input.CriteriaType, Target: input.Target, SessionKind: input.SessionKind}
	if err := criteria.Validate(); err != nil {
		return err
	}
	if input.SessionKind != "" && input.CriteriaType != CriteriaSessionCount && input.CriteriaType != CriteriaTotalMinutes {
		return fmt.Errorf("%w: session_kind only applies to session criteria", ErrInvalidInput)
	}
	return nil
}

func definitionFromInput(input DefinitionInput) Definition {
	return Definition{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Criteria: Criteria{
			Type:        input.CriteriaType,
			Target:      input.Target,
			SessionKind: strings.ToLower(strings.TrimSpace(input.SessionKind)),
		},
		Icon:   strings.TrimSpace(input.Icon),
		Points: input.Points,
	}
}

func buildView(def Definition, rec Progress) ProgressView {
	return ProgressView{
		Achievement:     def,
		Progress:        rec.Progress,
		Target:          def.Criteria.Target,
		ProgressPercent: progressPercent(rec.Progress, def.Criteria.Target),
		Completed:       rec.Completed,
		CompletedAt:     rec.CompletedAt,
		PointsAwarded:   rec.PointsAwarded,
	}
}

func indexDefinitions(defs []Definition) map[string]Definition {
	byID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}
	return byID
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
