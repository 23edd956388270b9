package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const defaultMaxAttempts = 3

// Result summarises one Process call.
type Result struct {
	NewlyCompleted []Definition `json:"newly_completed"`
	PointsAwarded  int          `json:"points_awarded"`
	Failures       []Failure    `json:"-"`
}

// Failure records a definition that could not be evaluated or saved.
type Failure struct {
	AchievementID string
	Err           error
}

// Processor applies activity events to every applicable definition.
type Processor struct {
	repo        Repository
	notifier    Notifier
	recorder    Recorder
	clock       Clock
	logger      *slog.Logger
	maxAttempts int
}

// ProcessorOption customises a Processor.
type ProcessorOption func(*Processor)

// WithNotifier sends a best-effort message for each newly completed definition.
func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

// WithRecorder reports completions and failures.
func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithMaxAttempts bounds how often a conflicting progress write is retried.
func WithMaxAttempts(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// NewProcessor wires a processor against repo.
func NewProcessor(repo Repository, clock Clock, logger *slog.Logger, opts ...ProcessorOption) (*Processor, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		repo:        repo,
		recorder:    noopRecorder{},
		clock:       clock,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process evaluates event against every definition whose criteria it can
// advance. Definitions are independent: a failure on one is logged and
// recorded in Result.Failures while the others proceed. ErrProcessing is
// returned only when every applicable definition failed.
func (p *Processor) Process(ctx context.Context, event ActivityEvent) (Result, error) {
	if err := event.Validate(); err != nil {
		return Result{}, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.clock.Now().UTC()
	}

	defs, err := p.repo.FindApplicable(ctx, event.Kind)
	if err != nil {
		p.recorder.ProcessingFailed(event.Kind)
		return Result{}, err
	}

	result := Result{NewlyCompleted: []Definition{}}
	for _, def := range defs {
		completed, err := p.processDefinition(ctx, def, event)
		if err != nil {
			p.logger.Warn("achievement evaluation failed",
				slog.String("user_id", event.UserID),
				slog.String("achievement_id", def.ID),
				slog.String("activity", string(event.Kind)),
				slog.Any("error", err),
			)
			p.recorder.ProcessingFailed(event.Kind)
			result.Failures = append(result.Failures, Failure{AchievementID: def.ID, Err: err})
			continue
		}
		if !completed {
			continue
		}

		result.NewlyCompleted = append(result.NewlyCompleted, def)
		result.PointsAwarded += def.Points
		p.recorder.AchievementCompleted(def.ID)
		p.logger.Info("achievement completed",
			slog.String("user_id", event.UserID),
			slog.String("achievement_id", def.ID),
			slog.Int("points", def.Points),
		)
		p.notify(ctx, event.UserID, def.ID)
	}

	if len(defs) > 0 && len(result.Failures) == len(defs) {
		causes := make([]error, 0, len(result.Failures))
		for _, f := range result.Failures {
			causes = append(causes, fmt.Errorf("%s: %w", f.AchievementID, f.Err))
		}
		return result, fmt.Errorf("%w: %w", ErrProcessing, errors.Join(causes...))
	}
	return result, nil
}

// processDefinition reports whether this call completed def for the user.
func (p *Processor) processDefinition(ctx context.Context, def Definition, event ActivityEvent) (bool, error) {
	// Filtered criteria (session kind) must not leave empty records behind.
	if !def.Criteria.Matches(event) {
		return false, nil
	}
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		current, err := p.repo.GetOrCreateProgress(ctx, event.UserID, def.ID)
		if err != nil {
			return false, err
		}

		eval, err := Evaluate(def.Criteria, current, event)
		if err != nil {
			return false, err
		}
		if !eval.Changed {
			return false, nil
		}

		next := current
		next.Progress = eval.Progress
		next.Completed = eval.Completed
		next.LastEventID = event.ID
		if eval.Completed && !current.Completed {
			completedAt := event.OccurredAt
			next.CompletedAt = &completedAt
			next.PointsAwarded = def.Points
		}

		_, transitioned, err := p.repo.SaveProgress(ctx, next)
		if errors.Is(err, ErrConflict) {
			p.logger.Debug("progress write conflicted, retrying",
				slog.String("user_id", event.UserID),
				slog.String("achievement_id", def.ID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return false, err
		}
		return transitioned, nil
	}
	return false, fmt.Errorf("%w: gave up after %d attempts", ErrConflict, p.maxAttempts)
}

func (p *Processor) notify(ctx context.Context, userID, achievementID string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, userID, achievementID); err != nil {
		p.logger.Warn("achievement notification failed",
			slog.String("user_id", userID),
			slog.String("achievement_id", achievementID),
			slog.Any("error", err),
		)
	}
}
