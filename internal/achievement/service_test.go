package achievement

import (
	"context"
	"errors"
	"testing"

	"github.com/focusnest/wellness-service/shared-libs/logging"
)

type sequenceIDs struct{ n int }

func (s *sequenceIDs) NewID() string {
	s.n++
	return "def-" + string(rune('a'+s.n-1))
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(repo, fixedClock{testNow}, &sequenceIDs{}, logging.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func validInput() DefinitionInput {
	return DefinitionInput{
		Name:         "Calm Week",
		Description:  "Seven days in a row",
		Category:     CategoryStreak,
		CriteriaType: CriteriaStreakDays,
		Target:       7,
		Points:       70,
	}
}

func TestCreateDefinitionValidates(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))
	ctx := context.Background()

	def, err := svc.CreateDefinition(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if def.ID != "def-a" || !def.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected definition: %+v", def)
	}

	bad := validInput()
	bad.Target = 0
	if _, err := svc.CreateDefinition(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero target, got %v", err)
	}

	bad = validInput()
	bad.CriteriaType = "HEARTBEATS"
	if _, err := svc.CreateDefinition(ctx, bad); !errors.Is(err, ErrInvalidCriteriaType) {
		t.Fatalf("expected ErrInvalidCriteriaType, got %v", err)
	}

	bad = validInput()
	bad.Category = "legendary"
	if _, err := svc.CreateDefinition(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for category, got %v", err)
	}

	bad = validInput()
	bad.SessionKind = "breathing"
	if _, err := svc.CreateDefinition(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected session kind on streak criteria to be rejected, got %v", err)
	}

	dup := validInput()
	dup.ID = "def-a"
	if _, err := svc.CreateDefinition(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdateDefinitionKeepsIdentity(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))
	ctx := context.Background()

	def, err := svc.CreateDefinition(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	input := validInput()
	input.Points = 100
	updated, err := svc.UpdateDefinition(ctx, def.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != def.ID || updated.Points != 100 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := svc.UpdateDefinition(ctx, "missing", input); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDefinitionGuardsProgress(t *testing.T) {
	repo := newTestRepo(t,
		Definition{ID: "used", Criteria: Criteria{Type: CriteriaSessionCount, Target: 2}},
		Definition{ID: "unused", Criteria: Criteria{Type: CriteriaFriendCount, Target: 2}},
	)
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := repo.GetOrCreateProgress(ctx, "u1", "used"); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	if err := svc.DeleteDefinition(ctx, "used"); !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	if err := svc.DeleteDefinition(ctx, "unused"); err != nil {
		t.Fatalf("delete unused: %v", err)
	}
	if err := svc.DeleteDefinition(ctx, "unused"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSeedDefaultsIsRepeatable(t *testing.T) {
	svc := newTestService(t, newTestRepo(t))
	ctx := context.Background()

	created, err := svc.SeedDefaults(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != len(defaultDefinitions()) {
		t.Fatalf("expected %d definitions, got %d", len(defaultDefinitions()), created)
	}
	again, err := svc.SeedDefaults(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected second seed to create nothing, got %d, %v", again, err)
	}
	for _, def := range defaultDefinitions() {
		if err := def.Criteria.Validate(); err != nil {
			t.Fatalf("default %s invalid: %v", def.ID, err)
		}
	}
}

func TestSummaryAndListings(t *testing.T) {
	repo := newTestRepo(t,
		Definition{ID: "first", Category: CategoryMilestone, Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 60},
		Definition{ID: "hour", Category: CategoryDuration, Criteria: Criteria{Type: CriteriaTotalMinutes, Target: 60}, Points: 50},
		Definition{ID: "week", Category: CategoryStreak, Criteria: Criteria{Type: CriteriaStreakDays, Target: 7}, Points: 70},
	)
	p := newTestProcessor(t, repo)
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := p.Process(ctx, sessionEvent("s1", 61)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := p.Process(ctx, ActivityEvent{UserID: "u1", Kind: ActivityStreakAdvanced, StreakDays: 1}); err != nil {
		t.Fatalf("process streak: %v", err)
	}

	points, err := svc.GetUserPoints(ctx, "u1")
	if err != nil || points != 110 {
		t.Fatalf("expected 110 points, got %d, %v", points, err)
	}

	summary, err := svc.GetSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.CompletedCount != 2 || summary.InProgressCount != 1 || summary.TotalDefinitions != 3 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if len(summary.Badges) != 1 || summary.Badges[0].ID != "bronze" {
		t.Fatalf("expected bronze badge, got %+v", summary.Badges)
	}
	if len(summary.Recent) != 2 {
		t.Fatalf("expected 2 recent completions, got %d", len(summary.Recent))
	}

	inProgress, err := svc.ListProgress(ctx, "u1", FilterInProgress)
	if err != nil || len(inProgress) != 1 || inProgress[0].Achievement.ID != "week" {
		t.Fatalf("unexpected in-progress list: %+v, %v", inProgress, err)
	}
	if inProgress[0].ProgressPercent != 14 {
		t.Fatalf("expected 14%%, got %d", inProgress[0].ProgressPercent)
	}

	all, err := svc.ListProgress(ctx, "u2", FilterAll)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected untouched definitions listed for new user, got %d, %v", len(all), err)
	}

	if _, err := svc.ListProgress(ctx, "u1", "archived"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown filter, got %v", err)
	}
	if _, err := svc.GetSummary(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty user, got %v", err)
	}
}

func TestBadgesForPoints(t *testing.T) {
	if got := badgesForPoints(0); len(got) != 0 {
		t.Fatalf("expected no badges, got %+v", got)
	}
	if got := badgesForPoints(600); len(got) != 3 || got[2].ID != "gold" {
		t.Fatalf("expected up to gold, got %+v", got)
	}
}
