package achievement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
	"github.com/focusnest/wellness-service/shared-libs/logging"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// flakyRepo wraps the memory repository so individual calls can be overridden.
type flakyRepo struct {
	*memoryRepository
	getOrCreateFn  func(context.Context, string, string) (Progress, error)
	saveProgressFn func(context.Context, Progress) (Progress, bool, error)
}

func (f *flakyRepo) GetOrCreateProgress(ctx context.Context, userID, achievementID string) (Progress, error) {
	if f.getOrCreateFn != nil {
		return f.getOrCreateFn(ctx, userID, achievementID)
	}
	return f.memoryRepository.GetOrCreateProgress(ctx, userID, achievementID)
}

func (f *flakyRepo) SaveProgress(ctx context.Context, record Progress) (Progress, bool, error) {
	if f.saveProgressFn != nil {
		return f.saveProgressFn(ctx, record)
	}
	return f.memoryRepository.SaveProgress(ctx, record)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, userID, achievementID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userID+":"+achievementID)
	return n.err
}

var testNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T, defs ...Definition) *memoryRepository {
	t.Helper()
	repo := newMemoryRepository(func() time.Time { return testNow })
	for _, def := range defs {
		if err := repo.CreateDefinition(context.Background(), def); err != nil {
			t.Fatalf("seed definition %s: %v", def.ID, err)
		}
	}
	return repo
}

func pointsOf(t *testing.T, repo Repository, userID string) int {
	t.Helper()
	completed, err := repo.ListCompletedByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	return sumPoints(completed)
}

func newTestProcessor(t *testing.T, repo Repository, opts ...ProcessorOption) *Processor {
	t.Helper()
	p, err := NewProcessor(repo, fixedClock{testNow}, logging.Discard(), opts...)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p
}

func sessionEvent(id string, minutes int) ActivityEvent {
	return ActivityEvent{ID: id, UserID: "u1", Kind: ActivitySessionCompleted, SessionKind: "breathing", DurationMinutes: minutes}
}

func TestProcessCompletesOnceAndAwardsPoints(t *testing.T) {
	repo := newTestRepo(t, Definition{ID: "first", Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 10})
	notifier := &recordingNotifier{}
	p := newTestProcessor(t, repo, WithNotifier(notifier))
	ctx := context.Background()

	first, err := p.Process(ctx, sessionEvent("s1", 5))
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	if len(first.NewlyCompleted) != 1 || first.PointsAwarded != 10 {
		t.Fatalf("expected one completion worth 10 points, got %+v", first)
	}

	second, err := p.Process(ctx, sessionEvent("s2", 5))
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if len(second.NewlyCompleted) != 0 || second.PointsAwarded != 0 {
		t.Fatalf("expected no new completions, got %+v", second)
	}

	if points := pointsOf(t, repo, "u1"); points != 10 {
		t.Fatalf("expected 10 points, got %d", points)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %v", notifier.calls)
	}
}

func TestProcessSameEventTwiceIsIdempotent(t *testing.T) {
	repo := newTestRepo(t, Definition{ID: "three", Criteria: Criteria{Type: CriteriaSessionCount, Target: 3}, Points: 10})
	p := newTestProcessor(t, repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := p.Process(ctx, sessionEvent("s1", 5)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	rec, _ := repo.GetOrCreateProgress(ctx, "u1", "three")
	if rec.Progress != 1 {
		t.Fatalf("expected redelivered event to count once, got %d", rec.Progress)
	}
}

func TestProcessConcurrentEventsCompleteExactlyOnce(t *testing.T) {
	repo := newTestRepo(t, Definition{ID: "five", Criteria: Criteria{Type: CriteriaSessionCount, Target: 5}, Points: 25})
	p := newTestProcessor(t, repo, WithMaxAttempts(50))
	ctx := context.Background()

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		awarded   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Process(ctx, sessionEvent(fmt.Sprintf("s%d", i), 5))
			if err != nil {
				t.Errorf("process %d: %v", i, err)
				return
			}
			mu.Lock()
			completed += len(res.NewlyCompleted)
			awarded += res.PointsAwarded
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	rec, _ := repo.GetOrCreateProgress(ctx, "u1", "five")
	if rec.Progress != workers {
		t.Fatalf("expected %d sessions counted, got %d", workers, rec.Progress)
	}
	if completed != 1 || awarded != 25 {
		t.Fatalf("expected exactly one completion worth 25, got %d completions and %d points", completed, awarded)
	}
	if points := pointsOf(t, repo, "u1"); points != 25 {
		t.Fatalf("expected 25 points, got %d", points)
	}
}

func TestProcessRetriesOnConflict(t *testing.T) {
	mem := newTestRepo(t, Definition{ID: "first", Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 10})
	conflicts := 0
	repo := &flakyRepo{memoryRepository: mem}
	repo.saveProgressFn = func(ctx context.Context, record Progress) (Progress, bool, error) {
		if conflicts < 2 {
			conflicts++
			return Progress{}, false, ErrConflict
		}
		return mem.SaveProgress(ctx, record)
	}

	res, err := newTestProcessor(t, repo).Process(context.Background(), sessionEvent("s1", 5))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.NewlyCompleted) != 1 {
		t.Fatalf("expected completion after retries, got %+v", res)
	}
}

func TestProcessPartialFailureContinues(t *testing.T) {
	mem := newTestRepo(t,
		Definition{ID: "count", Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 10},
		Definition{ID: "minutes", Criteria: Criteria{Type: CriteriaTotalMinutes, Target: 1}, Points: 5},
	)
	repo := &flakyRepo{memoryRepository: mem}
	repo.getOrCreateFn = func(ctx context.Context, userID, achievementID string) (Progress, error) {
		if achievementID == "minutes" {
			return Progress{}, sharederrors.Wrap(sharederrors.KindStorage, "get progress", errors.New("unavailable"))
		}
		return mem.GetOrCreateProgress(ctx, userID, achievementID)
	}

	res, err := newTestProcessor(t, repo).Process(context.Background(), sessionEvent("s1", 5))
	if err != nil {
		t.Fatalf("expected partial failure to succeed, got %v", err)
	}
	if len(res.NewlyCompleted) != 1 || res.NewlyCompleted[0].ID != "count" {
		t.Fatalf("unexpected completions: %+v", res.NewlyCompleted)
	}
	if len(res.Failures) != 1 || res.Failures[0].AchievementID != "minutes" {
		t.Fatalf("expected failure on minutes, got %+v", res.Failures)
	}
}

func TestProcessTotalFailureReturnsProcessingError(t *testing.T) {
	mem := newTestRepo(t, Definition{ID: "count", Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 10})
	repo := &flakyRepo{memoryRepository: mem}
	repo.saveProgressFn = func(context.Context, Progress) (Progress, bool, error) {
		return Progress{}, false, ErrConflict
	}

	_, err := newTestProcessor(t, repo).Process(context.Background(), sessionEvent("s1", 5))
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if sharederrors.KindOf(err) != sharederrors.KindProcessing {
		t.Fatalf("expected processing kind, got %s", sharederrors.KindOf(err))
	}
}

func TestProcessNoApplicableDefinitions(t *testing.T) {
	repo := newTestRepo(t, Definition{ID: "friends", Criteria: Criteria{Type: CriteriaFriendCount, Target: 1}, Points: 10})
	res, err := newTestProcessor(t, repo).Process(context.Background(), sessionEvent("s1", 5))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.NewlyCompleted) != 0 || res.PointsAwarded != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestProcessSkipsDefinitionsFilteredBySessionKind(t *testing.T) {
	repo := newTestRepo(t, Definition{ID: "pmr_only", Criteria: Criteria{Type: CriteriaSessionCount, Target: 5, SessionKind: "pmr"}, Points: 10})
	ctx := context.Background()

	if _, err := newTestProcessor(t, repo).Process(ctx, sessionEvent("s1", 5)); err != nil {
		t.Fatalf("process: %v", err)
	}

	inProgress, err := repo.ListInProgressByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list in progress: %v", err)
	}
	if len(inProgress) != 0 {
		t.Fatalf("expected no progress records for a breathing session, got %+v", inProgress)
	}
	if err := repo.DeleteDefinition(ctx, "pmr_only"); err != nil {
		t.Fatalf("expected untouched definition to be deletable, got %v", err)
	}
}

func TestProcessRejectsInvalidEvent(t *testing.T) {
	repo := newTestRepo(t)
	_, err := newTestProcessor(t, repo).Process(context.Background(), sessionEvent("s1", -3))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessNotifierFailureIsSwallowed(t *testing.T) {
	repo := newTestRepo(t, Definition{ID: "first", Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 10})
	notifier := &recordingNotifier{err: errors.New("push unavailable")}

	res, err := newTestProcessor(t, repo, WithNotifier(notifier)).Process(context.Background(), sessionEvent("s1", 5))
	if err != nil {
		t.Fatalf("notifier failure must not fail processing: %v", err)
	}
	if res.PointsAwarded != 10 {
		t.Fatalf("expected 10 points, got %d", res.PointsAwarded)
	}
}

func TestThreeSessionsEndToEnd(t *testing.T) {
	repo := newTestRepo(t,
		Definition{ID: "first_session", Criteria: Criteria{Type: CriteriaSessionCount, Target: 1}, Points: 10},
		Definition{ID: "three_sessions", Criteria: Criteria{Type: CriteriaSessionCount, Target: 3}, Points: 30},
		Definition{ID: "streak_3", Criteria: Criteria{Type: CriteriaStreakDays, Target: 3}, Points: 50},
	)
	p := newTestProcessor(t, repo)
	ctx := context.Background()

	var sessions []time.Time
	var completedIDs []string
	for day := 0; day < 3; day++ {
		at := testNow.AddDate(0, 0, day)
		sessions = append(sessions, at)

		res, err := p.Process(ctx, ActivityEvent{ID: fmt.Sprintf("s%d", day), UserID: "u1", Kind: ActivitySessionCompleted, DurationMinutes: 10, OccurredAt: at})
		require.NoError(t, err)
		for _, d := range res.NewlyCompleted {
			completedIDs = append(completedIDs, d.ID)
		}

		streak := ComputeStreak(sessions, at)
		res, err = p.Process(ctx, ActivityEvent{ID: fmt.Sprintf("k%d", day), UserID: "u1", Kind: ActivityStreakAdvanced, StreakDays: streak, OccurredAt: at})
		require.NoError(t, err)
		for _, d := range res.NewlyCompleted {
			completedIDs = append(completedIDs, d.ID)
		}
	}

	assert.ElementsMatch(t, []string{"first_session", "three_sessions", "streak_3"}, completedIDs)
	assert.Equal(t, 90, pointsOf(t, repo, "u1"))

	streakRec, err := repo.GetOrCreateProgress(ctx, "u1", "streak_3")
	require.NoError(t, err)
	require.NotNil(t, streakRec.CompletedAt)
	assert.True(t, streakRec.CompletedAt.Equal(testNow.AddDate(0, 0, 2)))
}
