package achievement

import "fmt"

// Evaluation is the outcome of applying one event to one progress record.
type Evaluation struct {
	Progress  int
	Completed bool
	// Changed is false when nothing needs to be persisted.
	Changed bool
}

// Evaluate applies event to current under criteria. It is pure: the caller
// decides whether and how to persist the result.
//
// Count and minute criteria accumulate, streak and friend criteria mirror the
// latest value reported by the event. Completion never reverts, even when a
// mirrored value drops below the target again.
//
// Deduplication only remembers the last applied event id: redelivering an
// older event after a newer one has been applied counts it again.
func Evaluate(criteria Criteria, current Progress, event ActivityEvent) (Evaluation, error) {
	if err := criteria.Validate(); err != nil {
		return Evaluation{}, err
	}
	if err := event.Validate(); err != nil {
		return Evaluation{}, err
	}
	if current.Progress < 0 {
		return Evaluation{}, fmt.Errorf("%w: stored progress must be non-negative", ErrInvalidInput)
	}

	result := Evaluation{Progress: current.Progress, Completed: current.Completed}
	if event.ID != "" && event.ID == current.LastEventID {
		return result, nil
	}
	if !criteria.Matches(event) {
		return result, nil
	}

	switch criteria.Type {
	case CriteriaSessionCount:
		result.Progress++
	case CriteriaTotalMinutes:
		result.Progress += event.DurationMinutes
	case CriteriaStreakDays:
		result.Progress = event.StreakDays
	case CriteriaFriendCount:
		result.Progress = event.FriendCount
	}

	if result.Progress >= criteria.Target {
		result.Completed = true
	}
	result.Changed = result.Progress != current.Progress || result.Completed != current.Completed
	return result, nil
}

// progressPercent caps at 100 so mirrored criteria that overshoot still render sanely.
func progressPercent(progress, target int) int {
	if target <= 0 {
		return 0
	}
	pct := progress * 100 / target
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
