package achievement

import (
	"sort"
	"time"
)

// ComputeStreak counts consecutive calendar days, ending today or yesterday,
// on which at least one timestamp falls. Days are taken in now's location so
// the caller controls the user's timezone. Timestamps after today are ignored.
func ComputeStreak(timestamps []time.Time, now time.Time) int {
	loc := now.Location()
	today := truncateToDay(now, loc)

	days := distinctDays(timestamps, loc)
	// newest first
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	var trimmed []time.Time
	for _, d := range days {
		if !d.After(today) {
			trimmed = append(trimmed, d)
		}
	}
	if len(trimmed) == 0 {
		return 0
	}
	if daysBetween(trimmed[0], today) > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(trimmed); i++ {
		if daysBetween(trimmed[i], trimmed[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of consecutive active days in loc.
func LongestStreak(timestamps []time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := distinctDays(timestamps, loc)
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 0, 0
	var prev time.Time
	for i, day := range days {
		if i > 0 && daysBetween(prev, day) == 1 {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
		prev = day
	}
	return longest
}

func distinctDays(timestamps []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(timestamps))
	days := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.IsZero() {
			continue
		}
		day := truncateToDay(ts, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	return days
}

func truncateToDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from a to b using UTC dates so DST shifts
// in loc never produce 23 or 25 hour days.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
