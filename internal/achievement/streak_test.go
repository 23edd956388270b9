package achievement

import (
	"testing"
	"time"
)

func TestComputeStreak(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, jakarta)
	day := func(offset int, hour int) time.Time {
		return time.Date(2024, 3, 10+offset, hour, 0, 0, 0, jakarta)
	}

	tests := []struct {
		name string
		ts   []time.Time
		want int
	}{
		{"empty", nil, 0},
		{"today only", []time.Time{day(0, 8)}, 1},
		{"yesterday keeps streak alive", []time.Time{day(-1, 20), day(-2, 7)}, 2},
		{"gap before today breaks streak", []time.Time{day(0, 8), day(-3, 8)}, 1},
		{"two days ago is broken", []time.Time{day(-2, 8), day(-3, 8)}, 0},
		{"multiple sessions per day count once", []time.Time{day(0, 6), day(0, 8), day(-1, 8), day(-1, 22)}, 2},
		{"unordered input", []time.Time{day(-2, 8), day(0, 8), day(-1, 8)}, 3},
		{"future timestamps ignored", []time.Time{day(2, 8), day(0, 8)}, 1},
	}
	for _, tt := range tests {
		if got := ComputeStreak(tt.ts, now); got != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestComputeStreakUsesLocation(t *testing.T) {
	// 23:30 UTC on the 9th is already the 10th in UTC+7.
	session := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	earlier := time.Date(2024, 3, 9, 1, 0, 0, 0, time.UTC)

	jakarta := time.FixedZone("WIB", 7*60*60)
	nowJakarta := time.Date(2024, 3, 10, 12, 0, 0, 0, jakarta)
	if got := ComputeStreak([]time.Time{session, earlier}, nowJakarta); got != 2 {
		t.Fatalf("expected 2 in UTC+7, got %d", got)
	}

	nowUTC := time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)
	if got := ComputeStreak([]time.Time{session, earlier}, nowUTC); got != 1 {
		t.Fatalf("expected 1 in UTC, got %d", got)
	}
}

func TestLongestStreak(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ts := []time.Time{
		base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2),
		base.AddDate(0, 0, 5), base.AddDate(0, 0, 6),
		base.AddDate(0, 0, 2).Add(3 * time.Hour),
	}
	if got := LongestStreak(ts, time.UTC); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := LongestStreak(nil, nil); got != 0 {
		t.Fatalf("expected 0 for no sessions, got %d", got)
	}
}
