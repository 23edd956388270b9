package achievement

// defaultDefinitions is the starter catalogue seeded on first boot.
// Keep IDs stable because clients and progress records reference them.
func defaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          "first_session",
			Name:        "First Breath",
			Description: "Complete your first wellness session",
			Category:    CategoryMilestone,
			Criteria:    Criteria{Type: CriteriaSessionCount, Target: 1},
			Icon:        "icons/first_session.png",
			Points:      10,
		},
		{
			ID:          "sessions_10",
			Name:        "Getting Into It",
			Description: "Complete 10 wellness sessions",
			Category:    CategoryMilestone,
			Criteria:    Criteria{Type: CriteriaSessionCount, Target: 10},
			Icon:        "icons/sessions_10.png",
			Points:      50,
		},
		{
			ID:          "breathing_5",
			Name:        "Deep Breather",
			Description: "Complete 5 breathing sessions",
			Category:    CategorySpecial,
			Criteria:    Criteria{Type: CriteriaSessionCount, Target: 5, SessionKind: "breathing"},
			Icon:        "icons/breathing_5.png",
			Points:      30,
		},
		{
			ID:          "minutes_60",
			Name:        "First Hour",
			Description: "Spend 60 minutes in wellness sessions",
			Category:    CategoryDuration,
			Criteria:    Criteria{Type: CriteriaTotalMinutes, Target: 60},
			Icon:        "icons/minutes_60.png",
			Points:      40,
		},
		{
			ID:          "minutes_600",
			Name:        "Ten Hours Calm",
			Description: "Spend 600 minutes in wellness sessions",
			Category:    CategoryDuration,
			Criteria:    Criteria{Type: CriteriaTotalMinutes, Target: 600},
			Icon:        "icons/minutes_600.png",
			Points:      150,
		},
		{
			ID:          "streak_3",
			Name:        "Three In A Row",
			Description: "Practice three days in a row",
			Category:    CategoryStreak,
			Criteria:    Criteria{Type: CriteriaStreakDays, Target: 3},
			Icon:        "icons/streak_3.png",
			Points:      30,
		},
		{
			ID:          "streak_7",
			Name:        "Full Week",
			Description: "Practice seven days in a row",
			Category:    CategoryStreak,
			Criteria:    Criteria{Type: CriteriaStreakDays, Target: 7},
			Icon:        "icons/streak_7.png",
			Points:      75,
		},
		{
			ID:          "streak_30",
			Name:        "Habit Formed",
			Description: "Practice thirty days in a row",
			Category:    CategoryStreak,
			Criteria:    Criteria{Type: CriteriaStreakDays, Target: 30},
			Icon:        "icons/streak_30.png",
			Points:      300,
		},
		{
			ID:          "first_friend",
			Name:        "Better Together",
			Description: "Accept your first friend",
			Category:    CategorySpecial,
			Criteria:    Criteria{Type: CriteriaFriendCount, Target: 1},
			Icon:        "icons/first_friend.png",
			Points:      20,
		},
		{
			ID:          "friends_5",
			Name:        "Circle Of Support",
			Description: "Have five friends",
			Category:    CategorySpecial,
			Criteria:    Criteria{Type: CriteriaFriendCount, Target: 5},
			Icon:        "icons/friends_5.png",
			Points:      60,
		},
	}
}

// badgesForPoints returns every badge unlocked for the given points.
func badgesForPoints(points int) []Badge {
	thresholds := []Badge{
		{ID: "bronze", Label: "Bronze", MinPts: 100},
		{ID: "silver", Label: "Silver", MinPts: 250},
		{ID: "gold", Label: "Gold", MinPts: 500},
		{ID: "diamond", Label: "Diamond", MinPts: 1000},
	}

	unlocked := []Badge{}
	for _, b := range thresholds {
		if points >= b.MinPts {
			unlocked = append(unlocked, b)
		}
	}
	return unlocked
}
