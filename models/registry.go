package models

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&UserProgress{},
		&MissionCompletion{},
		&DailyBonus{},
		&StreakState{},
		&CheckIn{},
		&UserAchievement{},
		&League{},
		&LeagueMember{},
		&LeagueRankSnapshot{},
		&SubscriptionMirror{},
	}
}
