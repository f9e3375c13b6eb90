package match

// ScoringConfig holds the constants of the scoring formula.
type ScoringConfig struct {
	BasePoints          int `yaml:"base_points"`
	SpeedBonusPerSecond int `yaml:"speed_bonus_per_second"`
	StreakThreshold     int `yaml:"streak_threshold"`
	StreakBonus         int `yaml:"streak_bonus"`
}

// DefaultScoring returns the scoring constants used in production.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		BasePoints:          100,
		SpeedBonusPerSecond: 10,
		StreakThreshold:     3,
		StreakBonus:         50,
	}
}

// Score is the outcome of scoring one answer.
type Score struct {
	Correct bool
	Points  int
	// Streak is the player's consecutive-correct count after this answer.
	Streak int
}

// ScoreAnswer applies the scoring formula to a single answer. A nil optionKey
// is a timeout. streak is the player's consecutive-correct count before this
// answer.
//
// Correct answers earn BasePoints plus SpeedBonusPerSecond for every whole
// second left on the clock, rounding the elapsed time up. The streak bonus is
// added once the answer brings the streak to StreakThreshold or beyond.
func ScoreAnswer(cfg ScoringConfig, secondsPerQuestion int, correctKey string, optionKey *string, elapsedMs int64, streak int) Score {
	if optionKey == nil || *optionKey != correctKey {
		return Score{}
	}

	remaining := secondsPerQuestion - ceilSeconds(elapsedMs)
	if remaining < 0 {
		remaining = 0
	}
	points := cfg.BasePoints + cfg.SpeedBonusPerSecond*remaining
	if cfg.StreakThreshold > 0 && streak+1 >= cfg.StreakThreshold {
		points += cfg.StreakBonus
	}
	return Score{Correct: true, Points: points, Streak: streak + 1}
}

func ceilSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}
