package models

// Player represents one participant in a session, either a competitor or
// the big-screen spectator display.
type Player struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	IsHost             bool   `json:"isHost"`
	IsSpectator        bool   `json:"isSpectator"`
	Score              int    `json:"score"`
	ConsecutiveCorrect int    `json:"consecutiveCorrect"`
	CorrectCount       int    `json:"correctCount"`
	AnsweredCount      int    `json:"answeredCount"`
	Connected          bool   `json:"connected"`
	// Token authenticates channel attaches. Only the participant's own copy
	// from create or join carries it.
	Token              string `json:"token,omitempty"`
}

// Answer is one player's finalized response to one question.
type Answer struct {
	PlayerID  string  `json:"playerId"`
	OptionKey *string `json:"optionKey"`
	ElapsedMs int64   `json:"elapsedMs"`
	Correct   bool    `json:"correct"`
	Points    int     `json:"points"`
	TimedOut  bool    `json:"timedOut"`
}
