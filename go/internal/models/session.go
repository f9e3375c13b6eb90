package models

import (
	"time"
)

// Phase defines the top-level state of a session.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Stage defines the sub-state of a session while it is playing.
type Stage string

const (
	StageNone            Stage = ""
	StageAwaitingAnswers Stage = "awaiting_answers"
	StageRevealing       Stage = "revealing"
)

// Settings holds the per-session configuration fixed at creation.
type Settings struct {
	MaxPlayers         int `json:"maxPlayers" yaml:"max_players" validate:"min=2,max=50"`
	QuestionCount      int `json:"questionCount" yaml:"question_count" validate:"min=1,max=50"`
	SecondsPerQuestion int `json:"secondsPerQuestion" yaml:"seconds_per_question" validate:"min=5,max=120"`
}

// DefaultSettings returns the settings used when a creator supplies none.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:         8,
		QuestionCount:      10,
		SecondsPerQuestion: 15,
	}
}

// Session is a point-in-time copy of a match. It is never shared with the
// goroutine that owns the live state.
type Session struct {
	RoomCode             string     `json:"roomCode"`
	Phase                Phase      `json:"phase"`
	Stage                Stage      `json:"stage,omitempty"`
	Settings             Settings   `json:"settings"`
	Players              []Player   `json:"players"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	TotalQuestions       int        `json:"totalQuestions"`
	SecondsRemaining     *int       `json:"secondsRemaining,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	FinishedAt           *time.Time `json:"finishedAt,omitempty"`
}

// CompetitorCount returns the number of non-spectator players.
func (s Session) CompetitorCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.IsSpectator {
			n++
		}
	}
	return n
}
