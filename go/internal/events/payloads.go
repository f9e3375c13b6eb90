package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types emitted by match sessions
const (
	TypeMatchCreated     = "MatchCreated"
	TypeMatchStarted     = "MatchStarted"
	TypeQuestionRevealed = "QuestionRevealed"
	TypeMatchFinished    = "MatchFinished"
)

// Event is the envelope every lifecycle event travels in
type Event struct {
	ID         uuid.UUID       `json:"eventId"`
	Type       string          `json:"eventType"`
	RoomCode   string          `json:"roomCode"`
	OccurredAt time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// New marshals payload into a fresh event envelope
func New(eventType, roomCode string, occurredAt time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		RoomCode:   roomCode,
		OccurredAt: occurredAt.UTC(),
		Payload:    data,
	}, nil
}

// MatchCreatedPayload is the payload for a MatchCreated event
type MatchCreatedPayload struct {
	RoomCode           string    `json:"roomCode"`
	HostID             string    `json:"hostId"`
	HostName           string    `json:"hostName"`
	MaxPlayers         int       `json:"maxPlayers"`
	QuestionCount      int       `json:"questionCount"`
	SecondsPerQuestion int       `json:"secondsPerQuestion"`
	CreatedAt          time.Time `json:"createdAt"`
}

// MatchStartedPayload is the payload for a MatchStarted event
type MatchStartedPayload struct {
	RoomCode       string    `json:"roomCode"`
	PlayerCount    int       `json:"playerCount"`
	TotalQuestions int       `json:"totalQuestions"`
	QuestionIDs    []string  `json:"questionIds"`
	StartedAt      time.Time `json:"startedAt"`
}

// QuestionRevealedPayload is the payload for a QuestionRevealed event
type QuestionRevealedPayload struct {
	RoomCode       string           `json:"roomCode"`
	QuestionID     string           `json:"questionId"`
	QuestionNumber int              `json:"questionNumber"`
	CorrectCount   int              `json:"correctCount"`
	TimeoutCount   int              `json:"timeoutCount"`
	Answers        []RevealedAnswer `json:"answers"`
	RevealedAt     time.Time        `json:"revealedAt"`
}

// RevealedAnswer is one scored answer inside a QuestionRevealed event
type RevealedAnswer struct {
	PlayerID  string  `json:"playerId"`
	OptionKey *string `json:"optionKey"`
	ElapsedMs int64   `json:"elapsedMs"`
	Correct   bool    `json:"correct"`
	Points    int     `json:"points"`
}

// MatchFinishedPayload is the payload for a MatchFinished event
type MatchFinishedPayload struct {
	RoomCode       string         `json:"roomCode"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Duration       string         `json:"duration"`
	TotalQuestions int            `json:"totalQuestions"`
	AverageScore   float64        `json:"averageScore"`
	HighScore      int            `json:"highScore"`
	Players        []PlayerResult `json:"players"`
}

// PlayerResult is one player's final standing inside a MatchFinished event
type PlayerResult struct {
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	Rank     int     `json:"rank"`
	Score    int     `json:"score"`
	Correct  int     `json:"correct"`
	Answered int     `json:"answered"`
	Accuracy float64 `json:"accuracy"`
}
