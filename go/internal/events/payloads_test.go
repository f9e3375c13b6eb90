package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	at := time.Date(2025, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))

	ev, err := New(TypeMatchStarted, "ABCDEF", at, MatchStartedPayload{
		RoomCode:       "ABCDEF",
		PlayerCount:    3,
		TotalQuestions: 2,
		QuestionIDs:    []string{"q1", "q2"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, TypeMatchStarted, ev.Type)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.True(t, at.Equal(ev.OccurredAt))

	var payload MatchStartedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, []string{"q1", "q2"}, payload.QuestionIDs)

	other, err := New(TypeMatchStarted, "ABCDEF", at, payload)
	require.NoError(t, err)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestNew_UnmarshalablePayload(t *testing.T) {
	_, err := New(TypeMatchCreated, "ABCDEF", time.Now(), map[string]any{"bad": make(chan int)})
	assert.ErrorContains(t, err, "marshal MatchCreated payload")
}
