package questions

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:     fmt.Sprintf("q%02d", i),
			Prompt: "?",
			Options: []models.Option{
				{Key: "A", Text: "a"}, {Key: "B", Text: "b"},
				{Key: "C", Text: "c"}, {Key: "D", Text: "d"},
			},
			CorrectKey: "C",
		}
	}
	return qs
}

func TestNewBank(t *testing.T) {
	t.Run("rejects an empty pool", func(t *testing.T) {
		_, err := NewBank(nil, nil)
		assert.ErrorIs(t, err, ErrEmptyBank)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		qs := sampleQuestions(2)
		qs[1].ID = qs[0].ID
		_, err := NewBank(qs, nil)
		assert.ErrorContains(t, err, "duplicate id")
	})

	t.Run("rejects invalid questions", func(t *testing.T) {
		qs := sampleQuestions(2)
		qs[1].CorrectKey = "Z"
		_, err := NewBank(qs, nil)
		assert.Error(t, err)
	})
}

func TestBank_SelectQuestions(t *testing.T) {
	ctx := context.Background()
	bank, err := NewBank(sampleQuestions(10), rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	t.Run("returns distinct questions", func(t *testing.T) {
		got, err := bank.SelectQuestions(ctx, 7)
		require.NoError(t, err)
		require.Len(t, got, 7)
		seen := make(map[string]bool)
		for _, q := range got {
			assert.False(t, seen[q.ID], "question %s selected twice", q.ID)
			seen[q.ID] = true
		}
	})

	t.Run("caps at the pool size", func(t *testing.T) {
		got, err := bank.SelectQuestions(ctx, 50)
		require.NoError(t, err)
		assert.Len(t, got, 10)
	})

	t.Run("same seed same order", func(t *testing.T) {
		a, err := NewBank(sampleQuestions(10), rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		b, err := NewBank(sampleQuestions(10), rand.New(rand.NewSource(7)))
		require.NoError(t, err)

		qa, _ := a.SelectQuestions(ctx, 5)
		qb, _ := b.SelectQuestions(ctx, 5)
		assert.Equal(t, qa, qb)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := bank.SelectQuestions(cctx, 3)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseBank(t *testing.T) {
	doc := []byte(`
questions:
  - id: one
    prompt: Pick B
    options:
      - {key: A, text: no}
      - {key: B, text: yes}
      - {key: C, text: no}
      - {key: D, text: no}
    correct_key: B
    commentary: B was right.
`)
	bank, err := ParseBank(doc, nil)
	require.NoError(t, err)
	require.Equal(t, 1, bank.Len())
	q := bank.All()[0]
	assert.Equal(t, "B", q.CorrectKey)
	assert.Equal(t, "B was right.", q.Commentary)

	_, err = ParseBank([]byte("questions: ["), nil)
	assert.Error(t, err)
}

func TestDefaultBank(t *testing.T) {
	bank, err := DefaultBank(nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bank.Len(), models.DefaultSettings().QuestionCount)
}
