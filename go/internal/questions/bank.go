package questions

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
	"gopkg.in/yaml.v3"
)

var ErrEmptyBank = errors.New("question bank is empty")

//go:embed default_questions.yaml
var defaultBank []byte

type bankFile struct {
	Questions []models.Question `yaml:"questions"`
}

// Bank is an in-memory question pool. Selection is uniform and without
// replacement within one call.
type Bank struct {
	mu        sync.Mutex
	rng       *rand.Rand
	questions []models.Question
}

// NewBank validates qs and builds a bank. A nil rng is seeded from the
// current time.
func NewBank(qs []models.Question, rng *rand.Rand) (*Bank, error) {
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}
	seen := make(map[string]struct{}, len(qs))
	for i, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	pool := make([]models.Question, len(qs))
	copy(pool, qs)
	return &Bank{rng: rng, questions: pool}, nil
}

// ParseBank decodes a YAML document with a top-level questions list.
func ParseBank(data []byte, rng *rand.Rand) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return NewBank(f.Questions, rng)
}

// LoadBank reads a YAML question bank from path.
func LoadBank(path string, rng *rand.Rand) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return ParseBank(data, rng)
}

// DefaultBank returns the bank compiled into the binary.
func DefaultBank(rng *rand.Rand) (*Bank, error) {
	return ParseBank(defaultBank, rng)
}

// SelectQuestions returns up to count distinct questions in random order.
func (b *Bank) SelectQuestions(ctx context.Context, count int) ([]models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if count > len(b.questions) {
		count = len(b.questions)
	}
	perm := b.rng.Perm(len(b.questions))
	out := make([]models.Question, count)
	for i := 0; i < count; i++ {
		out[i] = b.questions[perm[i]]
	}
	return out, nil
}

// Len returns the size of the pool.
func (b *Bank) Len() int {
	return len(b.questions)
}

// All returns a copy of every question in the bank.
func (b *Bank) All() []models.Question {
	out := make([]models.Question, len(b.questions))
	copy(out, b.questions)
	return out
}
