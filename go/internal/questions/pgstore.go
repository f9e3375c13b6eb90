package questions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/trivia/go/internal/models"
)

// Schema creates the questions table used by PGStore.
const Schema = `
CREATE TABLE IF NOT EXISTS questions (
    id          TEXT PRIMARY KEY,
    prompt      TEXT NOT NULL,
    options     JSONB NOT NULL,
    correct_key TEXT NOT NULL,
    commentary  TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DBTX is the subset of *pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore selects questions from Postgres.
type PGStore struct {
	db DBTX
}

// NewPGStore wraps a pgx pool or connection.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the questions table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create questions table: %w", err)
	}
	return nil
}

// SelectQuestions returns up to count random questions. Rows that fail to
// decode are returned as errors rather than skipped.
func (s *PGStore) SelectQuestions(ctx context.Context, count int) ([]models.Question, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, prompt, options, correct_key, commentary, category
        FROM questions
        ORDER BY random()
        LIMIT $1
    `, count)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var (
			q       models.Question
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &options, &q.CorrectKey, &q.Commentary, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// Insert stores q unless a question with the same ID exists. Reports
// whether a row was written.
func (s *PGStore) Insert(ctx context.Context, q models.Question) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return false, fmt.Errorf("encode options: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
        INSERT INTO questions (id, prompt, options, correct_key, commentary, category)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO NOTHING
    `, q.ID, q.Prompt, options, q.CorrectKey, q.Commentary, q.Category)
	if err != nil {
		return false, fmt.Errorf("insert question %s: %w", q.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}
