package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Schema creates the archive tables.
const Schema = `
CREATE TABLE IF NOT EXISTS match_results (
    event_id        UUID PRIMARY KEY,
    room_code       TEXT NOT NULL,
    started_at      TIMESTAMPTZ,
    finished_at     TIMESTAMPTZ NOT NULL,
    total_questions INT NOT NULL,
    player_count    INT NOT NULL,
    average_score   DOUBLE PRECISION NOT NULL,
    high_score      INT NOT NULL,
    summary         JSONB,
    archived_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS match_player_results (
    event_id  UUID NOT NULL REFERENCES match_results (event_id) ON DELETE CASCADE,
    player_id TEXT NOT NULL,
    name      TEXT NOT NULL,
    rank      INT NOT NULL,
    score     INT NOT NULL,
    correct   INT NOT NULL,
    answered  INT NOT NULL,
    accuracy  DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (event_id, player_id)
);
CREATE INDEX IF NOT EXISTS match_results_room_code_idx ON match_results (room_code);
`

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Queries holds the archive statements, bound to a connection or a tx.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type InsertMatchParams struct {
	EventID        uuid.UUID
	RoomCode       string
	StartedAt      sql.NullTime
	FinishedAt     time.Time
	TotalQuestions int32
	PlayerCount    int32
	AverageScore   float64
	HighScore      int32
	Summary        pqtype.NullRawMessage
}

const insertMatch = `
INSERT INTO match_results (
  event_id, room_code, started_at, finished_at, total_questions,
  player_count, average_score, high_score, summary
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (event_id) DO NOTHING
`

// InsertMatch reports false when the event was already archived.
func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertMatch,
		arg.EventID,
		arg.RoomCode,
		arg.StartedAt,
		arg.FinishedAt,
		arg.TotalQuestions,
		arg.PlayerCount,
		arg.AverageScore,
		arg.HighScore,
		arg.Summary,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type InsertPlayerResultParams struct {
	EventID  uuid.UUID
	PlayerID string
	Name     string
	Rank     int32
	Score    int32
	Correct  int32
	Answered int32
	Accuracy float64
}

const insertPlayerResult = `
INSERT INTO match_player_results (
  event_id, player_id, name, rank, score, correct, answered, accuracy
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (q *Queries) InsertPlayerResult(ctx context.Context, arg InsertPlayerResultParams) error {
	_, err := q.db.ExecContext(ctx, insertPlayerResult,
		arg.EventID,
		arg.PlayerID,
		arg.Name,
		arg.Rank,
		arg.Score,
		arg.Correct,
		arg.Answered,
		arg.Accuracy,
	)
	return err
}

type MatchRow struct {
	EventID      uuid.UUID
	RoomCode     string
	FinishedAt   time.Time
	PlayerCount  int32
	HighScore    int32
	AverageScore float64
	Summary      pqtype.NullRawMessage
}

const listRecentMatches = `
SELECT event_id, room_code, finished_at, player_count, high_score, average_score, summary
FROM match_results
ORDER BY finished_at DESC
LIMIT $1
`

func (q *Queries) ListRecentMatches(ctx context.Context, limit int32) ([]MatchRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentMatches, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MatchRow
	for rows.Next() {
		var i MatchRow
		if err := rows.Scan(
			&i.EventID,
			&i.RoomCode,
			&i.FinishedAt,
			&i.PlayerCount,
			&i.HighScore,
			&i.AverageScore,
			&i.Summary,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
