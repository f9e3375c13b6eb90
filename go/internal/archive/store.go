package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

// Open connects to Postgres through lib/pq.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	return db, nil
}

// Store archives finished matches. It is a publish.Publisher that ignores
// every event type except MatchFinished.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create archive tables: %w", err)
	}
	return nil
}

// Publish writes the match and its per-player lines in one transaction.
// Redelivery of the same event is a no-op.
func (s *Store) Publish(ctx context.Context, ev events.Event) error {
	if ev.Type != events.TypeMatchFinished {
		return nil
	}

	var payload events.MatchFinishedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}

	var inserted bool
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		var err error
		inserted, err = q.InsertMatch(ctx, InsertMatchParams{
			EventID:        ev.ID,
			RoomCode:       payload.RoomCode,
			StartedAt:      sqlutil.ToSqlTime(&payload.StartedAt),
			FinishedAt:     payload.FinishedAt,
			TotalQuestions: int32(payload.TotalQuestions),
			PlayerCount:    int32(len(payload.Players)),
			AverageScore:   payload.AverageScore,
			HighScore:      int32(payload.HighScore),
			Summary:        pqtype.NullRawMessage{RawMessage: ev.Payload, Valid: len(ev.Payload) > 0},
		})
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		if !inserted {
			return nil
		}

		for _, p := range payload.Players {
			if err := q.InsertPlayerResult(ctx, InsertPlayerResultParams{
				EventID:  ev.ID,
				PlayerID: p.PlayerID,
				Name:     p.Name,
				Rank:     int32(p.Rank),
				Score:    int32(p.Score),
				Correct:  int32(p.Correct),
				Answered: int32(p.Answered),
				Accuracy: p.Accuracy,
			}); err != nil {
				return fmt.Errorf("insert result for player %s: %w", p.PlayerID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if inserted {
		log.Info().
			Str("room_code", payload.RoomCode).
			Str("event_id", ev.ID.String()).
			Int("players", len(payload.Players)).
			Msg("match archived")
	} else {
		log.Debug().Str("event_id", ev.ID.String()).Msg("match already archived")
	}
	return nil
}

// Recent returns the most recently finished matches.
func (s *Store) Recent(ctx context.Context, limit int) ([]MatchRow, error) {
	rows, err := New(s.db).ListRecentMatches(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent matches: %w", err)
	}
	return rows, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
