package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcdev12/trivia/go/internal/archive"
	"github.com/mcdev12/trivia/go/internal/arena"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes        = 1 << 16
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Sessions is the command surface of the arena.
type Sessions interface {
	Create(ctx context.Context, req arena.CreateRequest) (string, models.Player, error)
	Join(ctx context.Context, code string, req match.JoinRequest) (models.Player, error)
	Start(ctx context.Context, code, playerID string) error
	State(ctx context.Context, code string) (models.Session, error)
	Results(ctx context.Context, code string) (match.Results, error)
}

// History lists archived matches.
type History interface {
	Recent(ctx context.Context, limit int) ([]archive.MatchRow, error)
}

// Handler serves the JSON command API.
type Handler struct {
	sessions Sessions
	history  History
	validate *validator.Validate
	timeout  time.Duration
}

// NewHandler builds the API. history may be nil when no archive is
// configured; /api/history is then not registered.
func NewHandler(sessions Sessions, history History) *Handler {
	return &Handler{
		sessions: sessions,
		history:  history,
		validate: validator.New(),
		timeout:  10 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("POST /api/sessions/{code}/join", h.joinSession)
	mux.HandleFunc("POST /api/sessions/{code}/start", h.startSession)
	mux.HandleFunc("GET /api/sessions/{code}", h.getSession)
	mux.HandleFunc("GET /api/sessions/{code}/results", h.getResults)
	if h.history != nil {
		mux.HandleFunc("GET /api/history", h.listHistory)
	}
}

type createSessionResponse struct {
	RoomCode string        `json:"roomCode"`
	Player   models.Player `json:"player"`
}

type joinSessionRequest struct {
	Name      string `json:"name" validate:"required"`
	Spectator bool   `json:"spectator"`
}

type startSessionRequest struct {
	PlayerID string `json:"playerId" validate:"required"`
}

type historyEntry struct {
	EventID      uuid.UUID       `json:"eventId"`
	RoomCode     string          `json:"roomCode"`
	FinishedAt   time.Time       `json:"finishedAt"`
	PlayerCount  int32           `json:"playerCount"`
	HighScore    int32           `json:"highScore"`
	AverageScore float64         `json:"averageScore"`
	Summary      json.RawMessage `json:"summary,omitempty"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req arena.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	code, host, err := h.sessions.Create(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{RoomCode: code, Player: host})
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request) {
	var req joinSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	player, err := h.sessions.Join(ctx, r.PathValue("code"), match.JoinRequest{
		Name:      req.Name,
		Spectator: req.Spectator,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.Start(ctx, r.PathValue("code"), req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.sessions.State(ctx, r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results, err := h.sessions.Results(ctx, r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeMessage(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rows, err := h.history.Recent(ctx, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	entries := make([]historyEntry, len(rows))
	for i, row := range rows {
		entries[i] = historyEntry{
			EventID:      row.EventID,
			RoomCode:     row.RoomCode,
			FinishedAt:   row.FinishedAt,
			PlayerCount:  row.PlayerCount,
			HighScore:    row.HighScore,
			AverageScore: row.AverageScore,
		}
		if row.Summary.Valid {
			entries[i].Summary = row.Summary.RawMessage
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

// decode reads and validates a JSON body, replying 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.StructCtx(r.Context(), v); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, arena.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, arena.ErrInvalidRequest),
		errors.Is(err, match.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, match.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, match.ErrNotInLobby),
		errors.Is(err, match.ErrSessionFull),
		errors.Is(err, match.ErrNameTaken),
		errors.Is(err, match.ErrNotEnoughPlayers),
		errors.Is(err, match.ErrNotFinished):
		return http.StatusConflict
	case errors.Is(err, match.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, arena.ErrTooManySessions),
		errors.Is(err, match.ErrNoQuestions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("api request failed")
		writeMessage(w, status, "internal error")
		return
	}
	writeMessage(w, status, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
