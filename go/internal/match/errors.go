package match

import "errors"

// Rejected commands. These are returned to the caller only; no state changes
// and nothing is broadcast.
var (
	ErrNotInLobby       = errors.New("session is not accepting players")
	ErrSessionFull      = errors.New("session is full")
	ErrInvalidName      = errors.New("name must be 1-20 characters")
	ErrNameTaken        = errors.New("name is already taken in this session")
	ErrNotHost          = errors.New("only the host can start the session")
	ErrNotEnoughPlayers = errors.New("at least two players are required to start")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrInvalidToken     = errors.New("invalid player token")
	ErrAnswerRejected   = errors.New("answer rejected")
	ErrNotFinished      = errors.New("session has not finished")
	ErrNoQuestions      = errors.New("no questions available")
	ErrSessionClosed    = errors.New("session is closed")
)
