package match

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/protocol"
)

// event is one unit of work for the actor loop.
type event interface {
	handle(a *Actor)
}

type joinResult struct {
	player models.Player
	err    error
}

type joinEvent struct {
	req   JoinRequest
	reply chan<- joinResult
}

func (e joinEvent) handle(a *Actor) {
	if a.phase != models.PhaseLobby || a.starting {
		e.reply <- joinResult{err: ErrNotInLobby}
		return
	}
	name, err := validateName(e.req.Name)
	if err != nil {
		e.reply <- joinResult{err: err}
		return
	}
	if !e.req.Spectator && a.competitorCount() >= a.cfg.Settings.MaxPlayers {
		e.reply <- joinResult{err: ErrSessionFull}
		return
	}
	if a.nameTaken(name) {
		e.reply <- joinResult{err: ErrNameTaken}
		return
	}

	p := &models.Player{
		ID:          uuid.NewString(),
		Name:        name,
		IsSpectator: e.req.Spectator,
	}
	token := uuid.NewString()
	a.players[p.ID] = p
	a.order = append(a.order, p.ID)
	a.tokens[p.ID] = token
	a.touch()

	a.log.Info().
		Str("player_id", p.ID).
		Bool("spectator", p.IsSpectator).
		Int("players", a.competitorCount()).
		Msg("player joined")
	a.broadcastState()
	owned := a.playerCopy(p)
	owned.Token = token
	e.reply <- joinResult{player: owned}
}

type startEvent struct {
	playerID string
	reply    chan<- error
}

func (e startEvent) handle(a *Actor) {
	switch {
	case a.phase != models.PhaseLobby || a.starting:
		e.reply <- ErrNotInLobby
		return
	case e.playerID != a.hostID:
		e.reply <- ErrNotHost
		return
	case a.competitorCount() < 2:
		e.reply <- ErrNotEnoughPlayers
		return
	}

	// Selection may hit a database, so it runs off the loop and reports back
	// as its own event. Joins are refused until it does.
	a.starting = true
	a.touch()
	count := a.cfg.Settings.QuestionCount
	timeout := a.cfg.SelectTimeout
	go func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		qs, err := a.questions.SelectQuestions(ctx, count)
		a.post(questionsLoadedEvent{questions: qs, err: err, reply: e.reply})
	}()
}

type questionsLoadedEvent struct {
	questions []models.Question
	err       error
	reply     chan<- error
}

func (e questionsLoadedEvent) handle(a *Actor) {
	a.starting = false
	if !a.invariant(a.phase == models.PhaseLobby, "questions loaded outside lobby") {
		e.reply <- ErrNotInLobby
		return
	}
	if e.err != nil {
		a.log.Error().Err(e.err).Msg("question selection failed")
		e.reply <- fmt.Errorf("select questions: %w", e.err)
		return
	}

	selected := make([]models.Question, 0, len(e.questions))
	for _, q := range e.questions {
		if err := q.Validate(); err != nil {
			a.log.Warn().Err(err).Msg("skipping invalid question")
			continue
		}
		selected = append(selected, q)
		if len(selected) == a.cfg.Settings.QuestionCount {
			break
		}
	}
	if len(selected) == 0 {
		e.reply <- ErrNoQuestions
		return
	}
	if len(selected) < a.cfg.Settings.QuestionCount {
		a.log.Warn().
			Int("requested", a.cfg.Settings.QuestionCount).
			Int("selected", len(selected)).
			Msg("question pool short, playing fewer questions")
	}

	a.questionList = selected
	a.index = 0
	a.phase = models.PhasePlaying
	a.startedAt = a.clock.Now()
	a.touch()

	ids := make([]string, len(selected))
	for i, q := range selected {
		ids[i] = q.ID
	}
	a.log.Info().
		Int("players", a.competitorCount()).
		Int("questions", len(selected)).
		Msg("game started")
	a.metrics.MatchStarted()
	a.emit(events.TypeMatchStarted, events.MatchStartedPayload{
		RoomCode:       a.cfg.RoomCode,
		PlayerCount:    a.competitorCount(),
		TotalQuestions: len(selected),
		QuestionIDs:    ids,
		StartedAt:      a.startedAt,
	})
	a.broadcast(protocol.GameStarted{
		TotalQuestions:     len(selected),
		SecondsPerQuestion: a.cfg.Settings.SecondsPerQuestion,
	})
	a.startQuestion()
	e.reply <- nil
}

type answerEvent struct {
	sub   AnswerSubmission
	reply chan<- error
}

func (e answerEvent) handle(a *Actor) {
	p, known := a.players[e.sub.PlayerID]
	var reason string
	switch {
	case a.phase != models.PhasePlaying || a.stage != models.StageAwaitingAnswers:
		reason = "answering window is closed"
	case !known:
		reason = "unknown player"
	case p.IsSpectator:
		reason = "spectators cannot answer"
	default:
		if _, dup := a.answers[p.ID]; dup {
			reason = "already answered"
		}
	}
	if reason != "" {
		a.metrics.AnswerRejected()
		a.log.Debug().
			Str("player_id", e.sub.PlayerID).
			Str("reason", reason).
			Msg("answer rejected")
		e.reply <- fmt.Errorf("%w: %s", ErrAnswerRejected, reason)
		return
	}

	elapsed := e.sub.ElapsedMs
	if elapsed < 0 {
		elapsed = 0
	}
	if window := int64(a.cfg.Settings.SecondsPerQuestion) * 1000; elapsed > window {
		elapsed = window
	}
	var key *string
	if e.sub.OptionKey != nil {
		k := *e.sub.OptionKey
		key = &k
	}
	a.answers[p.ID] = models.Answer{
		PlayerID:  p.ID,
		OptionKey: key,
		ElapsedMs: elapsed,
	}
	a.touch()

	if a.allAnswered() {
		a.log.Debug().Int("question_index", a.index).Msg("all players answered, revealing early")
		a.reveal()
	}
	e.reply <- nil
}

type attachEvent struct {
	playerID string
	token    string
	ch       Channel
	reply    chan<- error
}

func (e attachEvent) handle(a *Actor) {
	if _, ok := a.players[e.playerID]; !ok {
		e.reply <- ErrUnknownPlayer
		return
	}
	if subtle.ConstantTimeCompare([]byte(e.token), []byte(a.tokens[e.playerID])) != 1 {
		e.reply <- ErrInvalidToken
		return
	}
	replaced := a.registry.Attach(e.playerID, e.ch)
	a.touch()

	a.log.Info().
		Str("player_id", e.playerID).
		Bool("replaced", replaced).
		Msg("channel attached")
	a.broadcastState()
	a.replay(e.playerID)
	e.reply <- nil
}

type detachEvent struct {
	playerID string
	ch       Channel
}

func (e detachEvent) handle(a *Actor) {
	if !a.registry.Detach(e.playerID, e.ch) {
		return
	}
	a.log.Info().Str("player_id", e.playerID).Msg("channel detached")
	a.broadcastState()
}

type snapshotEvent struct {
	reply chan<- models.Session
}

func (e snapshotEvent) handle(a *Actor) {
	e.reply <- a.snapshot()
}

type currentQuestionResult struct {
	question models.Question
	number   int
	ok       bool
}

type currentQuestionEvent struct {
	reply chan<- currentQuestionResult
}

func (e currentQuestionEvent) handle(a *Actor) {
	if a.phase != models.PhasePlaying {
		e.reply <- currentQuestionResult{}
		return
	}
	q := a.questionList[a.index]
	if a.stage == models.StageAwaitingAnswers {
		q.CorrectKey = ""
		q.Commentary = ""
	}
	e.reply <- currentQuestionResult{question: q, number: a.index + 1, ok: true}
}

type resultsReply struct {
	results Results
	err     error
}

type resultsEvent struct {
	reply chan<- resultsReply
}

func (e resultsEvent) handle(a *Actor) {
	if a.phase != models.PhaseFinished {
		e.reply <- resultsReply{err: ErrNotFinished}
		return
	}
	e.reply <- resultsReply{results: a.buildResults()}
}

// tickEvent is one second of the answering window. Ticks from a cancelled
// timer carry a stale generation and are dropped.
type tickEvent struct {
	generation uint64
}

func (e tickEvent) handle(a *Actor) {
	if e.generation != a.generation || a.phase != models.PhasePlaying || a.stage != models.StageAwaitingAnswers {
		return
	}
	a.timer = nil
	a.secondsRemaining--
	if a.secondsRemaining < 0 {
		a.secondsRemaining = 0
	}
	a.broadcast(protocol.Timer{SecondsRemaining: a.secondsRemaining})
	if a.secondsRemaining == 0 {
		a.reveal()
		return
	}
	a.scheduleTick()
}

type revealDoneEvent struct {
	generation uint64
}

func (e revealDoneEvent) handle(a *Actor) {
	if e.generation != a.generation || a.phase != models.PhasePlaying || a.stage != models.StageRevealing {
		return
	}
	a.timer = nil
	a.advance()
}
