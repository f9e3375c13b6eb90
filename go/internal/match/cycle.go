package match

import (
	"errors"

	"github.com/mcdev12/trivia/go/internal/events"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/protocol"
)

// startQuestion opens the answering window for questionList[index].
func (a *Actor) startQuestion() {
	if !a.invariant(a.index < len(a.questionList), "question index out of range") {
		return
	}
	a.stage = models.StageAwaitingAnswers
	a.answers = make(map[string]models.Answer)
	a.secondsRemaining = a.cfg.Settings.SecondsPerQuestion
	a.lastResults = nil
	a.metrics.QuestionServed()

	a.log.Debug().
		Int("question_index", a.index).
		Str("question_id", a.questionList[a.index].ID).
		Msg("question started")

	a.broadcast(a.questionMessage())
	a.broadcast(protocol.Timer{SecondsRemaining: a.secondsRemaining})
	a.scheduleTick()
}

func (a *Actor) scheduleTick() {
	a.stopTimer()
	gen := a.generation
	a.timer = a.clock.AfterFunc(a.cfg.TickInterval, func() {
		a.post(tickEvent{generation: gen})
	})
}

// stopTimer cancels the pending timer and invalidates any callback that
// already fired but has not been handled yet.
func (a *Actor) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.generation++
}

func (a *Actor) allAnswered() bool {
	for _, p := range a.players {
		if p.IsSpectator {
			continue
		}
		if _, ok := a.answers[p.ID]; !ok {
			return false
		}
	}
	return true
}

// reveal closes the answering window, scores every answer exactly once and
// schedules the next step.
func (a *Actor) reveal() {
	if !a.invariant(a.stage == models.StageAwaitingAnswers, "reveal outside answering window") {
		return
	}
	a.stopTimer()
	a.stage = models.StageRevealing
	q := a.questionList[a.index]

	outcomes := make([]protocol.AnswerOutcome, 0, len(a.order))
	revealed := make([]events.RevealedAnswer, 0, len(a.order))
	correctCount, timeoutCount := 0, 0

	for _, id := range a.order {
		p := a.players[id]
		if p.IsSpectator {
			continue
		}
		ans, ok := a.answers[id]
		if !ok {
			ans = models.Answer{PlayerID: id, TimedOut: true}
		}

		s := ScoreAnswer(a.cfg.Scoring, a.cfg.Settings.SecondsPerQuestion, q.CorrectKey, ans.OptionKey, ans.ElapsedMs, p.ConsecutiveCorrect)
		ans.Correct = s.Correct
		ans.Points = s.Points
		a.answers[id] = ans

		p.Score += s.Points
		p.ConsecutiveCorrect = s.Streak
		if !ans.TimedOut {
			p.AnsweredCount++
		}

		outcome := metrics.OutcomeIncorrect
		switch {
		case ans.TimedOut:
			timeoutCount++
			outcome = metrics.OutcomeTimeout
		case s.Correct:
			p.CorrectCount++
			correctCount++
			outcome = metrics.OutcomeCorrect
		}
		a.metrics.AnswerScored(outcome, s.Points)

		outcomes = append(outcomes, protocol.AnswerOutcome{
			PlayerID:  id,
			OptionKey: ans.OptionKey,
			Correct:   ans.Correct,
			Points:    ans.Points,
			TimedOut:  ans.TimedOut,
		})
		revealed = append(revealed, events.RevealedAnswer{
			PlayerID:  id,
			OptionKey: ans.OptionKey,
			ElapsedMs: ans.ElapsedMs,
			Correct:   ans.Correct,
			Points:    ans.Points,
		})
	}

	msg := protocol.Results{
		QuestionNumber: a.index + 1,
		CorrectKey:     q.CorrectKey,
		Commentary:     q.Commentary,
		Answers:        outcomes,
		Players:        a.playerViews(),
		IsLastQuestion: a.index == len(a.questionList)-1,
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to encode results")
	} else {
		a.lastResults = payload
		a.fanOut(payload)
	}

	a.log.Info().
		Int("question_index", a.index).
		Int("correct", correctCount).
		Int("timeouts", timeoutCount).
		Msg("question revealed")
	a.emit(events.TypeQuestionRevealed, events.QuestionRevealedPayload{
		RoomCode:       a.cfg.RoomCode,
		QuestionID:     q.ID,
		QuestionNumber: a.index + 1,
		CorrectCount:   correctCount,
		TimeoutCount:   timeoutCount,
		Answers:        revealed,
		RevealedAt:     a.clock.Now(),
	})

	gen := a.generation
	a.timer = a.clock.AfterFunc(a.cfg.RevealDelay, func() {
		a.post(revealDoneEvent{generation: gen})
	})
}

// advance moves past the revealed question into the next one or finishes.
func (a *Actor) advance() {
	a.index++
	if a.index >= len(a.questionList) {
		a.finish()
		return
	}
	a.startQuestion()
}

func (a *Actor) finish() {
	a.stopTimer()
	a.phase = models.PhaseFinished
	a.stage = models.StageNone
	a.finishedAt = a.clock.Now()
	a.touch()

	results := a.buildResults()
	duration := a.finishedAt.Sub(a.startedAt)
	a.metrics.MatchFinished(duration)

	a.broadcast(protocol.GameEnded{Players: rankedViews(results)})

	players := make([]events.PlayerResult, len(results.Players))
	for i, r := range results.Players {
		players[i] = events.PlayerResult{
			PlayerID: r.Player.ID,
			Name:     r.Player.Name,
			Rank:     r.Rank,
			Score:    r.Player.Score,
			Correct:  r.Player.CorrectCount,
			Answered: r.Player.AnsweredCount,
			Accuracy: r.Accuracy,
		}
	}
	a.emit(events.TypeMatchFinished, events.MatchFinishedPayload{
		RoomCode:       a.cfg.RoomCode,
		StartedAt:      a.startedAt,
		FinishedAt:     a.finishedAt,
		Duration:       duration.String(),
		TotalQuestions: results.TotalQuestions,
		AverageScore:   results.AverageScore,
		HighScore:      results.HighScore,
		Players:        players,
	})

	a.log.Info().
		Dur("duration", duration).
		Int("players", len(results.Players)).
		Int("high_score", results.HighScore).
		Msg("game finished")
}

// broadcast encodes msg once and fans it out through the registry.
func (a *Actor) broadcast(msg protocol.ServerMessage) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		a.log.Error().Err(err).Str("kind", string(msg.Kind())).Msg("failed to encode message")
		return
	}
	a.fanOut(payload)
}

// fanOut delivers payload to every channel. Dropping a channel changes the
// roster's presence, so state is re-sent until a pass drops nothing. Each
// pass removes at least one channel, which bounds the loop.
func (a *Actor) fanOut(payload []byte) {
	dropped := a.registry.Broadcast(payload)
	for len(dropped) > 0 {
		a.log.Info().Strs("player_ids", dropped).Msg("presence changed after failed send")
		state, err := protocol.Encode(a.stateMessage())
		if err != nil {
			a.log.Error().Err(err).Msg("failed to encode state")
			return
		}
		dropped = a.registry.Broadcast(state)
	}
}

func (a *Actor) sendTo(playerID string, msg protocol.ServerMessage) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		a.log.Error().Err(err).Str("kind", string(msg.Kind())).Msg("failed to encode message")
		return
	}
	a.sendRaw(playerID, payload)
}

func (a *Actor) sendRaw(playerID string, payload []byte) {
	err := a.registry.SendTo(playerID, payload)
	if err == nil {
		return
	}
	a.log.Debug().Err(err).Str("player_id", playerID).Msg("direct send failed")
	if !errors.Is(err, ErrNotAttached) {
		a.broadcastState()
	}
}

func (a *Actor) broadcastState() {
	a.broadcast(a.stateMessage())
}

// replay catches a freshly attached player up with the current phase. The
// state message has already been broadcast by the caller.
func (a *Actor) replay(playerID string) {
	switch a.phase {
	case models.PhasePlaying:
		switch a.stage {
		case models.StageAwaitingAnswers:
			a.sendTo(playerID, a.questionMessage())
			a.sendTo(playerID, protocol.Timer{SecondsRemaining: a.secondsRemaining})
		case models.StageRevealing:
			if a.lastResults != nil {
				a.sendRaw(playerID, a.lastResults)
			}
		}
	case models.PhaseFinished:
		a.sendTo(playerID, protocol.GameEnded{Players: rankedViews(a.buildResults())})
	}
}
