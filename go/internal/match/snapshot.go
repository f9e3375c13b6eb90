package match

import (
	"sort"
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/protocol"
)

// Results is the final standing of a finished session.
type Results struct {
	RoomCode       string         `json:"roomCode"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	TotalQuestions int            `json:"totalQuestions"`
	PlayerCount    int            `json:"playerCount"`
	Players        []PlayerResult `json:"players"`
	AverageScore   float64        `json:"averageScore"`
	HighScore      int            `json:"highScore"`
}

// PlayerResult is one competitor's final line. Accuracy is correct answers
// over questions played, in [0, 1].
type PlayerResult struct {
	Player   models.Player `json:"player"`
	Rank     int           `json:"rank"`
	Accuracy float64       `json:"accuracy"`
}

func (a *Actor) playerCopy(p *models.Player) models.Player {
	c := *p
	c.Connected = a.registry.IsAttached(p.ID)
	return c
}

// playerList returns copies of every participant in join order.
func (a *Actor) playerList() []models.Player {
	out := make([]models.Player, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.playerCopy(a.players[id]))
	}
	return out
}

func (a *Actor) snapshot() models.Session {
	s := models.Session{
		RoomCode:             a.cfg.RoomCode,
		Phase:                a.phase,
		Stage:                a.stage,
		Settings:             a.cfg.Settings,
		Players:              a.playerList(),
		CurrentQuestionIndex: a.index,
		TotalQuestions:       len(a.questionList),
		CreatedAt:            a.createdAt,
	}
	if a.stage == models.StageAwaitingAnswers {
		secs := a.secondsRemaining
		s.SecondsRemaining = &secs
	}
	if !a.startedAt.IsZero() {
		t := a.startedAt
		s.StartedAt = &t
	}
	if !a.finishedAt.IsZero() {
		t := a.finishedAt
		s.FinishedAt = &t
	}
	return s
}

func toView(p models.Player) protocol.PlayerView {
	return protocol.PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		IsHost:      p.IsHost,
		IsSpectator: p.IsSpectator,
		Score:       p.Score,
		Connected:   p.Connected,
	}
}

func (a *Actor) playerViews() []protocol.PlayerView {
	list := a.playerList()
	views := make([]protocol.PlayerView, len(list))
	for i, p := range list {
		views[i] = toView(p)
	}
	return views
}

func (a *Actor) stateMessage() protocol.State {
	msg := protocol.State{
		RoomCode:       a.cfg.RoomCode,
		Phase:          string(a.phase),
		Stage:          string(a.stage),
		Players:        a.playerViews(),
		TotalQuestions: len(a.questionList),
		Settings: protocol.SettingsView{
			MaxPlayers:         a.cfg.Settings.MaxPlayers,
			QuestionCount:      a.cfg.Settings.QuestionCount,
			SecondsPerQuestion: a.cfg.Settings.SecondsPerQuestion,
		},
	}
	if a.phase == models.PhasePlaying {
		msg.QuestionNumber = a.index + 1
	}
	if a.stage == models.StageAwaitingAnswers {
		secs := a.secondsRemaining
		msg.SecondsRemaining = &secs
	}
	return msg
}

func (a *Actor) questionMessage() protocol.Question {
	q := a.questionList[a.index]
	opts := make([]protocol.OptionView, len(q.Options))
	for i, o := range q.Options {
		opts[i] = protocol.OptionView{Key: o.Key, Text: o.Text}
	}
	return protocol.Question{
		QuestionNumber: a.index + 1,
		TotalQuestions: len(a.questionList),
		Question: protocol.QuestionView{
			ID:      q.ID,
			Text:    q.Prompt,
			Options: opts,
		},
	}
}

// buildResults ranks competitors by score, then correct answers, then join
// order. Equal score and correct count share a rank (1, 1, 3).
func (a *Actor) buildResults() Results {
	played := a.index
	if played > len(a.questionList) {
		played = len(a.questionList)
	}

	competitors := make([]models.Player, 0, len(a.order))
	for _, p := range a.playerList() {
		if !p.IsSpectator {
			competitors = append(competitors, p)
		}
	}
	sort.SliceStable(competitors, func(i, j int) bool {
		if competitors[i].Score != competitors[j].Score {
			return competitors[i].Score > competitors[j].Score
		}
		return competitors[i].CorrectCount > competitors[j].CorrectCount
	})

	res := Results{
		RoomCode:       a.cfg.RoomCode,
		StartedAt:      a.startedAt,
		FinishedAt:     a.finishedAt,
		TotalQuestions: len(a.questionList),
		PlayerCount:    len(competitors),
		Players:        make([]PlayerResult, len(competitors)),
	}

	total := 0
	for i, p := range competitors {
		rank := i + 1
		if i > 0 {
			prev := competitors[i-1]
			if prev.Score == p.Score && prev.CorrectCount == p.CorrectCount {
				rank = res.Players[i-1].Rank
			}
		}
		accuracy := 0.0
		if played > 0 {
			accuracy = float64(p.CorrectCount) / float64(played)
		}
		res.Players[i] = PlayerResult{Player: p, Rank: rank, Accuracy: accuracy}

		total += p.Score
		if p.Score > res.HighScore {
			res.HighScore = p.Score
		}
	}
	if len(competitors) > 0 {
		res.AverageScore = float64(total) / float64(len(competitors))
	}
	return res
}

func rankedViews(res Results) []protocol.PlayerView {
	views := make([]protocol.PlayerView, len(res.Players))
	for i, r := range res.Players {
		v := toView(r.Player)
		v.Rank = r.Rank
		views[i] = v
	}
	return views
}
