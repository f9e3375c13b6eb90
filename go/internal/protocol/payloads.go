package protocol

// PlayerView is how a player appears on the wire. Rank is only set in
// game_ended.
type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHost      bool   `json:"isHost"`
	IsSpectator bool   `json:"isSpectator"`
	Score       int    `json:"score"`
	Connected   bool   `json:"connected"`
	Rank        int    `json:"rank,omitempty"`
}

// SettingsView mirrors the session settings
type SettingsView struct {
	MaxPlayers         int `json:"maxPlayers"`
	QuestionCount      int `json:"questionCount"`
	SecondsPerQuestion int `json:"secondsPerQuestion"`
}

// OptionView is one answer option
type OptionView struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuestionView is a question with its correct key withheld
type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

// State carries the roster and phase; sent on attach and on lobby changes
type State struct {
	RoomCode         string       `json:"roomCode"`
	Phase            string       `json:"phase"`
	Stage            string       `json:"stage,omitempty"`
	Players          []PlayerView `json:"players"`
	QuestionNumber   int          `json:"questionNumber"`
	TotalQuestions   int          `json:"totalQuestions"`
	SecondsRemaining *int         `json:"secondsRemaining,omitempty"`
	Settings         SettingsView `json:"settings"`
}

func (State) Kind() Kind { return KindState }

// GameStarted announces the end of the lobby
type GameStarted struct {
	TotalQuestions     int `json:"totalQuestions"`
	SecondsPerQuestion int `json:"secondsPerQuestion"`
}

func (GameStarted) Kind() Kind { return KindGameStarted }

// Question opens an answering window
type Question struct {
	QuestionNumber int          `json:"questionNumber"`
	TotalQuestions int          `json:"totalQuestions"`
	Question       QuestionView `json:"question"`
}

func (Question) Kind() Kind { return KindQuestion }

// Timer is the per-second countdown
type Timer struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

func (Timer) Kind() Kind { return KindTimer }

// AnswerOutcome is one player's scored answer in a results message
type AnswerOutcome struct {
	PlayerID  string  `json:"playerId"`
	OptionKey *string `json:"optionKey"`
	Correct   bool    `json:"correct"`
	Points    int     `json:"points"`
	TimedOut  bool    `json:"timedOut"`
}

// Results reveals the correct answer and the updated scores
type Results struct {
	QuestionNumber int             `json:"questionNumber"`
	CorrectKey     string          `json:"correctKey"`
	Commentary     string          `json:"commentary,omitempty"`
	Answers        []AnswerOutcome `json:"answers"`
	Players        []PlayerView    `json:"players"`
	IsLastQuestion bool            `json:"isLastQuestion"`
}

func (Results) Kind() Kind { return KindResults }

// GameEnded carries the final ranking
type GameEnded struct {
	Players []PlayerView `json:"players"`
}

func (GameEnded) Kind() Kind { return KindGameEnded }
