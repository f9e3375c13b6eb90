package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the type of a wire message
type Kind string

// Server → client kinds
const (
	KindState       Kind = "state"
	KindGameStarted Kind = "game_started"
	KindQuestion    Kind = "question"
	KindTimer       Kind = "timer"
	KindResults     Kind = "results"
	KindGameEnded   Kind = "game_ended"
	KindPong        Kind = "pong"
)

// Client → server kinds
const (
	KindAnswer Kind = "answer"
	KindPing   Kind = "ping"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownKind = errors.New("unknown message kind")
)

// Envelope is the JSON frame every message travels in
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is implemented by every payload the server may send
type ServerMessage interface {
	Kind() Kind
}

// ClientMessage is implemented by every payload a client may send
type ClientMessage interface {
	Kind() Kind
}

// Encode wraps msg in an envelope and marshals it
func Encode(msg ServerMessage) ([]byte, error) {
	env := Envelope{Type: msg.Kind()}
	if _, empty := msg.(Pong); !empty {
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msg.Kind(), err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// MustEncode is Encode for payloads that cannot fail to marshal.
func MustEncode(msg ServerMessage) []byte {
	b, err := Encode(msg)
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeEnvelope parses only the outer frame of a message
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// DecodeClientMessage parses a client frame into its typed payload. Unknown
// kinds are rejected rather than dispatched.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindAnswer:
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("%w: answer without data", ErrMalformed)
		}
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.DisallowUnknownFields()
		var msg Answer
		if err := dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("%w: answer: %v", ErrMalformed, err)
		}
		if msg.PlayerID == "" {
			return nil, fmt.Errorf("%w: answer without playerId", ErrMalformed)
		}
		return msg, nil

	case KindPing:
		return Ping{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// Answer is a client's submission for the current question. A nil OptionKey
// means the client explicitly gave up on the question.
type Answer struct {
	PlayerID  string  `json:"playerId"`
	OptionKey *string `json:"optionKey"`
	ElapsedMs int64   `json:"elapsedMs"`
}

func (Answer) Kind() Kind { return KindAnswer }

// Ping is a client keepalive; it is answered with Pong
type Ping struct{}

func (Ping) Kind() Kind { return KindPing }

// Pong answers a Ping
type Pong struct{}

func (Pong) Kind() Kind { return KindPong }
