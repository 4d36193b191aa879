package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/AlephTX/simtelem/telemetry"
)

// Message types.
const (
	TypeFrame   = "frame"
	TypeSession = "session"
)

// Message is the envelope sent to consumers.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into an envelope of the given type.
func NewMessage(msgType string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Publisher is the minimal interface the pump needs.
type Publisher interface {
	Publish(msgType string, payload any) error
}

// Frame is one sample reduced to named values.
type Frame struct {
	Tick    int32          `json:"tick"`
	Ts      int64          `json:"ts"` // unix milliseconds at capture
	Values  map[string]any `json:"values"`
	Missing []string       `json:"missing,omitempty"`
}

// Session announces a new session description.
type Session struct {
	Update int32  `json:"update"`
	Text   string `json:"text"`
}

// NewFrame decodes vars from s. An empty vars list takes every usable
// variable. Names the session does not publish are listed in Missing.
func NewFrame(s *telemetry.Snapshot, vars []string, now time.Time) (Frame, error) {
	f := Frame{Tick: s.Tick, Ts: now.UnixMilli(), Values: make(map[string]any)}
	if len(vars) == 0 {
		for name, v := range s.All() {
			f.Values[name] = v.Interface()
		}
		return f, nil
	}
	for _, name := range vars {
		v, err := s.Get(name)
		switch {
		case err == nil:
			f.Values[name] = v.Interface()
		case errors.Is(err, telemetry.ErrNotFound), errors.Is(err, telemetry.ErrUnknownType):
			f.Missing = append(f.Missing, name)
		default:
			return Frame{}, err
		}
	}
	return f, nil
}
