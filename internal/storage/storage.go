package storage

import "time"

// Kind classifies a handled request in the journal.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindYesNo    Kind = "yesno"
	KindSticker  Kind = "sticker"
	KindForget   Kind = "forget"
	KindRefusal  Kind = "refusal"
	KindRecorded Kind = "recorded"
)

// Event is one handled request. Events are appended in chronological order.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Kind      Kind      `json:"kind"`
	Question  string    `json:"question,omitempty"`
	Answer    string    `json:"answer,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
}

// Recorder abstracts persistence of journal events.
// LoadInteractions returns events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}

// Nop discards events.
type Nop struct{}

func (Nop) AppendInteraction(Event) error      { return nil }
func (Nop) LoadInteractions() ([]Event, error) { return nil, nil }
