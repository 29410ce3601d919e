package chatui

import "sync"

type Sender string

const (
	FromUser Sender = "user"
	FromBot  Sender = "bot"
)

// Message is one chat bubble.
type Message struct {
	From Sender `json:"from"`
	Text string `json:"text"`
}

// Transcript is an append-only, insertion-ordered list of messages.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
