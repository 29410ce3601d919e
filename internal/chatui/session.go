package chatui

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatagent-backend/internal/logging"
)

var (
	ErrEmptyMessage = errors.New("chatui: message is empty")
	ErrBusy         = errors.New("chatui: a message is already in flight")
)

// Replier answers one chat message.
type Replier interface {
	Ask(ctx context.Context, message string) (string, error)
}

type EventType string

const (
	EventMessage EventType = "message"
	EventBusy    EventType = "busy"
)

// Event is pushed to the renderer after every state change.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Busy    *bool     `json:"busy,omitempty"`
}

// Session is the state of one chat UI: its transcript and the busy flag that
// keeps at most one message in flight.
//
// mu guards busy and is never held across notify. emitMu serializes state
// changes with their events so renderers see them in order.
type Session struct {
	ID uuid.UUID

	transcript *Transcript
	replier    Replier
	notify     func(Event)
	logger     *logging.Logger

	emitMu sync.Mutex
	mu     sync.Mutex
	busy   bool
}

func NewSession(replier Replier, notify func(Event), logger *logging.Logger) *Session {
	if notify == nil {
		notify = func(Event) {}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	id := uuid.New()
	return &Session{
		ID:         id,
		transcript: NewTranscript(),
		replier:    replier,
		notify:     notify,
		logger:     logger.ForSession(id.String()),
	}
}

// SendMessage appends the trimmed input as a user bubble, asks the replier and
// appends exactly one bot bubble with the reply or a readable error. Blank
// input and sends while busy are no-ops reported as ErrEmptyMessage/ErrBusy.
func (s *Session) SendMessage(ctx context.Context, input string) error {
	text, err := s.Start(input)
	if err != nil {
		return err
	}
	s.Complete(ctx, text)
	return nil
}

// Start claims the busy slot and appends the user bubble, returning the
// trimmed text. Callers that accept messages in order call Start in that
// order and may run Complete elsewhere.
func (s *Session) Start(input string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", ErrEmptyMessage
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	s.append(Message{From: FromUser, Text: text})
	s.emitBusy(true)
	return text, nil
}

// Complete asks the replier for text, appends the bot bubble and releases
// the busy slot. It must follow a successful Start.
func (s *Session) Complete(ctx context.Context, text string) {
	reply, err := s.replier.Ask(ctx, text)
	if err != nil {
		s.logger.Warn("Chat request failed", zap.Error(err))
		reply = errorText(err)
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.append(Message{From: FromBot, Text: reply})

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()

	s.emitBusy(false)
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) Transcript() []Message {
	return s.transcript.Messages()
}

func (s *Session) append(msg Message) {
	s.transcript.Append(msg)
	s.notify(Event{Type: EventMessage, Message: &msg})
}

func (s *Session) emitBusy(busy bool) {
	s.notify(Event{Type: EventBusy, Busy: &busy})
}

func errorText(err error) string {
	var replyErr *ReplyError
	if errors.As(err, &replyErr) && replyErr.Text != "" {
		return replyErr.Text
	}
	return ConnectionErrorText
}
