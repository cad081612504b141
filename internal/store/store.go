// ABOUTME: Storage interface and types for chat sessions and messages.
// ABOUTME: Sessions are created once per client; messages are append-only per session.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session doesn't exist.
var ErrNotFound = errors.New("not found")

// Session is one chat session created by a client at startup.
type Session struct {
	SessionID string
	UserName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one persisted turn of a session's conversation.
type Message struct {
	ID        string
	SessionID string
	Role      string // "user" or "assistant"
	Content   string
	Agent     string // assistant messages only: which agent replied
	HasImage  bool   // user messages only: an image accompanied the text
	CreatedAt time.Time
}

// Store defines the persistence operations the chat server needs.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	SaveMessage(ctx context.Context, msg *Message) error
	GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	Close() error
}
