// ABOUTME: Session establishment and ownership for the chat client.
// ABOUTME: One session per process lifetime; creation failure leaves sending inert.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Creator is the remote call that issues a session identifier.
type Creator interface {
	CreateSession(ctx context.Context, userName string) (string, error)
}

// Session is the single active session for this process. It is created once
// at startup and never renewed, rotated, or invalidated client-side. The
// value is immutable; the dispatch controller reads the identifier through ID.
type Session struct {
	id        string
	userName  string
	createdAt time.Time
}

// Establish performs the one-time session-creation call. On failure the
// caller holds no Session (nil), which makes every subsequent send intent
// inert rather than an error. There is no automatic retry.
func Establish(ctx context.Context, creator Creator, userName string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	id, err := creator.CreateSession(ctx, userName)
	if err != nil {
		logger.Warn("session creation failed, sending disabled", "error", err)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	logger.Debug("session established", "session_id", id, "user_name", userName)
	return &Session{
		id:        id,
		userName:  userName,
		createdAt: time.Now(),
	}, nil
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// UserName returns the display name the session was created with.
func (s *Session) UserName() string { return s.userName }

// CreatedAt returns when the session was established locally.
func (s *Session) CreatedAt() time.Time { return s.createdAt }
