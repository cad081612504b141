// ABOUTME: Dispatch controller for the chat composer: one send cycle at a time.
// ABOUTME: Optimistic user turn, single outbound call, failure becomes an apology turn.

package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/propfix/propfix-assistant/internal/attachment"
	"github.com/propfix/propfix-assistant/internal/client"
	"github.com/propfix/propfix-assistant/internal/session"
	"github.com/propfix/propfix-assistant/internal/transcript"
)

const (
	// apologyText is appended as an assistant turn when a send cycle fails.
	apologyText = "Sorry, there was an error processing your request. Please try again."

	// systemAgentLabel marks a synthesized turn as client-generated.
	systemAgentLabel = "System"
)

// Sender issues the single outbound chat call for one send cycle.
type Sender interface {
	SendMessage(ctx context.Context, req *client.ChatRequest) (*client.ChatResponse, error)
}

// Controller orchestrates the send cycle: Idle -> Sending -> Idle. The busy
// flag is the externally observable projection of that machine and the only
// mutual-exclusion mechanism; a second send intent while busy is dropped, not
// queued. The controller is the sole writer of the transcript.
type Controller struct {
	sess        *session.Session // nil when session creation failed
	attachments *attachment.Manager
	log         *transcript.Log
	sender      Sender
	logger      *slog.Logger

	mu    sync.Mutex
	draft string
	busy  bool
}

// New creates a controller. sess may be nil, in which case every send intent
// is rejected by the session guard. Pass nil logger for default.
func New(sess *session.Session, attachments *attachment.Manager, log *transcript.Log, sender Sender, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sess:        sess,
		attachments: attachments,
		log:         log,
		sender:      sender,
		logger:      logger.With("component", "dispatch"),
	}
}

// SetDraft replaces the composer draft text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Draft returns the current composer draft text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Busy reports whether a send cycle is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Send runs one full send cycle and reports whether a cycle ran. A rejected
// intent (busy, nothing to send, or no session) returns false with no turn
// appended and no state change; this is a guard, not an error.
//
// A cycle appends the user turn before the network call. That optimistic
// turn is never retracted: on failure the cycle appends an apology turn
// instead of rolling back. The draft and attachment are cleared
// unconditionally once the cycle ends, regardless of outcome.
func (c *Controller) Send(ctx context.Context) bool {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.logger.Debug("send intent dropped, cycle in flight")
		return false
	}

	att, hasAttachment := c.attachments.Current()
	if strings.TrimSpace(c.draft) == "" && !hasAttachment {
		c.mu.Unlock()
		return false
	}
	if c.sess == nil {
		c.mu.Unlock()
		c.logger.Debug("send intent dropped, no session")
		return false
	}

	// Snapshot, append the optimistic user turn, then enter Sending.
	text := c.draft
	c.busy = true
	c.mu.Unlock()

	c.log.Append(transcript.Turn{
		Role:         transcript.RoleUser,
		Content:      text,
		ImagePreview: att.Preview,
		Timestamp:    time.Now(),
	})

	req := &client.ChatRequest{
		SessionID: c.sess.ID(),
		Message:   text,
	}
	if hasAttachment {
		req.Image = &client.Image{Filename: att.Filename, Data: att.Data}
	}

	resp, err := c.sender.SendMessage(ctx, req)
	if err != nil {
		c.logger.Warn("send cycle failed", "error", err)
		c.log.Append(transcript.Turn{
			Role:       transcript.RoleAssistant,
			Content:    apologyText,
			AgentLabel: systemAgentLabel,
			Timestamp:  time.Now(),
		})
	} else {
		c.log.Append(transcript.Turn{
			Role:       transcript.RoleAssistant,
			Content:    resp.Response,
			AgentLabel: resp.AgentUsed,
			Timestamp:  resp.Timestamp,
		})
	}

	// Both branches converge: composer state is cleared once per cycle,
	// success or failure, then the gate reopens.
	c.attachments.Clear()
	c.mu.Lock()
	c.draft = ""
	c.busy = false
	c.mu.Unlock()

	return true
}
