// ABOUTME: Append-only conversation transcript shared between dispatch and presentation.
// ABOUTME: Turns are immutable once appended; Watch exposes a coalesced change signal.

package transcript

import (
	"sync"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable message in the conversation.
type Turn struct {
	Role         Role
	Content      string
	AgentLabel   string // assistant turns only: which agent produced the reply
	ImagePreview string // user turns only: data URI of an attached image
	Timestamp    time.Time
}

// Log is an ordered, append-only sequence of turns. Insertion order is the
// canonical display and causal order. There are no mutation or removal
// operations and no size bound.
type Log struct {
	mu     sync.RWMutex
	turns  []Turn
	notify chan struct{}
}

// NewLog creates an empty transcript.
func NewLog() *Log {
	return &Log{notify: make(chan struct{}, 1)}
}

// Append adds one turn to the end of the sequence and signals watchers.
func (l *Log) Append(t Turn) {
	l.mu.Lock()
	l.turns = append(l.turns, t)
	l.mu.Unlock()

	// Coalesced: one pending signal covers any number of appends.
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// All returns a read-only snapshot of the transcript in append order.
func (l *Log) All() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Watch returns a channel that receives a signal after one or more appends.
// Readers should re-read All after each signal.
func (l *Log) Watch() <-chan struct{} {
	return l.notify
}
