// ABOUTME: Tests for the dispatch controller send cycle.
// ABOUTME: Covers guards, optimistic append, failure translation, and composer clearing.

package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfix/propfix-assistant/internal/attachment"
	"github.com/propfix/propfix-assistant/internal/client"
	"github.com/propfix/propfix-assistant/internal/session"
	"github.com/propfix/propfix-assistant/internal/transcript"
)

// stubCreator satisfies session.Creator with a fixed identifier.
type stubCreator struct {
	id  string
	err error
}

func (s stubCreator) CreateSession(context.Context, string) (string, error) {
	return s.id, s.err
}

// mockSender implements Sender for testing.
type mockSender struct {
	mu      sync.Mutex
	resp    *client.ChatResponse
	err     error
	block   chan struct{} // when non-nil, SendMessage waits for it to close
	calls   int
	lastReq *client.ChatRequest
}

func (m *mockSender) SendMessage(_ context.Context, req *client.ChatRequest) (*client.ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastReq = req
	block := m.block
	err := m.err
	resp := m.resp
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testSession(t *testing.T, id string) *session.Session {
	t.Helper()
	sess, err := session.Establish(context.Background(), stubCreator{id: id}, "Guest", nil)
	require.NoError(t, err)
	return sess
}

func newTestController(t *testing.T, sender Sender) (*Controller, *attachment.Manager, *transcript.Log) {
	t.Helper()
	attachments := attachment.NewManager()
	log := transcript.NewLog()
	ctrl := New(testSession(t, "s1"), attachments, log, sender, nil)
	return ctrl, attachments, log
}

// pngBytes returns a minimal payload that content-sniffs as image/png.
func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
}

func TestController_Send_Success(t *testing.T) {
	sender := &mockSender{
		resp: &client.ChatResponse{
			Response:  "Try shutting off the valve",
			AgentUsed: "Issue Detection Agent",
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	ctrl, _, log := newTestController(t, sender)

	ctrl.SetDraft("leak under sink")
	require.True(t, ctrl.Send(context.Background()))

	turns := log.All()
	require.Len(t, turns, 2)

	assert.Equal(t, transcript.RoleUser, turns[0].Role)
	assert.Equal(t, "leak under sink", turns[0].Content)
	assert.Empty(t, turns[0].AgentLabel)

	assert.Equal(t, transcript.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Try shutting off the valve", turns[1].Content)
	assert.Equal(t, "Issue Detection Agent", turns[1].AgentLabel)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), turns[1].Timestamp)

	assert.False(t, ctrl.Busy())
	assert.Empty(t, ctrl.Draft())
	assert.Equal(t, 1, sender.callCount())

	// The request carried the session id.
	assert.Equal(t, "s1", sender.lastReq.SessionID)
	assert.Equal(t, "leak under sink", sender.lastReq.Message)
	assert.Nil(t, sender.lastReq.Image)
}

func TestController_Send_FailureAppendsApology(t *testing.T) {
	sender := &mockSender{err: errors.New("connection refused")}
	ctrl, _, log := newTestController(t, sender)

	ctrl.SetDraft("leak under sink")
	require.True(t, ctrl.Send(context.Background()))

	turns := log.All()
	require.Len(t, turns, 2)

	// The optimistic user turn is never retracted.
	assert.Equal(t, transcript.RoleUser, turns[0].Role)
	assert.Equal(t, "leak under sink", turns[0].Content)

	assert.Equal(t, transcript.RoleAssistant, turns[1].Role)
	assert.Equal(t, apologyText, turns[1].Content)
	assert.Equal(t, systemAgentLabel, turns[1].AgentLabel)
	assert.WithinDuration(t, time.Now(), turns[1].Timestamp, 5*time.Second)

	// Composer clears on failure exactly as on success.
	assert.False(t, ctrl.Busy())
	assert.Empty(t, ctrl.Draft())
}

func TestController_Send_ImageOnly(t *testing.T) {
	sender := &mockSender{
		resp: &client.ChatResponse{
			Response:  "That looks like water damage",
			AgentUsed: "Issue Detection Agent",
			Timestamp: time.Now().UTC(),
		},
	}
	ctrl, attachments, log := newTestController(t, sender)

	require.NoError(t, <-attachments.Select("sink.png", pngBytes()))
	require.True(t, ctrl.Send(context.Background()))

	turns := log.All()
	require.Len(t, turns, 2)
	assert.Empty(t, turns[0].Content)
	assert.Contains(t, turns[0].ImagePreview, "data:image/png;base64,")

	// The outbound call carried the raw file.
	require.NotNil(t, sender.lastReq.Image)
	assert.Equal(t, "sink.png", sender.lastReq.Image.Filename)
	assert.Equal(t, pngBytes(), sender.lastReq.Image.Data)

	// Attachment slot is empty immediately after the cycle.
	_, held := attachments.Current()
	assert.False(t, held)
}

func TestController_Send_ClearsAttachmentOnFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("boom")}
	ctrl, attachments, _ := newTestController(t, sender)

	require.NoError(t, <-attachments.Select("sink.png", pngBytes()))
	ctrl.SetDraft("look at this")
	require.True(t, ctrl.Send(context.Background()))

	_, held := attachments.Current()
	assert.False(t, held)
	assert.Empty(t, ctrl.Draft())
	assert.False(t, ctrl.Busy())
}

func TestController_Send_DroppedWhileBusy(t *testing.T) {
	block := make(chan struct{})
	sender := &mockSender{
		block: block,
		resp: &client.ChatResponse{
			Response:  "ok",
			AgentUsed: "Tenancy FAQ Agent",
			Timestamp: time.Now().UTC(),
		},
	}
	ctrl, _, log := newTestController(t, sender)

	ctrl.SetDraft("first")
	done := make(chan bool, 1)
	go func() {
		done <- ctrl.Send(context.Background())
	}()

	// Wait for the first cycle to enter Sending.
	require.Eventually(t, ctrl.Busy, time.Second, time.Millisecond)

	// A second intent while busy is dropped: no turn, no outbound call.
	lenBefore := log.Len()
	ctrl.SetDraft("second")
	assert.False(t, ctrl.Send(context.Background()))
	assert.Equal(t, lenBefore, log.Len())
	assert.Equal(t, 1, sender.callCount())

	close(block)
	require.True(t, <-done)

	// Exactly one cycle ran.
	assert.Equal(t, 1, sender.callCount())
	assert.Len(t, log.All(), 2)
}

func TestController_Send_EmptyInputGuard(t *testing.T) {
	sender := &mockSender{}
	ctrl, _, log := newTestController(t, sender)

	assert.False(t, ctrl.Send(context.Background()))

	// Whitespace-only drafts are treated as empty.
	ctrl.SetDraft("   \t")
	assert.False(t, ctrl.Send(context.Background()))

	assert.Zero(t, log.Len())
	assert.Zero(t, sender.callCount())
}

func TestController_Send_NoSessionGuard(t *testing.T) {
	sender := &mockSender{}
	attachments := attachment.NewManager()
	log := transcript.NewLog()
	ctrl := New(nil, attachments, log, sender, nil)

	ctrl.SetDraft("anyone there?")
	assert.False(t, ctrl.Send(context.Background()))

	// With an attachment as well: still no outbound call, no mutation.
	require.NoError(t, <-attachments.Select("sink.png", pngBytes()))
	assert.False(t, ctrl.Send(context.Background()))

	assert.Zero(t, log.Len())
	assert.Zero(t, sender.callCount())
}

func TestController_Send_AppendOnly(t *testing.T) {
	sender := &mockSender{
		resp: &client.ChatResponse{
			Response:  "reply",
			AgentUsed: "Tenancy FAQ Agent",
			Timestamp: time.Now().UTC(),
		},
	}
	ctrl, _, log := newTestController(t, sender)

	ctrl.SetDraft("one")
	require.True(t, ctrl.Send(context.Background()))
	after1 := log.All()
	require.Len(t, after1, 2)

	// Second cycle fails; transcript still grows by exactly two turns.
	sender.mu.Lock()
	sender.err = errors.New("down")
	sender.mu.Unlock()
	ctrl.SetDraft("two")
	require.True(t, ctrl.Send(context.Background()))

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	ctrl.SetDraft("three")
	require.True(t, ctrl.Send(context.Background()))

	all := log.All()
	require.Len(t, all, 6)

	// Turns from the first cycle are unchanged and in place.
	assert.Equal(t, after1[0], all[0])
	assert.Equal(t, after1[1], all[1])

	// The failed cycle produced the apology turn in order.
	assert.Equal(t, "two", all[2].Content)
	assert.Equal(t, apologyText, all[3].Content)
	assert.Equal(t, "three", all[4].Content)
}

func TestController_Send_PendingPreviewDoesNotBlock(t *testing.T) {
	sender := &mockSender{
		resp: &client.ChatResponse{
			Response:  "noted",
			AgentUsed: "Issue Detection Agent",
			Timestamp: time.Now().UTC(),
		},
	}
	ctrl, attachments, log := newTestController(t, sender)

	// Select without waiting for the preview: the send goes out with the
	// file either way. The preview may or may not have landed yet; the
	// raw bytes always do.
	done := attachments.Select("sink.png", pngBytes())
	require.True(t, ctrl.Send(context.Background()))
	<-done

	require.NotNil(t, sender.lastReq.Image)
	assert.Equal(t, pngBytes(), sender.lastReq.Image.Data)
	require.Len(t, log.All(), 2)
}
