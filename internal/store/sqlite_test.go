// ABOUTME: Tests for the SQLite store.
// ABOUTME: Verifies session lifecycle and message persistence ordering.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(id string, at time.Time) *Session {
	return &Session{
		SessionID: id,
		UserName:  "Guest",
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestSQLiteStore_CreateAndGetSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateSession(ctx, testSession("s1", now)))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "Guest", got.UserName)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSQLiteStore_GetSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_TouchSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	require.NoError(t, s.CreateSession(ctx, testSession("s1", created)))

	later := created.Add(30 * time.Minute)
	require.NoError(t, s.TouchSession(ctx, "s1", later))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later))
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestSQLiteStore_TouchSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.TouchSession(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListSessions_MostRecentFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateSession(ctx, testSession("old", base.Add(-2*time.Hour))))
	require.NoError(t, s.CreateSession(ctx, testSession("new", base)))
	require.NoError(t, s.CreateSession(ctx, testSession("mid", base.Add(-time.Hour))))

	sessions, err := s.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "new", sessions[0].SessionID)
	assert.Equal(t, "mid", sessions[1].SessionID)
	assert.Equal(t, "old", sessions[2].SessionID)

	// Limit is honored.
	sessions, err = s.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "new", sessions[0].SessionID)
}

func TestSQLiteStore_SaveAndGetMessages(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateSession(ctx, testSession("s1", now)))

	require.NoError(t, s.SaveMessage(ctx, &Message{
		ID:        "m1",
		SessionID: "s1",
		Role:      "user",
		Content:   "leak under sink",
		HasImage:  true,
		CreatedAt: now,
	}))
	require.NoError(t, s.SaveMessage(ctx, &Message{
		ID:        "m2",
		SessionID: "s1",
		Role:      "assistant",
		Content:   "Try shutting off the valve",
		Agent:     "Issue Detection Agent",
		CreatedAt: now,
	}))

	messages, err := s.GetSessionMessages(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "leak under sink", messages[0].Content)
	assert.True(t, messages[0].HasImage)
	assert.Empty(t, messages[0].Agent)

	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "Issue Detection Agent", messages[1].Agent)
	assert.False(t, messages[1].HasImage)
}

func TestSQLiteStore_GetSessionMessages_EmptyAndScoped(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateSession(ctx, testSession("s1", now)))
	require.NoError(t, s.CreateSession(ctx, testSession("s2", now)))
	require.NoError(t, s.SaveMessage(ctx, &Message{
		ID: "m1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: now,
	}))

	messages, err := s.GetSessionMessages(ctx, "s2", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
