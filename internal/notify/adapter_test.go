package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framedrop/framedrop/internal/session"
)

type fakeBot struct {
	mu    sync.Mutex
	sends []string
	edits []string

	editOutcome Outcome
	editErr     error
	sendErr     error
	nextID      int64
}

func (f *fakeBot) SendMessage(ctx context.Context, text string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return Message{}, f.sendErr
	}
	f.nextID++
	f.sends = append(f.sends, text)
	return Message{ChatID: "chan", MessageID: f.nextID}, nil
}

func (f *fakeBot) EditMessage(ctx context.Context, msg Message, text string) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editOutcome == OutcomeOK {
		f.edits = append(f.edits, text)
	}
	return f.editOutcome, f.editErr
}

func (f *fakeBot) DeleteMessage(ctx context.Context, msg Message) error { return nil }

func (f *fakeBot) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeBot) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func testSession(id string) session.UploadSession {
	now := time.Now()
	return session.UploadSession{
		ID:          id,
		Size:        1000,
		Offset:      500,
		Metadata:    map[string]string{"filename": "a.mov", "clientName": "Acme", "projectName": "Promo"},
		CreatedAt:   now.Add(-time.Minute),
		LastUpdated: now,
	}
}

func newTestAdapter(bot *fakeBot) (*Adapter, *MemoryHandleStore) {
	handles := NewMemoryHandleStore()
	return NewAdapter(bot, handles, nil, 10*time.Millisecond, 10*time.Millisecond), handles
}

func TestPublish_FirstSendThenEdit(t *testing.T) {
	bot := &fakeBot{editOutcome: OutcomeOK}
	adapter, handles := newTestAdapter(bot)
	ctx := context.Background()

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))
	assert.Equal(t, 1, bot.sendCount())

	_, ok, err := handles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "handle stored after first send")

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))
	assert.Equal(t, 1, bot.sendCount(), "second publish edits instead of sending")
	assert.Equal(t, 1, bot.editCount())
}

func TestPublish_NotModifiedIsSuccess(t *testing.T) {
	bot := &fakeBot{editOutcome: OutcomeOK}
	adapter, _ := newTestAdapter(bot)
	ctx := context.Background()

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))

	bot.editOutcome = OutcomeNotModified
	bot.editErr = errors.New("message is not modified")

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))
	assert.Equal(t, 1, bot.sendCount(), "unchanged content must not trigger a fallback send")
}

func TestPublish_EditFailureFallsBackToSend(t *testing.T) {
	bot := &fakeBot{editOutcome: OutcomeOK}
	adapter, handles := newTestAdapter(bot)
	ctx := context.Background()

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))
	first, _, _ := handles.Get(ctx, "u1")

	bot.editOutcome = OutcomeNotFound
	bot.editErr = errors.New("message to edit not found")

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))
	assert.Equal(t, 2, bot.sendCount(), "exactly one fallback send")

	replaced, ok, _ := handles.Get(ctx, "u1")
	require.True(t, ok)
	assert.NotEqual(t, first.MessageID, replaced.MessageID, "handle replaced by the fallback message")
}

func TestPublish_SendFailureReportsAndDropsHandle(t *testing.T) {
	bot := &fakeBot{sendErr: errors.New("api down")}
	adapter, handles := newTestAdapter(bot)
	ctx := context.Background()

	err := adapter.Publish(ctx, testSession("u1"))
	assert.Error(t, err)

	_, ok, _ := handles.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestPublishTerminal_AlwaysSendsNew(t *testing.T) {
	bot := &fakeBot{editOutcome: OutcomeOK}
	adapter, handles := newTestAdapter(bot)
	ctx := context.Background()

	require.NoError(t, adapter.Publish(ctx, testSession("u1")))

	snap := testSession("u1")
	snap.IsComplete = true
	require.NoError(t, adapter.PublishTerminal(ctx, snap, FormatCompleted(snap)))

	assert.Equal(t, 2, bot.sendCount())
	assert.Equal(t, 0, bot.editCount(), "terminal messages never edit")

	// Handle cleanup is scheduled after the grace period
	require.Eventually(t, func() bool {
		_, ok, _ := handles.Get(ctx, "u1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCleanup_AbsentHandleIsSuccess(t *testing.T) {
	adapter, _ := newTestAdapter(&fakeBot{})

	assert.NoError(t, adapter.Cleanup(context.Background(), "never-seen"))
}
