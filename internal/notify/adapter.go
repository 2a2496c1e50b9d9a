package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/framedrop/framedrop/internal/metrics"
	"github.com/framedrop/framedrop/internal/session"
)

// Adapter presents one continuously-edited status message per upload id.
// Handles live in a durable store with an in-memory cache as the fast path;
// each remote failure gets exactly one fallback attempt and never propagates
// past the event-ingestion caller.
type Adapter struct {
	client  BotClient
	handles HandleStore
	metrics *metrics.Metrics

	mu    sync.Mutex
	cache map[string]Message

	completedCleanup  time.Duration
	terminatedCleanup time.Duration
}

// NewAdapter creates a notification adapter
func NewAdapter(client BotClient, handles HandleStore, m *metrics.Metrics, completedCleanup, terminatedCleanup time.Duration) *Adapter {
	return &Adapter{
		client:            client,
		handles:           handles,
		metrics:           m,
		cache:             make(map[string]Message),
		completedCleanup:  completedCleanup,
		terminatedCleanup: terminatedCleanup,
	}
}

// Publish updates the upload's status message, editing in place when a handle
// exists and falling back to a fresh send when the edit fails for any reason
// other than unchanged content.
func (a *Adapter) Publish(ctx context.Context, snap session.UploadSession) error {
	text := FormatProgress(snap)

	if msg, ok := a.lookup(ctx, snap.ID); ok {
		outcome, err := a.client.EditMessage(ctx, msg, text)
		switch outcome {
		case OutcomeOK, OutcomeNotModified:
			a.count("edit", "ok")
			return nil
		default:
			a.count("edit", outcome.String())
			log.Warn().Err(err).
				Str("upload_id", snap.ID).
				Str("outcome", outcome.String()).
				Msg("edit failed, falling back to send")
		}
	}

	sent, err := a.client.SendMessage(ctx, text)
	if err != nil {
		a.count("send", "error")
		// The handle, if any, points at a message we can no longer maintain
		a.forget(ctx, snap.ID)
		return fmt.Errorf("failed to send status message: %w", err)
	}
	a.count("send", "ok")
	a.remember(ctx, snap.ID, sent)
	return nil
}

// PublishTerminal always sends a new message so the terminal event is not
// absorbed into an edit the operator may have dismissed, then schedules
// removal of the upload's handle.
func (a *Adapter) PublishTerminal(ctx context.Context, snap session.UploadSession, text string) error {
	delay := a.completedCleanup
	if snap.Terminated {
		delay = a.terminatedCleanup
	}
	defer a.scheduleCleanup(snap.ID, delay)

	if _, err := a.client.SendMessage(ctx, text); err != nil {
		a.count("send_terminal", "error")
		return fmt.Errorf("failed to send terminal message: %w", err)
	}
	a.count("send_terminal", "ok")
	return nil
}

// Cleanup removes the upload's handle from the cache and the durable store;
// an already-absent handle is success.
func (a *Adapter) Cleanup(ctx context.Context, uploadID string) error {
	a.mu.Lock()
	delete(a.cache, uploadID)
	a.mu.Unlock()

	if err := a.handles.Delete(ctx, uploadID); err != nil {
		return fmt.Errorf("failed to delete notification handle: %w", err)
	}
	return nil
}

func (a *Adapter) scheduleCleanup(uploadID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Cleanup(ctx, uploadID); err != nil {
			log.Warn().Err(err).Str("upload_id", uploadID).Msg("scheduled handle cleanup failed")
		}
	})
}

func (a *Adapter) lookup(ctx context.Context, uploadID string) (Message, bool) {
	a.mu.Lock()
	msg, ok := a.cache[uploadID]
	a.mu.Unlock()
	if ok {
		return msg, true
	}

	msg, ok, err := a.handles.Get(ctx, uploadID)
	if err != nil {
		log.Warn().Err(err).Str("upload_id", uploadID).Msg("handle store lookup failed")
		return Message{}, false
	}
	if ok {
		a.mu.Lock()
		a.cache[uploadID] = msg
		a.mu.Unlock()
	}
	return msg, ok
}

func (a *Adapter) remember(ctx context.Context, uploadID string, msg Message) {
	a.mu.Lock()
	a.cache[uploadID] = msg
	a.mu.Unlock()

	if err := a.handles.Put(ctx, uploadID, msg); err != nil {
		log.Warn().Err(err).Str("upload_id", uploadID).Msg("failed to persist notification handle")
	}
}

func (a *Adapter) forget(ctx context.Context, uploadID string) {
	if err := a.Cleanup(ctx, uploadID); err != nil {
		log.Warn().Err(err).Str("upload_id", uploadID).Msg("failed to drop notification handle")
	}
}

func (a *Adapter) count(operation, status string) {
	if a.metrics != nil {
		a.metrics.NotificationsTotal.WithLabelValues(operation, status).Inc()
	}
}
