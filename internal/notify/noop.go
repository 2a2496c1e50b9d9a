package notify

import (
	"context"

	"github.com/framedrop/framedrop/internal/session"
)

// Noop is a notification adapter that drops everything; used when the
// notification channel is disabled by configuration.
type Noop struct{}

// Publish drops the update
func (Noop) Publish(ctx context.Context, snap session.UploadSession) error { return nil }

// PublishTerminal drops the message
func (Noop) PublishTerminal(ctx context.Context, snap session.UploadSession, text string) error {
	return nil
}

// Cleanup is a no-op success
func (Noop) Cleanup(ctx context.Context, uploadID string) error { return nil }
