package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/framedrop/framedrop/internal/session"
)

func formatSession() session.UploadSession {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return session.UploadSession{
		ID:          "u1",
		Size:        1_000_000,
		Offset:      500_000,
		Metadata:    map[string]string{"filename": "cut.mov", "clientName": "Acme", "projectName": "Promo"},
		CreatedAt:   created,
		LastUpdated: created.Add(90 * time.Second),
		UploadSpeed: 100_000,
		SpeedKnown:  true,
	}
}

func TestFormatProgress(t *testing.T) {
	text := FormatProgress(formatSession())

	assert.Contains(t, text, "Upload in progress")
	assert.Contains(t, text, "File: cut.mov")
	assert.Contains(t, text, "Client: Acme")
	assert.Contains(t, text, "Project: Promo")
	assert.Contains(t, text, "50.0%")
	assert.Contains(t, text, "Speed: 100 kB/s")
	assert.Contains(t, text, "Remaining: ~5s")
	assert.Contains(t, text, "Elapsed: 1m30s")
}

func TestFormatProgress_NoSpeedOmitsEstimate(t *testing.T) {
	s := formatSession()
	s.SpeedKnown = false
	s.UploadSpeed = 0

	text := FormatProgress(s)

	assert.NotContains(t, text, "Speed:")
	assert.NotContains(t, text, "Remaining:")
}

func TestFormatProgress_UnknownSizeShowsReceived(t *testing.T) {
	s := formatSession()
	s.Size = 0

	text := FormatProgress(s)

	assert.Contains(t, text, "Received: 500 kB")
	assert.NotContains(t, text, "%")
}

func TestFormatProgress_Deterministic(t *testing.T) {
	s := formatSession()
	assert.Equal(t, FormatProgress(s), FormatProgress(s))
}

func TestFormatCompleted(t *testing.T) {
	text := FormatCompleted(formatSession())

	assert.Contains(t, text, "Upload complete")
	assert.Contains(t, text, "Size: 1.0 MB")
	assert.Contains(t, text, "Duration: 1m30s")
}

func TestFormatTerminated(t *testing.T) {
	text := FormatTerminated(formatSession())

	assert.Contains(t, text, "Upload terminated")
	assert.Contains(t, text, "Received: 500 kB")
}

func TestFormatFailed(t *testing.T) {
	text := FormatFailed(formatSession(), "upload token is invalid")

	assert.Contains(t, text, "Upload failed")
	assert.Contains(t, text, "Reason: upload token is invalid")
}

func TestTerminalFormatsDistinctFromProgress(t *testing.T) {
	s := formatSession()
	assert.NotEqual(t, FormatProgress(s), FormatCompleted(s))
	assert.NotEqual(t, FormatCompleted(s), FormatTerminated(s))
}
