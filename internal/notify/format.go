package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/framedrop/framedrop/internal/session"
)

// FormatProgress renders the in-progress status message for a session
// snapshot. The output is deterministic given the snapshot.
func FormatProgress(s session.UploadSession) string {
	var b strings.Builder
	b.WriteString("⏫ Upload in progress\n")
	writeIdentity(&b, s)

	if s.Size > 0 {
		fmt.Fprintf(&b, "Progress: %.1f%% (%s / %s)\n",
			s.Percent(), humanize.Bytes(uint64(max64(s.Offset, 0))), humanize.Bytes(uint64(s.Size)))
	} else {
		fmt.Fprintf(&b, "Received: %s\n", humanize.Bytes(uint64(max64(s.Offset, 0))))
	}

	if s.SpeedKnown && s.UploadSpeed > 0 {
		fmt.Fprintf(&b, "Speed: %s/s\n", humanize.Bytes(uint64(s.UploadSpeed)))
		if s.Size > 0 && s.Offset < s.Size {
			remaining := time.Duration(float64(s.Size-s.Offset)/s.UploadSpeed*float64(time.Second)).Round(time.Second)
			fmt.Fprintf(&b, "Remaining: ~%s\n", remaining)
		}
	}

	fmt.Fprintf(&b, "Elapsed: %s", elapsed(s))
	return b.String()
}

// FormatCompleted renders the terminal message for a successful upload
func FormatCompleted(s session.UploadSession) string {
	var b strings.Builder
	b.WriteString("✅ Upload complete\n")
	writeIdentity(&b, s)
	if s.Size > 0 {
		fmt.Fprintf(&b, "Size: %s\n", humanize.Bytes(uint64(s.Size)))
	}
	fmt.Fprintf(&b, "Duration: %s", elapsed(s))
	return b.String()
}

// FormatTerminated renders the terminal message for a cancelled upload
func FormatTerminated(s session.UploadSession) string {
	var b strings.Builder
	b.WriteString("\U0001f6d1 Upload terminated\n")
	writeIdentity(&b, s)
	fmt.Fprintf(&b, "Received: %s", humanize.Bytes(uint64(max64(s.Offset, 0))))
	return b.String()
}

// FormatFailed renders the terminal message for a failed finalization
func FormatFailed(s session.UploadSession, reason string) string {
	var b strings.Builder
	b.WriteString("❌ Upload failed\n")
	writeIdentity(&b, s)
	fmt.Fprintf(&b, "Reason: %s", reason)
	return b.String()
}

func writeIdentity(b *strings.Builder, s session.UploadSession) {
	if name := s.Meta("filename"); name != "" {
		fmt.Fprintf(b, "File: %s\n", name)
	}
	if client := s.Meta("clientName"); client != "" {
		fmt.Fprintf(b, "Client: %s\n", client)
	}
	if project := s.Meta("projectName"); project != "" {
		fmt.Fprintf(b, "Project: %s\n", project)
	}
}

func elapsed(s session.UploadSession) time.Duration {
	if s.CreatedAt.IsZero() || s.LastUpdated.Before(s.CreatedAt) {
		return 0
	}
	return s.LastUpdated.Sub(s.CreatedAt).Round(time.Second)
}

func max64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
