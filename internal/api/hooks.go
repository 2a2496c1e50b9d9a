package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/framedrop/framedrop/internal/finalize"
	"github.com/framedrop/framedrop/internal/ingest"
	"github.com/framedrop/framedrop/pkg/types"
)

// HookHandler receives lifecycle events from the upload transport
type HookHandler struct {
	engine *ingest.Engine
}

// NewHookHandler creates a lifecycle hook handler
func NewHookHandler(engine *ingest.Engine) *HookHandler {
	return &HookHandler{engine: engine}
}

// HandleEvent processes one lifecycle event. The transport retries on
// non-2xx, so everything except a created-event validation failure is
// acknowledged promptly; internal errors are logged, not surfaced, because
// retried delivery is handled idempotently.
func (h *HookHandler) HandleEvent(c *gin.Context) {
	var ev types.HookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	ctx := c.Request.Context()

	switch ev.Type {
	case types.EventCreated:
		if err := h.engine.HandleCreated(ctx, ev); err != nil {
			if errors.Is(err, finalize.ErrTokenInvalid) || errors.Is(err, finalize.ErrTokenExpired) {
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			log.Error().Err(err).Str("upload_id", ev.UploadID).Msg("created event failed")
		}
	case types.EventReceiving:
		if err := h.engine.HandleReceiving(ctx, ev); err != nil {
			log.Error().Err(err).Str("upload_id", ev.UploadID).Msg("receiving event failed")
		}
	case types.EventFinished:
		if err := h.engine.HandleFinished(ctx, ev); err != nil {
			log.Error().Err(err).Str("upload_id", ev.UploadID).Msg("finished event failed")
		}
	case types.EventTerminated:
		if err := h.engine.HandleTerminated(ctx, ev); err != nil {
			log.Error().Err(err).Str("upload_id", ev.UploadID).Msg("terminated event failed")
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type: " + ev.Type})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetProgress returns the live session snapshot for one upload
func (h *HookHandler) GetProgress(c *gin.Context) {
	snap, ok := h.engine.Progress(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
