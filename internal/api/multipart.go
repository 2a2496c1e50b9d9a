package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/framedrop/framedrop/internal/finalize"
	"github.com/framedrop/framedrop/internal/storage"
	"github.com/framedrop/framedrop/pkg/types"
)

// TokenResolver validates upload-link tokens
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*types.UploadLink, error)
}

// MultipartHandler serves the direct object-storage multipart upload flow:
// create, per-part presigned URL, ordered complete, abort.
type MultipartHandler struct {
	store         storage.ObjectStore
	tokens        TokenResolver
	presignExpiry time.Duration
}

// NewMultipartHandler creates a multipart upload handler
func NewMultipartHandler(store storage.ObjectStore, tokens TokenResolver, presignExpiry time.Duration) *MultipartHandler {
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &MultipartHandler{store: store, tokens: tokens, presignExpiry: presignExpiry}
}

func (h *MultipartHandler) multipart(c *gin.Context) (storage.MultipartStore, bool) {
	mp, ok := h.store.(storage.MultipartStore)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "multipart uploads require object storage"})
		return nil, false
	}
	return mp, true
}

type createMultipartRequest struct {
	Token       string `json:"token" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
}

// Create validates the token, derives the canonical key and starts a
// multipart upload
func (h *MultipartHandler) Create(c *gin.Context) {
	mp, ok := h.multipart(c)
	if !ok {
		return
	}

	var req createMultipartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	link, err := h.tokens.ResolveToken(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, finalize.ErrTokenInvalid) || errors.Is(err, finalize.ErrTokenExpired) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve token"})
		return
	}

	key := h.store.GenerateKey(link.Project.Client.Code, link.Project.Name, req.Filename)
	uploadID, err := mp.CreateMultipart(c.Request.Context(), key, req.ContentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create multipart upload"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"uploadId": uploadID, "key": key})
}

// SignPart returns a presigned URL for one part
func (h *MultipartHandler) SignPart(c *gin.Context) {
	mp, ok := h.multipart(c)
	if !ok {
		return
	}

	key := c.Query("key")
	uploadID := c.Query("uploadId")
	partNumber, err := strconv.ParseInt(c.Query("partNumber"), 10, 32)
	if key == "" || uploadID == "" || err != nil || partNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key, uploadId and partNumber are required"})
		return
	}

	url, err := mp.PresignPart(c.Request.Context(), key, uploadID, int32(partNumber), h.presignExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to presign part"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

type completeMultipartRequest struct {
	Key      string                  `json:"key" binding:"required"`
	UploadID string                  `json:"uploadId" binding:"required"`
	Parts    []storage.CompletedPart `json:"parts" binding:"required"`
}

// Complete commits the multipart upload from the accumulated part ETags
func (h *MultipartHandler) Complete(c *gin.Context) {
	mp, ok := h.multipart(c)
	if !ok {
		return
	}

	var req completeMultipartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := mp.CompleteMultipart(c.Request.Context(), req.Key, req.UploadID, req.Parts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete multipart upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed", "key": req.Key})
}

type abortMultipartRequest struct {
	Key      string `json:"key" binding:"required"`
	UploadID string `json:"uploadId" binding:"required"`
}

// Abort releases the server-side resources of a cancelled multipart upload
func (h *MultipartHandler) Abort(c *gin.Context) {
	mp, ok := h.multipart(c)
	if !ok {
		return
	}

	var req abortMultipartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := mp.AbortMultipart(c.Request.Context(), req.Key, req.UploadID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to abort multipart upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "aborted"})
}
