package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the backend abstraction used by the finalization pipeline.
// Both implementations normalise destinations through the same GenerateKey so
// dedup and display logic never diverge between backends.
type ObjectStore interface {
	// Exists checks whether an object is present at key
	Exists(ctx context.Context, key string) (bool, error)

	// Move relocates an object from src to dst, creating any intermediate
	// destination structure. Implementations treat a missing source that was
	// already relocated by a prior attempt as success.
	Move(ctx context.Context, src, dst string) error

	// ReadAll returns the full content at key
	ReadAll(ctx context.Context, key string) ([]byte, error)

	// Store writes content at key
	Store(ctx context.Context, key string, content io.Reader) error

	// Delete removes the object at key; absent objects are not an error
	Delete(ctx context.Context, key string) error

	// GenerateKey derives the canonical destination for an upload
	GenerateKey(clientCode, projectName, filename string) string

	// Kind identifies the backend ("local" or "s3")
	Kind() string
}

// CompletedPart is one finished part of a multipart upload
type CompletedPart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

// MultipartStore is implemented by backends that support direct multipart
// uploads with client-side part transfer via presigned URLs.
type MultipartStore interface {
	// CreateMultipart starts a multipart upload and returns its upload id
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)

	// PresignPart returns a presigned URL for uploading one part
	PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error)

	// CompleteMultipart commits the upload from the given parts. Parts are
	// sorted by part number before the commit.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error

	// AbortMultipart releases server-side resources for a cancelled upload
	AbortMultipart(ctx context.Context, key, uploadID string) error
}
