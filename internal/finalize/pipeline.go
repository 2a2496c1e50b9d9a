package finalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/framedrop/framedrop/internal/common"
	"github.com/framedrop/framedrop/internal/metrics"
	"github.com/framedrop/framedrop/internal/session"
	"github.com/framedrop/framedrop/internal/storage"
	"github.com/framedrop/framedrop/pkg/types"
)

// Token validation failures; terminal, never retried
var (
	ErrTokenInvalid = errors.New("upload token is invalid")
	ErrTokenExpired = errors.New("upload token has expired")
)

// Result reports one pipeline run
type Result struct {
	Record           *types.FileRecord
	Deduplicated     bool
	AlreadyCompleted bool
}

// Pipeline finalizes a finished upload: validates the access token, derives
// the canonical destination, relocates the stored object, hashes for dedup
// and commits the file record. Idempotence is anchored on the record store,
// not on any in-memory state.
type Pipeline struct {
	db      *common.Database
	store   storage.ObjectStore
	metrics *metrics.Metrics
}

// NewPipeline creates a finalization pipeline
func NewPipeline(db *common.Database, store storage.ObjectStore, m *metrics.Metrics) *Pipeline {
	return &Pipeline{db: db, store: store, metrics: m}
}

// ResolveToken resolves an access token to its upload link with project and
// client preloaded. Unknown, expired and exhausted tokens fail with the
// corresponding sentinel error.
func (p *Pipeline) ResolveToken(ctx context.Context, token string) (*types.UploadLink, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	var link types.UploadLink
	err := p.db.WithContext(ctx).
		Preload("Project").
		Preload("Project.Client").
		Where("token = ?", token).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	if time.Now().After(link.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if link.MaxUses > 0 && link.UsedCount >= link.MaxUses {
		return nil, ErrTokenExpired
	}
	if link.Project.ID == uuid.Nil || link.Project.Client.ID == uuid.Nil {
		return nil, ErrTokenInvalid
	}

	return &link, nil
}

// Run finalizes the upload described by the session snapshot. A record that
// is already completed makes the run a no-op success, which is what makes
// duplicate finished deliveries and the termination race safe.
func (p *Pipeline) Run(ctx context.Context, sess session.UploadSession) (*Result, error) {
	var existing types.FileRecord
	err := p.db.WithContext(ctx).First(&existing, "id = ?", sess.ID).Error
	if err == nil && existing.Status == types.FileStatusCompleted {
		log.Debug().Str("upload_id", sess.ID).Msg("upload already finalized")
		p.count("already_completed")
		return &Result{Record: &existing, AlreadyCompleted: true}, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing record: %w", err)
	}

	link, err := p.ResolveToken(ctx, sess.Meta("token"))
	if err != nil {
		p.fail(ctx, sess, uuid.Nil, err)
		return nil, err
	}

	client := link.Project.Client
	dstKey := p.store.GenerateKey(client.Code, link.Project.Name, sess.Meta("filename"))

	srcKey := sess.Meta("storageKey")
	if srcKey == "" {
		srcKey = sess.ID
	}

	err = p.store.Move(ctx, srcKey, dstKey)
	p.storageOp("move", err)
	if err != nil {
		p.fail(ctx, sess, link.ProjectID, err)
		return nil, fmt.Errorf("failed to relocate upload: %w", err)
	}

	hash, err := p.contentHash(ctx, sess.ID, dstKey)
	if err != nil {
		p.fail(ctx, sess, link.ProjectID, err)
		return nil, fmt.Errorf("failed to hash content: %w", err)
	}

	storagePath := dstKey
	deduplicated := false
	var dup types.FileRecord
	err = p.db.WithContext(ctx).
		Where("project_id = ? AND hash = ? AND status = ? AND id <> ?",
			link.ProjectID, hash, types.FileStatusCompleted, sess.ID).
		First(&dup).Error
	switch {
	case err == nil:
		// Same bytes already stored in this project; discard the new copy
		// and point the record at the existing object
		delErr := p.store.Delete(ctx, dstKey)
		p.storageOp("delete", delErr)
		if delErr != nil {
			log.Warn().Err(delErr).Str("key", dstKey).Msg("failed to discard duplicate content")
		}
		storagePath = dup.StoragePath
		deduplicated = true
		log.Info().Str("upload_id", sess.ID).Str("duplicate_of", dup.ID).Msg("content deduplicated")
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No duplicate
	default:
		p.fail(ctx, sess, link.ProjectID, err)
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}

	now := time.Now()
	record := &types.FileRecord{
		ID:          sess.ID,
		Name:        storage.SanitizeFilename(sess.Meta("filename")),
		StoragePath: storagePath,
		Size:        sess.Size,
		Hash:        hash,
		MimeType:    mimeType(sess),
		Status:      types.FileStatusCompleted,
		ProjectID:   link.ProjectID,
		Metadata: types.JSONMap{
			"client":  client.Name,
			"project": link.Project.Name,
			"storage": p.store.Kind(),
		},
		CompletedAt: &now,
	}

	if err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error; err != nil {
		p.fail(ctx, sess, link.ProjectID, err)
		return nil, fmt.Errorf("failed to commit file record: %w", err)
	}

	if err := p.db.WithContext(ctx).
		Model(&types.UploadLink{}).
		Where("id = ?", link.ID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error; err != nil {
		log.Warn().Err(err).Str("token", link.Token).Msg("failed to increment link usage")
	}

	p.count("completed")
	log.Info().
		Str("upload_id", sess.ID).
		Str("path", storagePath).
		Bool("deduplicated", deduplicated).
		Msg("upload finalized")

	return &Result{Record: record, Deduplicated: deduplicated}, nil
}

// fail persists the failed status best-effort; the original error is what
// propagates to the caller
func (p *Pipeline) fail(ctx context.Context, sess session.UploadSession, projectID uuid.UUID, cause error) {
	p.count("failed")

	record := &types.FileRecord{
		ID:        sess.ID,
		Name:      storage.SanitizeFilename(sess.Meta("filename")),
		Size:      sess.Size,
		MimeType:  mimeType(sess),
		Status:    types.FileStatusFailed,
		ProjectID: projectID,
		Metadata:  types.JSONMap{"error": cause.Error()},
	}
	if err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error; err != nil {
		log.Error().Err(err).Str("upload_id", sess.ID).Msg("failed to persist failed status")
	}
}

// contentHash computes the dedup hash. Local files hash their final bytes;
// object-storage uploads use a placeholder keyed by upload id because a full
// read-back of large media would double the transfer cost.
func (p *Pipeline) contentHash(ctx context.Context, uploadID, key string) (string, error) {
	if p.store.Kind() == "s3" {
		return fmt.Sprintf("%016x", xxhash.Sum64String("s3:"+uploadID)), nil
	}

	data, err := p.store.ReadAll(ctx, key)
	p.storageOp("read", err)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

func (p *Pipeline) count(status string) {
	if p.metrics != nil {
		p.metrics.FinalizationsTotal.WithLabelValues(status).Inc()
	}
}

func (p *Pipeline) storageOp(operation string, err error) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.StorageOperationsTotal.WithLabelValues(p.store.Kind(), operation, status).Inc()
}

func mimeType(sess session.UploadSession) string {
	if mt := sess.Meta("filetype"); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
