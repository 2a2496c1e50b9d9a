package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/framedrop/framedrop/internal/common"
)

const handleKeyPrefix = "notify:handle:"

// HandleStore durably maps upload ids to outstanding message handles so a
// process restart does not orphan edits.
type HandleStore interface {
	Get(ctx context.Context, uploadID string) (Message, bool, error)
	Put(ctx context.Context, uploadID string, msg Message) error
	Delete(ctx context.Context, uploadID string) error
}

// RedisHandleStore backs the handle mapping with Redis
type RedisHandleStore struct {
	cache *common.Cache
}

// NewRedisHandleStore creates a handle store on the given cache
func NewRedisHandleStore(cache *common.Cache) *RedisHandleStore {
	return &RedisHandleStore{cache: cache}
}

// Get looks up the handle for an upload id
func (s *RedisHandleStore) Get(ctx context.Context, uploadID string) (Message, bool, error) {
	var msg Message
	err := s.cache.Get(ctx, handleKeyPrefix+uploadID, &msg)
	if err != nil {
		if errors.Is(err, common.ErrCacheMiss) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	return msg, true, nil
}

// Put stores the handle for an upload id
func (s *RedisHandleStore) Put(ctx context.Context, uploadID string, msg Message) error {
	return s.cache.Set(ctx, handleKeyPrefix+uploadID, msg, 0)
}

// Delete removes the handle; absent handles are success
func (s *RedisHandleStore) Delete(ctx context.Context, uploadID string) error {
	return s.cache.Delete(ctx, handleKeyPrefix+uploadID)
}

// MemoryHandleStore is a map-backed HandleStore for tests and for running
// without Redis
type MemoryHandleStore struct {
	mu      sync.Mutex
	handles map[string]Message
}

// NewMemoryHandleStore creates an empty in-memory handle store
func NewMemoryHandleStore() *MemoryHandleStore {
	return &MemoryHandleStore{handles: make(map[string]Message)}
}

// Get looks up the handle for an upload id
func (s *MemoryHandleStore) Get(ctx context.Context, uploadID string) (Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.handles[uploadID]
	return msg, ok, nil
}

// Put stores the handle for an upload id
func (s *MemoryHandleStore) Put(ctx context.Context, uploadID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[uploadID] = msg
	return nil
}

// Delete removes the handle; absent handles are success
func (s *MemoryHandleStore) Delete(ctx context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, uploadID)
	return nil
}
