package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// UploadSession is the in-memory progress record for one in-flight upload.
// It lives only for the duration of the process; finalization correctness
// never depends on it.
type UploadSession struct {
	ID       string            `json:"id"`
	Size     int64             `json:"size"`
	Offset   int64             `json:"offset"`
	Metadata map[string]string `json:"metadata"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Two-sample sliding window for throughput estimation
	PreviousOffset     int64     `json:"-"`
	PreviousUpdateTime time.Time `json:"-"`
	UploadSpeed        float64   `json:"upload_speed"`
	SpeedKnown         bool      `json:"speed_known"`

	IsComplete bool `json:"is_complete"`
	Terminated bool `json:"terminated"`
}

// Meta returns a metadata value, tolerating a nil map
func (s *UploadSession) Meta(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// Percent returns completion as 0..100, or 0 when the size is unknown
func (s *UploadSession) Percent() float64 {
	if s.Size <= 0 {
		return 0
	}
	p := float64(s.Offset) / float64(s.Size) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Store holds upload sessions keyed by upload id. Reads return snapshots so
// callers never share memory with concurrent writers; mutation goes through
// Update, which runs the callback under the store lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*UploadSession
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*UploadSession)}
}

// Put inserts or replaces a session
func (st *Store) Put(sess *UploadSession) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[sess.ID] = sess
}

// Get returns a snapshot copy of the session, if present
func (st *Store) Get(id string) (UploadSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[id]
	if !ok {
		return UploadSession{}, false
	}
	return snapshot(sess), true
}

// Update applies fn to the session under the store lock and returns a
// snapshot of the result. It returns ok=false when no session exists.
func (st *Store) Update(id string, fn func(*UploadSession)) (UploadSession, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return UploadSession{}, false
	}
	fn(sess)
	return snapshot(sess), true
}

// Delete removes a session; absent ids are a no-op
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Reap evicts sessions idle longer than ttl. Sessions in a terminal state
// use the shorter terminalTTL so finished uploads do not linger. Returns the
// number of evicted sessions.
func (st *Store) Reap(now time.Time, ttl, terminalTTL time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for id, sess := range st.sessions {
		limit := ttl
		if sess.IsComplete || sess.Terminated {
			limit = terminalTTL
		}
		if now.Sub(sess.LastUpdated) > limit {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartReaper runs Reap on the given interval until ctx is cancelled
func (st *Store) StartReaper(ctx context.Context, interval, ttl, terminalTTL time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.Reap(time.Now(), ttl, terminalTTL); n > 0 {
					log.Debug().Int("evicted", n).Msg("reaped idle upload sessions")
				}
			}
		}
	}()
}

func snapshot(sess *UploadSession) UploadSession {
	cp := *sess
	if sess.Metadata != nil {
		cp.Metadata = make(map[string]string, len(sess.Metadata))
		for k, v := range sess.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
