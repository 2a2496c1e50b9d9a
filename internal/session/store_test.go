package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGetSnapshot(t *testing.T) {
	st := NewStore()
	now := time.Now()

	st.Put(&UploadSession{
		ID:          "u1",
		Size:        1000,
		Metadata:    map[string]string{"filename": "a.mov"},
		CreatedAt:   now,
		LastUpdated: now,
	})

	snap, ok := st.Get("u1")
	require.True(t, ok)
	assert.Equal(t, int64(1000), snap.Size)

	// Mutating the snapshot must not affect the stored session
	snap.Metadata["filename"] = "tampered"
	again, _ := st.Get("u1")
	assert.Equal(t, "a.mov", again.Metadata["filename"])
}

func TestStore_GetMissing(t *testing.T) {
	st := NewStore()

	_, ok := st.Get("nope")
	assert.False(t, ok)
}

func TestStore_Update(t *testing.T) {
	st := NewStore()
	st.Put(&UploadSession{ID: "u1"})

	snap, ok := st.Update("u1", func(s *UploadSession) {
		s.Offset = 500
	})
	require.True(t, ok)
	assert.Equal(t, int64(500), snap.Offset)

	_, ok = st.Update("missing", func(s *UploadSession) {})
	assert.False(t, ok)
}

func TestStore_ConcurrentUpdatesDistinctIDs(t *testing.T) {
	st := NewStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		st.Put(&UploadSession{ID: id})
	}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				st.Update(id, func(s *UploadSession) { s.Offset++ })
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		snap, _ := st.Get(id)
		assert.Equal(t, int64(50), snap.Offset)
	}
}

func TestStore_Reap(t *testing.T) {
	st := NewStore()
	now := time.Now()

	st.Put(&UploadSession{ID: "fresh", LastUpdated: now})
	st.Put(&UploadSession{ID: "stale", LastUpdated: now.Add(-2 * time.Hour)})
	st.Put(&UploadSession{ID: "done", IsComplete: true, LastUpdated: now.Add(-10 * time.Minute)})

	evicted := st.Reap(now, time.Hour, 5*time.Minute)

	assert.Equal(t, 2, evicted)
	_, ok := st.Get("fresh")
	assert.True(t, ok)
	_, ok = st.Get("stale")
	assert.False(t, ok)
	_, ok = st.Get("done")
	assert.False(t, ok, "terminal sessions use the shorter grace period")
}

func TestUploadSession_Percent(t *testing.T) {
	s := UploadSession{Size: 1000, Offset: 500}
	assert.InDelta(t, 50.0, s.Percent(), 0.01)

	s = UploadSession{Size: 0, Offset: 500}
	assert.Zero(t, s.Percent())

	s = UploadSession{Size: 100, Offset: 150}
	assert.Equal(t, 100.0, s.Percent(), "percent is capped")
}
