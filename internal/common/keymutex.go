package common

import "sync"

// KeyedMutex provides per-key mutual exclusion so that work for one upload id
// never blocks work for another. Entries are reference counted and removed
// once the last holder unlocks.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock acquires the mutex for key, blocking until it is available
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e := k.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
