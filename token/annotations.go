package token

import "sync"

// Annotations is an open key-value mapping used to stash metadata on a lock
// token (owner strings, handle bookkeeping, the indirect descendant index).
//
// A root token and every indirect token registered against it share one
// Annotations value by reference, so metadata written through any member of
// the lock set is visible to all of them.
type Annotations struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewAnnotations returns an empty annotation mapping.
func NewAnnotations() *Annotations {
	return &Annotations{m: make(map[string]any)}
}

// Get returns the value stored under key, if any.
func (a *Annotations) Get(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.m[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (a *Annotations) Set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[key] = value
}

// Delete removes the value stored under key.
func (a *Annotations) Delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, key)
}

// Len returns the number of stored keys.
func (a *Annotations) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.m)
}
