package resilience

import (
	"strings"
	"sync"
)

// Rotator hands out provider API keys round-robin. It is safe for
// concurrent use; every pass in the process shares one instance so the
// load spreads evenly across keys.
type Rotator struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewRotator creates a Rotator over keys. Blank and duplicate keys are dropped.
func NewRotator(keys []string) *Rotator {
	seen := make(map[string]bool, len(keys))
	pool := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		pool = append(pool, k)
	}
	return &Rotator{keys: pool}
}

// Next returns the key at the cursor and advances it. Returns
// ErrNoCredential when the pool is empty.
func (r *Rotator) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return "", ErrNoCredential
	}
	if r.cursor >= len(r.keys) {
		r.cursor = 0
	}
	key := r.keys[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.keys)
	return key, nil
}

// Retire removes key from the pool. The rotation order of the remaining
// keys is preserved. Returns false if the key was not in the pool.
func (r *Rotator) Retire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, k := range r.keys {
		if k != key {
			continue
		}
		r.keys = append(r.keys[:i], r.keys[i+1:]...)
		if i < r.cursor {
			r.cursor--
		}
		if len(r.keys) == 0 || r.cursor >= len(r.keys) {
			r.cursor = 0
		}
		return true
	}
	return false
}

// Size returns the number of live keys.
func (r *Rotator) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
