package workout

import "sync"

// keyedMutex hands out one mutex per key so saves for the same
// (user, program) pair serialize while unrelated pairs proceed concurrently.
// Entries are never evicted; the population is bounded by users x programs.
type keyedMutex struct {
	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.keys == nil {
		k.keys = make(map[string]*sync.Mutex)
	}
	m, ok := k.keys[key]
	if !ok {
		m = &sync.Mutex{}
		k.keys[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
