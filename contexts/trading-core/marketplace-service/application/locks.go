package application

import "sync"

// KeyedMutex serializes the read-validate-mutate sequence per listing key.
// No two settlements, or a settlement racing a registration, may interleave
// on the same asset identity.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
// Key mutexes are never evicted; the active key space is bounded by the
// number of distinct asset identities the process has touched.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
