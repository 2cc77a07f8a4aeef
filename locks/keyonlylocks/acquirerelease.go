// Package keyonlylocks provides non-blocking try-locks identified only by string keys.
package keyonlylocks

import "sync"

// AcquireLocks takes every key or none. It never waits.
func AcquireLocks(lockStore *sync.Map, keys []string) ([]string, bool) {
	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		_, loaded := lockStore.LoadOrStore(key, struct{}{})
		if loaded {
			// rollback previously acquired locks
			ReleaseLocks(lockStore, acquired)
			return nil, false
		}
		acquired = append(acquired, key)
	}
	return acquired, true
}

// ReleaseLocks deletes locks from the lockStore.
// Defer it right after a successful acquire so a panic still releases.
func ReleaseLocks(lockStore *sync.Map, keys []string) {
	for _, key := range keys {
		lockStore.Delete(key)
	}
}

// Set is a named lock store.
type Set struct {
	m sync.Map
}

// TryLock acquires keys and returns the matching release func.
func (s *Set) TryLock(keys ...string) (release func(), ok bool) {
	acquired, ok := AcquireLocks(&s.m, keys)
	if !ok {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(func() { ReleaseLocks(&s.m, acquired) }) }, true
}

func (s *Set) Held(key string) bool {
	_, ok := s.m.Load(key)
	return ok
}
