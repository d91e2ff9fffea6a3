// Package locks provides string-keyed mutexes for per-agent, per-task
// and per-session serialization.
package locks

import "sync"

// KeyedMutex serializes callers per key. Keys are never evicted; the
// key spaces here (agent ids, task ids) are small and long-lived.
type KeyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

// Lock acquires the mutex for key and returns its unlock func.
//
//	defer m.Lock(agentID)()
func (m *KeyedMutex) Lock(key string) func() {
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
