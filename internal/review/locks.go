package review

import "sync"

// ownerLocks serializes read-modify-write cycles per owner.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{m: make(map[string]*sync.Mutex)}
}

func (l *ownerLocks) lock(ownerID string) func() {
	l.mu.Lock()
	mu, ok := l.m[ownerID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[ownerID] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
