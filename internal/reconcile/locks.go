package reconcile

import "sync"

// orderLocks serializes event application per order. Deliveries for
// different orders proceed in parallel; deliveries for the same order
// queue behind one another so guard-check and mutation run as one step.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: map[string]*orderLock{}}
}

// Acquire blocks until the caller holds the lock for the key and returns
// the release function. Lock entries are dropped once unreferenced.
func (l *orderLocks) Acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &orderLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
