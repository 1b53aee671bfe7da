package crmsync

import "sync"

// runLocker allows one active run per connection within this process.
type runLocker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newRunLocker() *runLocker {
	return &runLocker{active: map[string]struct{}{}}
}

// TryLock returns an unlock func, or false when key is already running.
func (l *runLocker) TryLock(key string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[key]; busy {
		return nil, false
	}
	l.active[key] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.active, key)
		l.mu.Unlock()
	}, true
}
