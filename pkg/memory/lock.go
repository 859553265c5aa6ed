package memory

import "sync"

type userLock struct {
	mu   sync.RWMutex
	refs int
}

// userLocks hands out one RWMutex per user id. Entries are dropped once no
// goroutine holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) acquire(userID string) *userLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	return ul
}

func (l *userLocks) release(userID string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, userID)
	}
}

// lock takes the exclusive lock of a user and returns its unlock func.
func (l *userLocks) lock(userID string) func() {
	ul := l.acquire(userID)
	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.release(userID, ul)
	}
}

// rlock takes the shared lock of a user and returns its unlock func.
func (l *userLocks) rlock(userID string) func() {
	ul := l.acquire(userID)
	ul.mu.RLock()
	return func() {
		ul.mu.RUnlock()
		l.release(userID, ul)
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
