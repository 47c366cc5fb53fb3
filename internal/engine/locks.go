package engine

import "sync"

// instrumentLocks serialises every decide/submit/persist sequence per
// instrument. Intake and the reconcile tick both take the same lock, so two
// activities never mutate one position concurrently.
type instrumentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newInstrumentLocks() *instrumentLocks {
	return &instrumentLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *instrumentLocks) Lock(asset string) {
	l.mu.Lock()
	m, ok := l.locks[asset]
	if !ok {
		m = &sync.Mutex{}
		l.locks[asset] = m
	}
	l.mu.Unlock()

	m.Lock()
}

func (l *instrumentLocks) Unlock(asset string) {
	l.mu.Lock()
	m := l.locks[asset]
	l.mu.Unlock()

	if m != nil {
		m.Unlock()
	}
}
