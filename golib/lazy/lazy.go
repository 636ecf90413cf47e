package lazy

import (
	"sync"
)

// Loader runs an expensive load at most once until it is explicitly unloaded.
// Readers hold a read lock between LoadAndLock and Unlock so Unload never runs under them.
type Loader struct {
	load   func() error
	unload func()

	lock    sync.RWMutex
	once    sync.Once
	loadErr error
}

// NewLoader creates a new Loader; unload may be nil.
func NewLoader(load func() error, unload func()) *Loader {
	return &Loader{
		load:   load,
		unload: unload,
	}
}

// LoadAndLock ensures load has run, and locks against Unload until Unlock is called.
// Callers should immediately defer l.Unlock() after checking that LoadAndLock returned no error.
// A failed load is sticky: it is reported to every caller until Unload resets it.
func (l *Loader) LoadAndLock() error {
	// release the read lock if load panics or fails
	deferUnlock := true
	l.lock.RLock()
	defer func() {
		if deferUnlock {
			l.lock.RUnlock()
		}
	}()

	l.once.Do(func() { l.loadErr = l.load() })
	if l.loadErr == nil {
		deferUnlock = false
	}
	return l.loadErr
}

// Unlock unlocks the Loader for Unloading
func (l *Loader) Unlock() {
	l.lock.RUnlock()
}

// Unload drops the loaded data; the next LoadAndLock loads again.
func (l *Loader) Unload() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.once = sync.Once{}
	if l.unload != nil {
		l.unload()
	}
	l.loadErr = nil
}
