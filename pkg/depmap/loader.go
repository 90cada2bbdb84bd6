package depmap

import (
	"sync"
	"sync/atomic"
)

// Loader loads a dependency map exactly once.
//
// The first call to Load parses the document; every later call returns the
// same result, including a failed one, without taking the lock. A Loader is
// safe for concurrent use and is meant to be created once at process start
// and handed to whoever needs the map.
type Loader struct {
	load func() (*Map, error)

	mu     sync.Mutex
	result atomic.Pointer[loadResult]
}

type loadResult struct {
	m   *Map
	err error
}

// NewLoader creates a Loader for the document at path.
func NewLoader(path string, check HandlerCheck) *Loader {
	return NewLoaderFunc(func() (*Map, error) { return ParseFile(path, check) })
}

// NewLoaderFunc creates a Loader backed by an arbitrary load function.
func NewLoaderFunc(load func() (*Map, error)) *Loader {
	return &Loader{load: load}
}

// Load returns the dependency map, loading it on first use.
func (l *Loader) Load() (*Map, error) {
	if r := l.result.Load(); r != nil {
		return r.m, r.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if r := l.result.Load(); r != nil {
		return r.m, r.err
	}
	m, err := l.load()
	if err != nil {
		m = nil
	}
	l.result.Store(&loadResult{m: m, err: err})
	return m, err
}

// Loaded reports whether Load has completed.
func (l *Loader) Loaded() bool {
	return l.result.Load() != nil
}
