package lifecycle

import (
	"errors"
	"sync"
)

// Scope collects release functions for listeners and timers a component
// acquires while it is alive. Close releases them in reverse order of
// acquisition, exactly once, whatever path the component exits through.
type Scope struct {
	mu       sync.Mutex
	name     string
	releases []func() error
	closed   bool
}

func NewScope(name string) *Scope {
	return &Scope{name: name}
}

func (s *Scope) Name() string { return s.name }

// Acquire registers release. On a closed scope it runs release immediately,
// so late acquisitions cannot leak.
func (s *Scope) Acquire(release func()) {
	s.AcquireErr(func() error {
		release()
		return nil
	})
}

// AcquireErr is Acquire for release functions that can fail.
func (s *Scope) AcquireErr(release func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = release()
		return
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
}

// Len is the number of held resources.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.releases)
}

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases everything and joins their errors. Further calls are no-ops.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		if err := runRelease(releases[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runRelease keeps one panicking release from skipping the rest.
func runRelease(release func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return release()
}

type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "lifecycle: release panicked"
}
