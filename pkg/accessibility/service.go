// Package accessibility adapts animation specs to the user's motion
// preferences before they reach the scheduler.
//
// [Service] mirrors the system-level flags (reduced motion, vestibular
// safety) reported by the platform layer. [Policy] reads them once per
// registration and rewrites the animation Spec accordingly.
package accessibility

import "sync"

// Flags is a snapshot of the system motion preferences.
type Flags struct {
	// ReducedMotion substitutes motion-heavy transitions with short fades.
	ReducedMotion bool
	// VestibularSafety clamps translation distance and spring velocity.
	VestibularSafety bool
}

// FlagSource reports the current motion preferences. Implementations must be
// safe for concurrent use; Register may be called from any goroutine.
type FlagSource interface {
	Flags() Flags
}

// Service tracks the motion preferences pushed by the platform.
// All methods are safe for concurrent use.
type Service struct {
	mu        sync.RWMutex
	flags     Flags
	listeners map[int]func(Flags)
	nextID    int
}

// NewService creates a service with both preferences off.
func NewService() *Service {
	return &Service{listeners: make(map[int]func(Flags))}
}

// Flags returns the current preferences.
func (s *Service) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// SetReducedMotion updates the reduced-motion preference.
func (s *Service) SetReducedMotion(enabled bool) {
	s.update(func(f *Flags) { f.ReducedMotion = enabled })
}

// SetVestibularSafety updates the vestibular-safety preference.
func (s *Service) SetVestibularSafety(enabled bool) {
	s.update(func(f *Flags) { f.VestibularSafety = enabled })
}

// AddListener registers a callback fired after every preference change.
// Returns an unsubscribe function.
func (s *Service) AddListener(fn func(Flags)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) update(mutate func(*Flags)) {
	s.mu.Lock()
	before := s.flags
	mutate(&s.flags)
	after := s.flags
	var listeners []func(Flags)
	if before != after {
		listeners = make([]func(Flags), 0, len(s.listeners))
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(after)
	}
}

// StaticFlags is a FlagSource with fixed preferences.
type StaticFlags Flags

// Flags returns the fixed preferences.
func (f StaticFlags) Flags() Flags { return Flags(f) }
