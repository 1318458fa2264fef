package session

import (
	"sync"
	"time"

	"chessmatch/internal/model"
)

// TimerKey identifies a disconnect timer by seat
type TimerKey struct {
	GameID model.GameID
	Color  model.Color
}

// Scheduler is a keyed, cancellable one-shot task scheduler. Arming a key
// replaces any earlier timer for it; cancelling is synchronous, so a timer
// cancelled before firing never runs. Actions fire on their own goroutine
// and must re-check at fire time that they are still relevant — the world
// may have moved on between scheduling and firing.
type Scheduler struct {
	mu     sync.Mutex
	timers map[TimerKey]*time.Timer
}

// NewScheduler creates an empty Scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[TimerKey]*time.Timer),
	}
}

// Arm schedules action to run after delay, replacing any existing timer
// for the same key
func (s *Scheduler) Arm(key TimerKey, delay time.Duration, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// Only forget the entry if it is still ours; a re-arm may have
		// replaced it while we were waiting to acquire the lock
		if s.timers[key] == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		action()
	})
	s.timers[key] = t
}

// Cancel stops the timer for key if one is armed and reports whether it was
func (s *Scheduler) Cancel(key TimerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, key)
	return true
}

// Armed reports whether a timer is outstanding for key
func (s *Scheduler) Armed(key TimerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels every outstanding timer
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
