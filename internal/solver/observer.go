// This file contains the Observer pattern implementation for progress reporting.

package solver

import (
	"math"
	"sync"

	"github.com/agbru/ddsolve/internal/convergence"
)

// ─────────────────────────────────────────────────────────────────────────────
// Observer Pattern Interfaces
// ─────────────────────────────────────────────────────────────────────────────

// ProgressObserver receives one notification per solver iteration.
type ProgressObserver interface {
	// Update is called after every iteration.
	//
	// Parameters:
	//   - solverIndex: The solver instance identifier (for concurrent solves)
	//   - progress: The normalized progress value (0.0 to 1.0)
	//   - m: The convergence metrics of the iteration
	Update(solverIndex int, progress float64, m convergence.Metrics)
}

// ProgressUpdate is the message a ChannelObserver forwards to consumers
// such as the CLI progress display.
type ProgressUpdate struct {
	// SolverIndex distinguishes concurrent solves.
	SolverIndex int
	// Value is the normalized progress, from 0.0 to 1.0.
	Value float64
	// Iteration is the iteration the update belongs to.
	Iteration int
	// Residual is the relative residual of that iteration.
	Residual float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress Subject (Observable)
// ─────────────────────────────────────────────────────────────────────────────

// ProgressSubject manages observer registration and notification. It is
// safe for concurrent use.
type ProgressSubject struct {
	observers []ProgressObserver
	mu        sync.RWMutex
}

// NewProgressSubject creates a new subject for managing progress observers.
func NewProgressSubject() *ProgressSubject {
	return &ProgressSubject{
		observers: make([]ProgressObserver, 0),
	}
}

// Register adds an observer. Observers are notified in registration order;
// a nil observer is ignored.
func (s *ProgressSubject) Register(observer ProgressObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// Unregister removes an observer. Unknown observers are ignored.
func (s *ProgressSubject) Unregister(observer ProgressObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.observers {
		if o == observer {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify sends an update to all registered observers synchronously.
func (s *ProgressSubject) Notify(solverIndex int, progress float64, m convergence.Metrics) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, observer := range s.observers {
		observer.Update(solverIndex, progress, m)
	}
}

// ObserverCount returns the number of registered observers.
func (s *ProgressSubject) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Progress maps a relative residual onto [0, 1] on a log scale between the
// initial residual r0 and the tolerance: log(r0/r)/log(r0/tol).
func Progress(initial, current, tolerance float64) float64 {
	switch {
	case current <= tolerance:
		return 1
	case initial <= tolerance || current >= initial || current <= 0:
		return 0
	}
	p := math.Log(initial/current) / math.Log(initial/tolerance)
	return math.Max(0, math.Min(1, p))
}
