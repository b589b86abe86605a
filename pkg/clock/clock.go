// Package clock provides the time source for everything that stamps or
// compares loan and reservation times.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
}

type realClock struct{}

func New() Clock {
	return realClock{}
}

// Times are truncated to microseconds since that's the precision the
// database keeps.
func (realClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Mock is a Clock that only moves when told to.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMock(t time.Time) *Mock {
	return &Mock{now: t.UTC()}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}

func (m *Mock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
