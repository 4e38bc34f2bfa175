package timex

import (
	"sync"
	"time"
)

// NowNs returns Unix nanoseconds as int64.
func NowNs() int64 { return time.Now().UnixNano() }

// Clock abstracts the wall clock so time consumers can be driven in tests.
type Clock interface {
	Now() time.Time
}

// System is the process wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Manual is a settable clock. The zero value reports the zero time.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

func NewManual(t time.Time) *Manual { return &Manual{t: t} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.t = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}
