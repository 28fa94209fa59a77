package verification

import (
	"errors"
	"sync"
	"time"
)

// ManualClock is a Clock that only moves when told to. Useful for tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a ManualClock at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequenceGenerator returns codes in order, then repeats the last one. With no
// codes every call fails.
func SequenceGenerator(codes ...string) Generator {
	var (
		mu sync.Mutex
		i  int
	)
	return func() (string, error) {
		if len(codes) == 0 {
			return "", errors.New("sequence generator has no codes")
		}
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}
