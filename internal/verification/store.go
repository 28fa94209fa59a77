package verification

import (
	"context"
	"crypto/subtle"
	"time"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxAttempts is the attempt ceiling.
	DefaultMaxAttempts = 3
)

// Store holds at most one pending code per identity.
type Store interface {
	// Issue generates a code for identity, replacing any pending one.
	Issue(ctx context.Context, identity string) (string, error)
	// Check validates code against the pending entry. A nil error means the code
	// was correct and has been consumed.
	Check(ctx context.Context, identity, code string) error
}

// Options configures a Store. Zero values select the defaults.
type Options struct {
	TTL         time.Duration
	MaxAttempts int
	// Retention is how long an expired entry is kept around before it may be
	// reclaimed. While retained, a check reports ErrExpired rather than ErrNotFound.
	Retention   time.Duration
	Clock       Clock
	Generate    Generator
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Retention < 0 {
		o.Retention = 0
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Generate == nil {
		o.Generate = RandomCode
	}
	return o
}

// Pending is the state kept for one identity.
type Pending struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// evaluate applies one check to p. Order matters: expiry wins over everything, so an
// expired code is never usable even with attempts left. It returns whether the entry
// must be removed and the outcome.
func (p *Pending) evaluate(now time.Time, code string, maxAttempts int) (bool, error) {
	if now.After(p.ExpiresAt) {
		return true, ErrExpired
	}
	if p.Attempts >= maxAttempts {
		return true, ErrTooManyAttempts
	}
	if subtle.ConstantTimeCompare([]byte(p.Code), []byte(code)) != 1 {
		p.Attempts++
		return false, ErrMismatch
	}
	return true, nil
}

// reclaimable reports whether a sweep may drop p.
func (p *Pending) reclaimable(now time.Time, retention time.Duration) bool {
	return now.After(p.ExpiresAt.Add(retention))
}
