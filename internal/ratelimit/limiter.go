// Package ratelimit implements fixed-window request counting per client key.
//
// A window opens on the first request for a key and lasts for the caller's
// window duration; requests beyond the ceiling inside that window are
// rejected until it expires. Exceeding the limit is a normal outcome
// reported through Result, never an error.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
	Limit     int
}

// RetryAfter returns the whole seconds until the window resets, never less than 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetTime.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts a request against key and reports whether it is admitted.
// Implementations must make the read-check-increment step atomic per key.
type Limiter interface {
	Check(ctx context.Context, key string, window time.Duration, limit int) Result
}

// Policy names a budget shared by one endpoint.
type Policy struct {
	Name   string
	Window time.Duration
	Max    int
}

// Default endpoint budgets.
var (
	ContactPolicy = Policy{Name: "contact", Window: 15 * time.Minute, Max: 5}
	ChatPolicy    = Policy{Name: "chat", Window: time.Minute, Max: 20}
)

// Key composes the per-endpoint bucket key for a client, e.g. "chat-203.0.113.7".
func (p Policy) Key(clientID string) string {
	return p.Name + "-" + clientID
}

// Allow checks clientID against the policy using l.
func (p Policy) Allow(ctx context.Context, l Limiter, clientID string) Result {
	return l.Check(ctx, p.Key(clientID), p.Window, p.Max)
}
