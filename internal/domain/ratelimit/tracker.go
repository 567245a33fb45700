// Package ratelimit holds the RateLimitTracker: atomic state for the three
// numbers a rate-limited HTTP service declares through response headers, and
// the header-extraction rules that keep that state current.
package ratelimit

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Unknown is the sentinel used for both Limit and Remaining before any
// response header has set them, and is the value Remaining is reset to
// after a Coordinator-initiated rate-limit wait wakes up.
const Unknown int64 = -1

// Header is the minimal header-reading contract UpdateFromHeaders needs.
// http.Header satisfies it directly.
type Header interface {
	Get(name string) string
}

// BadHeaderFunc is invoked once per malformed integer header value so the
// caller can log it to the error stream; extraction continues regardless.
type BadHeaderFunc func(name, value string)

// Tracker holds the most recently observed rate-limit state. Each field is
// updated independently and atomically; a read of the triple is not atomic
// across fields by design — the contract is per-field atomicity, not
// composite atomicity.
type Tracker struct {
	limit     atomic.Int64
	remaining atomic.Int64
	resetAt   atomic.Int64 // unix milliseconds; 0 means "none"
}

// NewTracker returns a Tracker with limit and remaining unknown and no
// reset instant observed.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.limit.Store(Unknown)
	t.remaining.Store(Unknown)
	return t
}

// Limit returns the most recently observed limit, or Unknown.
func (t *Tracker) Limit() int64 { return t.limit.Load() }

// Remaining returns the most recently observed remaining count, or Unknown.
func (t *Tracker) Remaining() int64 { return t.remaining.Load() }

// ResetAt returns the most recently observed reset instant, or the zero
// time if none has been observed.
func (t *Tracker) ResetAt() time.Time {
	ms := t.resetAt.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Query is the single composite read the Coordinator relies on for
// admission decisions.
func (t *Tracker) Query() (remaining int64, resetAt time.Time) {
	return t.Remaining(), t.ResetAt()
}

// ResetRemainingUnknown marks remaining as unknown again. The Coordinator
// calls this after waking from a rate-limit sleep so the next
// response re-establishes ground truth instead of trusting a stale zero.
func (t *Tracker) ResetRemainingUnknown() {
	t.remaining.Store(Unknown)
}

// ForceExhausted marks remaining as zero. The ClearlyDefined client calls
// this on every 429 response regardless of what x-ratelimit-remaining itself
// says.
func (t *Tracker) ForceExhausted() {
	t.remaining.Store(0)
}

// SetResetAt updates the reset instant directly. The ClearlyDefined client
// calls this when a 429 response carries a Retry-After header.
func (t *Tracker) SetResetAt(at time.Time) {
	t.resetAt.Store(at.UnixMilli())
}

// UpdateFromHeaders applies the header-extraction rules:
//
//   - x-ratelimit-limit: <int> updates limit.
//   - x-ratelimit-remaining: <int> updates remaining; if the new value is
//     zero, x-ratelimit-reset: <int seconds since epoch> is read and, if
//     parseable, converted to milliseconds and stored as resetAt.
//   - Non-integer values are reported via badHeader and otherwise discarded
//     without changing state.
func (t *Tracker) UpdateFromHeaders(h Header, badHeader BadHeaderFunc) {
	if v := h.Get("x-ratelimit-limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.limit.Store(n)
		} else if badHeader != nil {
			badHeader("x-ratelimit-limit", v)
		}
	}

	v := h.Get("x-ratelimit-remaining")
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		if badHeader != nil {
			badHeader("x-ratelimit-remaining", v)
		}
		return
	}
	t.remaining.Store(n)
	if n != 0 {
		return
	}

	resetStr := h.Get("x-ratelimit-reset")
	if resetStr == "" {
		return
	}
	secs, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		if badHeader != nil {
			badHeader("x-ratelimit-reset", resetStr)
		}
		return
	}
	t.resetAt.Store(secs * 1000)
}

// ParseRetryAfterSeconds parses a Retry-After header value as whole
// seconds, used by the ClearlyDefined client on a 429 response.
func ParseRetryAfterSeconds(v string) (time.Duration, bool) {
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
