package enrichment

import "sync/atomic"

// Request is an immutable (component, uri) pair paired with a completion
// Future. Requeueing re-appends the same Request; it never produces a new
// Future, and at any instant a Request is either queued, being processed
// by a worker, or complete.
type Request struct {
	Component Component
	URI       string
	Future    *Future

	attempts atomic.Int64
}

// NewRequest constructs a Request with a fresh, unresolved Future.
func NewRequest(component Component, uri string) *Request {
	return &Request{
		Component: component,
		URI:       uri,
		Future:    NewFuture(),
	}
}

// Attempts returns how many times this Request has been handed to a Worker.
func (r *Request) Attempts() int64 {
	return r.attempts.Load()
}

// RecordAttempt increments the attempt counter, called by the Worker before
// it issues the HTTP GET, and returns the new count.
func (r *Request) RecordAttempt() int64 {
	return r.attempts.Add(1)
}
