package enrichment

import "errors"

// Kind classifies the outcome of an enrichment attempt. These are not Go
// error types but classification values used for logging, metrics, and the
// rare cases where a terminal failure is surfaced on a Request's Future.
//
// Kind naming convention: UPPER_SNAKE_CASE without a prefix.
//   - ✅ RESOURCE_ABSENT (correct)
//   - ❌ ErrResourceAbsent (incorrect - use UPPER_SNAKE_CASE)
type Kind string

const (
	// KindCacheMiss is a local-only signal from the ContentHandler; never user-visible.
	KindCacheMiss Kind = "CACHE_MISS"
	// KindResourceAbsent is a 404 from the server or a negative cache entry;
	// reported as success to the caller with no annotation.
	KindResourceAbsent Kind = "RESOURCE_ABSENT"
	// KindTransientRateLimited is a 429; never surfaced to callers, handled by
	// coordinated retry.
	KindTransientRateLimited Kind = "TRANSIENT_RATE_LIMITED"
	// KindTransientTransport is a network I/O error or a non-success,
	// non-404 status; never surfaced, retried indefinitely unless bounded.
	KindTransientTransport Kind = "TRANSIENT_TRANSPORT"
	// KindBadPayload is a JSON parse error or schema mismatch after a 200
	// response; logged and swallowed, success is still reported.
	KindBadPayload Kind = "BAD_PAYLOAD"
	// KindInterrupted is a Coordinator or WaitForCompletion interruption
	// caused by shutdown.
	KindInterrupted Kind = "INTERRUPTED"
	// KindMaxAttemptsExceeded is an opt-in terminal kind produced only when
	// an operator configures a finite MaxAttempts cutoff; with the default
	// unbounded configuration it is never produced.
	KindMaxAttemptsExceeded Kind = "MAX_ATTEMPTS_EXCEEDED"
)

var allKinds = map[Kind]struct{}{
	KindCacheMiss:            {},
	KindResourceAbsent:       {},
	KindTransientRateLimited: {},
	KindTransientTransport:   {},
	KindBadPayload:           {},
	KindInterrupted:          {},
	KindMaxAttemptsExceeded:  {},
}

// IsValidKind reports whether kind is one of the registered Kind values.
func IsValidKind(kind Kind) bool {
	_, ok := allKinds[kind]
	return ok
}

// AllKinds returns every registered Kind, mainly useful so tests can assert
// every kind has, where applicable, a corresponding code path.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, len(allKinds))
	for kind := range allKinds {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Error pairs a terminal Kind with a human-readable message and an optional
// cause. Only KindInterrupted and KindMaxAttemptsExceeded are ever actually
// completed onto a Future; the other kinds classify internally-handled
// outcomes and are used for logging rather than error construction.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is implements errors.Is matching by comparing Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError creates an Error with the given kind and message. Panics if kind
// is not registered: an unregistered code is a programming error, not an
// input to accept silently.
func NewError(kind Kind, message string) *Error {
	if !IsValidKind(kind) {
		panic("enrichment: invalid error kind: " + string(kind))
	}
	return &Error{Kind: kind, Message: message}
}

// NewErrorWithCause creates an Error wrapping an underlying cause.
func NewErrorWithCause(kind Kind, message string, cause error) *Error {
	if !IsValidKind(kind) {
		panic("enrichment: invalid error kind: " + string(kind))
	}
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the Kind carried by err, if any, and whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
