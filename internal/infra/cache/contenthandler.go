// Package cache provides the ContentHandler: a URI-keyed content cache
// with positive entries, negative (confirmed-absent) markers, and a
// persistent backing store. The enrichment manager consults it before
// issuing any network request and writes every fetched outcome back into
// it, so a populated cache suppresses entire HTTP round trips — including
// for resources the upstream has confirmed do not exist.
package cache

import (
	"context"
	"errors"
)

// ErrNotCached reports that a URI has never been observed: neither a
// payload nor a negative marker exists. It is a local-only signal; callers
// fall through to the network on it.
var ErrNotCached = errors.New("cache: uri not cached")

// ErrAbsent reports a negative cache entry: the upstream has previously
// confirmed the resource does not exist. Callers must not issue a network
// request for the URI while this entry stands.
var ErrAbsent = errors.New("cache: uri confirmed absent")

// ContentHandler is the URI-keyed cache contract the enrichment manager
// consumes.
//
// GetContent returns the cached payload on a positive hit, ErrAbsent on a
// negative entry, and ErrNotCached when the URI has never been observed.
// Any other error is an infrastructure failure (for example a database
// outage) and is treated by callers the same as a miss.
type ContentHandler interface {
	GetContent(ctx context.Context, uri string) (string, error)

	// SaveContent stores a positive entry, replacing any prior entry for
	// the URI, negative markers included.
	SaveContent(ctx context.Context, uri, payload string) error

	// SaveAbsent stores a negative marker, replacing any prior entry.
	SaveAbsent(ctx context.Context, uri string) error
}
