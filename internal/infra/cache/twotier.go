package cache

import (
	"context"
	"errors"
	"log/slog"
)

// TwoTier fronts a durable ContentHandler with the in-process Memory
// cache. Reads hit memory first and fall back to the backing store,
// populating memory with whatever the store knows — positive entries and
// negative markers alike. Writes go through to both tiers; a backing-store
// write failure is logged and does not fail the write, since the memory
// tier alone already satisfies the cache contract for the life of the
// process.
type TwoTier struct {
	memory  *Memory
	backing ContentHandler
	logger  *slog.Logger
}

// NewTwoTier composes memory over backing.
func NewTwoTier(backing ContentHandler, logger *slog.Logger) *TwoTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwoTier{memory: NewMemory(), backing: backing, logger: logger}
}

// GetContent implements ContentHandler.
func (t *TwoTier) GetContent(ctx context.Context, uri string) (string, error) {
	payload, err := t.memory.GetContent(ctx, uri)
	if err == nil || errors.Is(err, ErrAbsent) {
		return payload, err
	}

	payload, err = t.backing.GetContent(ctx, uri)
	switch {
	case err == nil:
		_ = t.memory.SaveContent(ctx, uri, payload)
		return payload, nil
	case errors.Is(err, ErrAbsent):
		_ = t.memory.SaveAbsent(ctx, uri)
		return "", ErrAbsent
	case errors.Is(err, ErrNotCached):
		return "", ErrNotCached
	default:
		t.logger.Error("content cache backing read failed",
			slog.String("uri", uri),
			slog.String("error", err.Error()))
		return "", ErrNotCached
	}
}

// SaveContent implements ContentHandler.
func (t *TwoTier) SaveContent(ctx context.Context, uri, payload string) error {
	_ = t.memory.SaveContent(ctx, uri, payload)
	if err := t.backing.SaveContent(ctx, uri, payload); err != nil {
		t.logger.Error("content cache backing write failed",
			slog.String("uri", uri),
			slog.String("error", err.Error()))
	}
	return nil
}

// SaveAbsent implements ContentHandler.
func (t *TwoTier) SaveAbsent(ctx context.Context, uri string) error {
	_ = t.memory.SaveAbsent(ctx, uri)
	if err := t.backing.SaveAbsent(ctx, uri); err != nil {
		t.logger.Error("content cache backing write failed",
			slog.String("uri", uri),
			slog.String("error", err.Error()))
	}
	return nil
}
