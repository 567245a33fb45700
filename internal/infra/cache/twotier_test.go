package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHandler wraps Memory and counts reads so tests can observe which
// tier served a request.
type countingHandler struct {
	*Memory
	reads int
}

func (c *countingHandler) GetContent(ctx context.Context, uri string) (string, error) {
	c.reads++
	return c.Memory.GetContent(ctx, uri)
}

// failingHandler fails every operation.
type failingHandler struct{}

func (failingHandler) GetContent(context.Context, string) (string, error) {
	return "", errors.New("backing store down")
}
func (failingHandler) SaveContent(context.Context, string, string) error {
	return errors.New("backing store down")
}
func (failingHandler) SaveAbsent(context.Context, string) error {
	return errors.New("backing store down")
}

func TestTwoTier_ReadThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("backing hit populates the memory tier", func(t *testing.T) {
		backing := &countingHandler{Memory: NewMemory()}
		require.NoError(t, backing.Memory.SaveContent(ctx, "https://api.example/a", "payload"))
		tt := NewTwoTier(backing, nil)

		payload, err := tt.GetContent(ctx, "https://api.example/a")
		require.NoError(t, err)
		assert.Equal(t, "payload", payload)
		assert.Equal(t, 1, backing.reads)

		// Second read is served from memory.
		payload, err = tt.GetContent(ctx, "https://api.example/a")
		require.NoError(t, err)
		assert.Equal(t, "payload", payload)
		assert.Equal(t, 1, backing.reads)
	})

	t.Run("backing negative marker populates the memory tier", func(t *testing.T) {
		backing := &countingHandler{Memory: NewMemory()}
		require.NoError(t, backing.Memory.SaveAbsent(ctx, "https://api.example/missing"))
		tt := NewTwoTier(backing, nil)

		_, err := tt.GetContent(ctx, "https://api.example/missing")
		assert.ErrorIs(t, err, ErrAbsent)

		_, err = tt.GetContent(ctx, "https://api.example/missing")
		assert.ErrorIs(t, err, ErrAbsent)
		assert.Equal(t, 1, backing.reads)
	})

	t.Run("miss in both tiers reports not cached", func(t *testing.T) {
		tt := NewTwoTier(&countingHandler{Memory: NewMemory()}, nil)

		_, err := tt.GetContent(ctx, "https://api.example/unknown")

		assert.ErrorIs(t, err, ErrNotCached)
	})

	t.Run("backing failure degrades to a miss", func(t *testing.T) {
		tt := NewTwoTier(failingHandler{}, nil)

		_, err := tt.GetContent(ctx, "https://api.example/x")

		assert.ErrorIs(t, err, ErrNotCached)
	})
}

func TestTwoTier_WriteThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("writes land in both tiers", func(t *testing.T) {
		backing := &countingHandler{Memory: NewMemory()}
		tt := NewTwoTier(backing, nil)

		require.NoError(t, tt.SaveContent(ctx, "https://api.example/a", "payload"))

		got, err := backing.Memory.GetContent(ctx, "https://api.example/a")
		require.NoError(t, err)
		assert.Equal(t, "payload", got)

		// Memory tier serves without touching the backing store.
		backing.reads = 0
		_, err = tt.GetContent(ctx, "https://api.example/a")
		require.NoError(t, err)
		assert.Zero(t, backing.reads)
	})

	t.Run("backing write failure does not fail the write", func(t *testing.T) {
		tt := NewTwoTier(failingHandler{}, nil)

		require.NoError(t, tt.SaveContent(ctx, "https://api.example/a", "payload"))
		require.NoError(t, tt.SaveAbsent(ctx, "https://api.example/b"))

		payload, err := tt.GetContent(ctx, "https://api.example/a")
		require.NoError(t, err)
		assert.Equal(t, "payload", payload)

		_, err = tt.GetContent(ctx, "https://api.example/b")
		assert.ErrorIs(t, err, ErrAbsent)
	})
}
