package enrichment

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_CompleteExactlyOnce(t *testing.T) {
	f := NewFuture()
	errBoom := errors.New("boom")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				f.Complete(nil)
				return
			}
			f.Complete(errBoom)
		}(i)
	}
	wg.Wait()

	require.True(t, f.IsDone())
	// Whichever goroutine won, Wait must observe a single, stable result.
	err1 := f.Wait()
	err2 := f.Wait()
	assert.Equal(t, err1, err2)
}

func TestFuture_OnCompleteRunsAfterResolution(t *testing.T) {
	f := NewFuture()
	var fired atomic.Bool

	f.OnComplete(func() { fired.Store(true) })
	assert.False(t, fired.Load())

	f.Complete(nil)

	assert.True(t, fired.Load())
}

func TestFuture_OnCompleteRunsImmediatelyIfAlreadyResolved(t *testing.T) {
	f := NewFuture()
	f.Complete(nil)

	var fired atomic.Bool
	f.OnComplete(func() { fired.Store(true) })

	assert.True(t, fired.Load())
}

func TestFuture_WaitBlocksUntilComplete(t *testing.T) {
	f := NewFuture()
	done := make(chan error, 1)

	go func() {
		done <- f.Wait()
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Complete was called")
	default:
	}

	f.Complete(nil)
	require.NoError(t, <-done)
}
