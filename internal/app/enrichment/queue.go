package enrichment

import (
	"sync"
	"time"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
)

// Queue is the unbounded thread-safe FIFO of pending requests. Initial
// submissions keep their order; a requeued request is appended at the tail
// and loses its original position. The coordinator is the only consumer.
type Queue struct {
	mu    sync.Mutex
	items []*domain.Request
	wake  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Offer appends req at the tail. It never blocks.
func (q *Queue) Offer(req *domain.Request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Poll removes and returns the head, waiting up to timeout for one to
// arrive. ok is false when the timeout elapses with the queue still empty.
func (q *Queue) Poll(timeout time.Duration) (req *domain.Request, ok bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req = q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// A wake signal coalesces offers; re-arm it for the items
			// still queued so the next Poll doesn't sleep past them.
			if remaining > 0 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return req, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-deadline.C:
			return nil, false
		}
	}
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue is empty.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Drain removes and returns every queued request. Used during shutdown to
// resolve still-pending futures.
func (q *Queue) Drain() []*domain.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.items
	q.items = nil
	return drained
}
