package telemetry

import (
	"context"
	"errors"
	"sync"
)

var errQueueWatched = errors.New("queue already watched")

// Queue is an unbounded LocationSource fed by Push. Fixes pushed faster than
// the processor consumes them are buffered, never dropped.
type Queue struct {
	mu      sync.Mutex
	pending []GeoFix
	signal  chan struct{}
	closed  bool
	watched bool
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push enqueues fix. It reports false once the queue is closed.
func (q *Queue) Push(fix GeoFix) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fix)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Len reports the number of fixes waiting to be delivered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the queue. Fixes already pushed are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) Watch(ctx context.Context) (<-chan GeoFix, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.watched {
		return nil, errQueueWatched
	}
	q.watched = true

	out := make(chan GeoFix)
	go q.drain(ctx, out)
	return out, nil
}

func (q *Queue) drain(ctx context.Context, out chan<- GeoFix) {
	defer close(out)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-q.signal:
			}
			continue
		}
		fix := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case out <- fix:
		}
	}
}
