package events

import (
	"sync"

	"github.com/mselser95/bangr-engine/pkg/types"
)

// backlog is the unbounded queue behind a durable subscription. Publishers
// append under a short lock; pump forwards to the subscriber channel and may
// block there without holding up the bus.
type backlog struct {
	name string
	out  chan types.Event

	mu    sync.Mutex
	queue []types.Event
	done  bool
	wake  chan struct{}
}

func newBacklog(name string, out chan types.Event) *backlog {
	return &backlog{
		name: name,
		out:  out,
		wake: make(chan struct{}, 1),
	}
}

func (q *backlog) push(ev types.Event) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.queue = append(q.queue, ev)
	BacklogSize.WithLabelValues(q.name).Inc()
	q.mu.Unlock()
	q.signal()
}

// finish stops accepting events. Queued events are still delivered.
func (q *backlog) finish() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.signal()
}

func (q *backlog) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *backlog) pump() {
	defer close(q.out)

	for {
		q.mu.Lock()
		batch := q.queue
		q.queue = nil
		done := q.done
		q.mu.Unlock()

		for i := range batch {
			q.out <- batch[i]
			BacklogSize.WithLabelValues(q.name).Dec()
		}

		if len(batch) == 0 {
			if done {
				return
			}
			<-q.wake
		}
	}
}
