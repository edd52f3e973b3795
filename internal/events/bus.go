// Package events fans committed engine events out to in-process subscribers.
package events

import (
	"fmt"
	"sync"

	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscription channel capacity.
const DefaultBufferSize = 1024

// Filter selects which events a subscription receives. Nil accepts all.
type Filter func(ev *types.Event) bool

// ForMarket accepts only events of one market.
func ForMarket(marketID uint64) Filter {
	return func(ev *types.Event) bool { return ev.MarketID == marketID }
}

// OfTypes accepts only the given event types.
func OfTypes(eventTypes ...types.EventType) Filter {
	allowed := make(map[types.EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		allowed[t] = true
	}
	return func(ev *types.Event) bool { return allowed[ev.Type] }
}

// And matches events accepted by every non-nil filter.
func And(filters ...Filter) Filter {
	return func(ev *types.Event) bool {
		for _, f := range filters {
			if f != nil && !f(ev) {
				return false
			}
		}
		return true
	}
}

// Bus delivers events to subscribers without ever blocking the publisher.
// A regular subscriber whose buffer is full loses the event; a durable one
// queues it until the consumer catches up.
type Bus struct {
	logger     *zap.Logger
	bufferSize int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// Config holds bus configuration.
type Config struct {
	Logger     *zap.Logger
	BufferSize int
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id     uint64
	name   string
	filter Filter
	ch     chan types.Event
	bus    *Bus
	once   sync.Once

	// durable subscriptions only
	backlog *backlog
}

// New creates an event bus.
func New(cfg *Config) (*Bus, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{
		logger:     cfg.Logger,
		bufferSize: size,
		subs:       make(map[uint64]*Subscription),
	}, nil
}

// Publish delivers events in order to every matching subscriber.
func (b *Bus) Publish(events []types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for i := range events {
		ev := &events[i]
		EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()

		for _, sub := range b.subs {
			if sub.filter != nil && !sub.filter(ev) {
				continue
			}
			if sub.backlog != nil {
				sub.backlog.push(*ev)
				continue
			}
			select {
			case sub.ch <- *ev:
			default:
				EventsDroppedTotal.WithLabelValues(sub.name).Inc()
				b.logger.Warn("subscriber-buffer-full",
					zap.String("subscriber", sub.name),
					zap.Uint64("sequence", ev.Sequence),
					zap.String("event-type", string(ev.Type)))
			}
		}
	}
}

// Subscribe registers a consumer. The name labels drop metrics and should
// come from a fixed set.
func (b *Bus) Subscribe(name string, filter Filter) *Subscription {
	return b.subscribe(name, filter, false)
}

// SubscribeDurable registers a consumer that never loses events. Events the
// consumer has not read yet are queued in memory without bound, in publish
// order, and are still delivered after the subscription or the bus closes.
func (b *Bus) SubscribeDurable(name string, filter Filter) *Subscription {
	return b.subscribe(name, filter, true)
}

func (b *Bus) subscribe(name string, filter Filter, durable bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		name:   name,
		filter: filter,
		ch:     make(chan types.Event, b.bufferSize),
		bus:    b,
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	if durable {
		sub.backlog = newBacklog(name, sub.ch)
		go sub.backlog.pump()
	}
	b.subs[sub.id] = sub
	ActiveSubscriptions.Inc()

	b.logger.Debug("subscriber-added",
		zap.String("subscriber", name),
		zap.Uint64("subscription-id", sub.id),
		zap.Bool("durable", durable))
	return sub
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.end()
		ActiveSubscriptions.Dec()
	}
	b.logger.Info("event-bus-closed")
}

// Name returns the subscriber name used in metrics.
func (s *Subscription) Name() string {
	return s.name
}

// Events returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan types.Event {
	return s.ch
}

// Close removes the subscription from the bus.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	s.end()
	ActiveSubscriptions.Dec()
}

// end stops delivery. A durable subscription closes its channel once the
// backlog is drained.
func (s *Subscription) end() {
	s.once.Do(func() {
		if s.backlog != nil {
			s.backlog.finish()
			return
		}
		close(s.ch)
	})
}
