package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"okinoko_governor/contract"
)

const (
	SubscriberQueueSize = 64
	AsyncQueueSize      = 1000
)

// Type is the routing key of the bus: "governor." plus the contract event code.
type Type string

// TypeAll subscribers receive every event.
const TypeAll Type = "*"

// TypeOf maps a contract event code to its bus type.
func TypeOf(code string) Type {
	return Type("governor." + code)
}

type SubscriberID int

type HandlerFunc func(Event)

// Event is a committed contract notification travelling through the bus.
type Event struct {
	Type      Type
	Timestamp time.Time
	Data      contract.Event
}

func NewEvent(evt contract.Event) Event {
	return Event{
		Type:      TypeOf(evt.Code),
		Timestamp: time.Now(),
		Data:      evt,
	}
}

// ErrSubscriberFull is returned by Deliver when a channel subscriber is not
// keeping up. The event is dropped for that subscriber only.
var ErrSubscriberFull = errors.New("subscriber queue full")

// Subscriber is the delivery abstraction behind channel and callback
// subscribers. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// Bus fans committed contract events out to subscribers. A single async
// worker drains the queue so subscribers see events in commit order.
type Bus struct {
	subscribers map[Type]map[SubscriberID]Subscriber
	lastSubID   SubscriberID
	mu          sync.RWMutex
	logger      *slog.Logger
	metrics     *busMetrics

	queue   chan Event
	wg      sync.WaitGroup
	stopCh  chan struct{}
	stopped bool
	stopMu  sync.RWMutex
}

type busMetrics struct {
	eventsTotal    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

func NewBus(promRegistry prometheus.Registerer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		subscribers: make(map[Type]map[SubscriberID]Subscriber),
		logger:      logger,
		queue:       make(chan Event, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		b.initMetrics(promRegistry)
	}
	b.wg.Add(1)
	go b.worker()
	return b
}

func (b *Bus) initMetrics(promRegistry prometheus.Registerer) {
	b.metrics = &busMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governor_bus_events_total",
			Help: "events published on the bus by type",
		}, []string{"type"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "governor_bus_subscribers",
			Help: "current bus subscribers by type",
		}, []string{"type"}),
		deliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governor_bus_delivery_errors_total",
			Help: "failed or dropped deliveries by type and reason",
		}, []string{"type", "reason"}),
	}
	promRegistry.MustRegister(b.metrics.eventsTotal, b.metrics.subscribers, b.metrics.deliveryErrors)
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			// drain what was accepted before Stop
			for {
				select {
				case evt := <-b.queue:
					b.Publish(evt)
				default:
					return
				}
			}
		case evt := <-b.queue:
			b.Publish(evt)
		}
	}
}

// channelSubscriber hands events to a buffered channel without ever blocking
// the publisher.
type channelSubscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	return &channelSubscriber{ch: make(chan Event, buffer)}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- evt:
		return nil
	default:
		return ErrSubscriberFull
	}
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Subscribe returns a channel receiving events of the given type (or all
// events for TypeAll). The channel is closed on Unsubscribe or Stop.
func (b *Bus) Subscribe(eventType Type) (SubscriberID, <-chan Event) {
	sub := newChannelSubscriber(SubscriberQueueSize)
	id := b.RegisterSubscriber(eventType, sub)
	return id, sub.ch
}

// SubscribeFunc runs handler for every matching event on its own goroutine.
func (b *Bus) SubscribeFunc(eventType Type, handler HandlerFunc) SubscriberID {
	id, ch := b.Subscribe(eventType)
	go func() {
		for evt := range ch {
			handler(evt)
		}
	}()
	return id
}

// RegisterSubscriber adds a custom Subscriber, e.g. the audit indexer.
func (b *Bus) RegisterSubscriber(eventType Type, sub Subscriber) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSubID++
	id := b.lastSubID
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberID]Subscriber)
	}
	b.subscribers[eventType][id] = sub
	if b.metrics != nil {
		b.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return id
}

func (b *Bus) Unsubscribe(eventType Type, id SubscriberID) {
	b.mu.Lock()
	var sub Subscriber
	if subs, ok := b.subscribers[eventType]; ok {
		if s, ok := subs[id]; ok {
			sub = s
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, eventType)
			}
			if b.metrics != nil {
				b.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
			}
		}
	}
	b.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

type subEntry struct {
	eventType Type
	id        SubscriberID
	sub       Subscriber
}

// Publish delivers evt synchronously to the subscribers of its type and to
// the TypeAll subscribers. A subscriber that fails for any reason other than
// a full queue is unregistered.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	targets := make([]subEntry, 0)
	for _, t := range []Type{evt.Type, TypeAll} {
		for id, sub := range b.subscribers[t] {
			targets = append(targets, subEntry{eventType: t, id: id, sub: sub})
		}
	}
	b.mu.RUnlock()

	for _, target := range targets {
		err := deliver(target.sub, evt)
		if err == nil {
			continue
		}
		reason := "failed"
		if errors.Is(err, ErrSubscriberFull) {
			reason = "dropped"
		} else {
			b.Unsubscribe(target.eventType, target.id)
		}
		if b.metrics != nil {
			b.metrics.deliveryErrors.WithLabelValues(string(evt.Type), reason).Inc()
		}
		b.logger.Debug(
			"event delivery error",
			"component", "event",
			"type", evt.Type,
			"subscriber", target.id,
			"error", err,
		)
	}
	if b.metrics != nil {
		b.metrics.eventsTotal.WithLabelValues(string(evt.Type)).Inc()
	}
}

func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues evt for the worker and never blocks. It returns false
// if the bus is stopped or the queue is full.
func (b *Bus) PublishAsync(evt Event) bool {
	b.stopMu.RLock()
	defer b.stopMu.RUnlock()
	if b.stopped {
		return false
	}
	select {
	case b.queue <- evt:
		return true
	default:
		b.logger.Warn("event queue full, dropping event", "component", "event", "type", evt.Type)
		if b.metrics != nil {
			b.metrics.deliveryErrors.WithLabelValues(string(evt.Type), "queue_full").Inc()
		}
		return false
	}
}

// Sink adapts the bus to the engine: every committed contract event is
// queued for async delivery so slow subscribers never hold the engine lock.
func (b *Bus) Sink() contract.EventSink {
	return contract.EventSinkFunc(func(evt contract.Event) {
		b.PublishAsync(NewEvent(evt))
	})
}

// Stop drains the queue, stops the worker and closes every subscriber.
// The bus cannot be used afterwards.
func (b *Bus) Stop() {
	b.stopMu.Lock()
	if b.stopped {
		b.stopMu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	b.stopMu.Unlock()
	b.wg.Wait()

	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[Type]map[SubscriberID]Subscriber)
	b.mu.Unlock()
	for _, byID := range subs {
		for _, sub := range byID {
			sub.Close()
		}
	}
	if b.metrics != nil {
		b.metrics.subscribers.Reset()
	}
}
