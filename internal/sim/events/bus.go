// Package events implements the in-process publish/subscribe bus world
// systems use to announce changes. Handlers are keyed by event-type string
// and run in registration order; a failing handler is logged and skipped so
// it can never starve later handlers or the emitter.
package events

import (
	"context"
	"log"
	"sync"
	"time"

	"embervale.ai/internal/protocol"
)

// Event is one recorded occurrence: type, timestamp and payload.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      protocol.Event `json:"data"`
}

// Handler processes an event synchronously during Emit.
type Handler func(ev Event) error

// AsyncHandler runs concurrently during EmitAsync; the emit call joins all of
// them before returning.
type AsyncHandler func(ctx context.Context, ev Event) error

const defaultHistoryCap = 1000

type subscriber[H any] struct {
	id int
	fn H
}

// Bus is an explicitly constructed instance, passed by reference to anything
// that publishes. Tests instantiate isolated buses per scenario.
type Bus struct {
	log *log.Logger

	mu         sync.Mutex
	nextID     int
	handlers   map[string][]subscriber[Handler]
	asyncs     map[string][]subscriber[AsyncHandler]
	history    []Event
	historyCap int
}

func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		log:        logger,
		handlers:   make(map[string][]subscriber[Handler]),
		asyncs:     make(map[string][]subscriber[AsyncHandler]),
		historyCap: defaultHistoryCap,
	}
}

// SetHistoryCap overrides the bounded history size. Must be called before
// the first emit.
func (b *Bus) SetHistoryCap(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	b.historyCap = n
	b.mu.Unlock()
}

// Subscribe registers a synchronous handler for an event type. The returned
// cancel func removes it.
func (b *Bus) Subscribe(eventType string, h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscriber[Handler]{id: id, fn: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = removeSub(b.handlers[eventType], id)
	}
}

// SubscribeAsync registers an asynchronous handler for an event type.
func (b *Bus) SubscribeAsync(eventType string, h AsyncHandler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.asyncs[eventType] = append(b.asyncs[eventType], subscriber[AsyncHandler]{id: id, fn: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.asyncs[eventType] = removeSub(b.asyncs[eventType], id)
	}
}

func removeSub[H any](subs []subscriber[H], id int) []subscriber[H] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

func (b *Bus) record(eventType string, data protocol.Event) (Event, []subscriber[Handler]) {
	if data == nil {
		data = protocol.Event{}
	}
	ev := Event{
		ID:        protocol.NewID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
	syncs := append([]subscriber[Handler](nil), b.handlers[eventType]...)
	b.mu.Unlock()
	return ev, syncs
}

func (b *Bus) runSync(ev Event, syncs []subscriber[Handler]) {
	for _, s := range syncs {
		b.invokeSync(ev, s)
	}
}

func (b *Bus) invokeSync(ev Event, s subscriber[Handler]) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Printf("event handler panic: type=%s id=%s: %v", ev.Type, ev.ID, r)
		}
	}()
	if err := s.fn(ev); err != nil && b.log != nil {
		b.log.Printf("event handler error: type=%s id=%s err=%v", ev.Type, ev.ID, err)
	}
}

// Emit records the event, then invokes every synchronous handler for its type
// in registration order. Handler failures and panics are isolated; they never
// reach the emitter or later handlers.
func (b *Bus) Emit(eventType string, data protocol.Event) Event {
	ev, syncs := b.record(eventType, data)
	b.runSync(ev, syncs)
	return ev
}

// EmitAsync records the event, runs synchronous handlers first, then launches
// every asynchronous handler concurrently and waits for all of them. Failures
// are collected per handler, never raised to the caller.
func (b *Bus) EmitAsync(ctx context.Context, eventType string, data protocol.Event) Event {
	ev, syncs := b.record(eventType, data)
	b.runSync(ev, syncs)

	b.mu.Lock()
	asyncs := append([]subscriber[AsyncHandler](nil), b.asyncs[eventType]...)
	b.mu.Unlock()

	if len(asyncs) == 0 {
		return ev
	}
	var wg sync.WaitGroup
	for _, s := range asyncs {
		wg.Add(1)
		go func(s subscriber[AsyncHandler]) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil && b.log != nil {
					b.log.Printf("async event handler panic: type=%s id=%s: %v", ev.Type, ev.ID, r)
				}
			}()
			if err := s.fn(ctx, ev); err != nil && b.log != nil {
				b.log.Printf("async event handler error: type=%s id=%s err=%v", ev.Type, ev.ID, err)
			}
		}(s)
	}
	wg.Wait()
	return ev
}

// History returns the most recent limit records, most-recent-last, optionally
// filtered by event type (empty string = all).
func (b *Bus) History(eventType string, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.history
	if eventType != "" {
		src = nil
		for _, ev := range b.history {
			if ev.Type == eventType {
				src = append(src, ev)
			}
		}
	}
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	return append([]Event(nil), src...)
}

func (b *Bus) ClearHistory() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

// ListenerCount describes registered handlers for one event type.
type ListenerCount struct {
	Sync  int `json:"sync"`
	Async int `json:"async"`
}

// ListenerCounts reports handler counts per event type, for debugging.
func (b *Bus) ListenerCounts() map[string]ListenerCount {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[string]ListenerCount)
	for et, subs := range b.handlers {
		lc := counts[et]
		lc.Sync = len(subs)
		counts[et] = lc
	}
	for et, subs := range b.asyncs {
		lc := counts[et]
		lc.Async = len(subs)
		counts[et] = lc
	}
	return counts
}

// HistoryLen reports the number of retained records.
func (b *Bus) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}
