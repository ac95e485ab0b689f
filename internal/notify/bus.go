// Package notify is the process-wide change signal between the mascot editor
// and the surfaces that display the selection. Events carry no payload:
// receivers re-read the authoritative state themselves.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	applog "salvadanaio/internal/log"
)

// MascotsChangedPrefix prefixes every mascot selection change event.
const MascotsChangedPrefix = "category_mascots.changed:"

// MascotsChanged names the change event for one session subject.
func MascotsChanged(subject string) string {
	return MascotsChangedPrefix + subject
}

// SubjectOf returns the subject encoded in a mascot change event.
func SubjectOf(event string) (string, bool) {
	subject, ok := strings.CutPrefix(event, MascotsChangedPrefix)
	return subject, ok && subject != ""
}

// Handler is invoked once per published event.
type Handler func()

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process publish/subscribe registry. Create one at startup and
// pass it to every producer and consumer; it lives as long as the process.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	taps   []func(event string)
	remote map[uint64]func(event string)
	nextID atomic.Uint64
	logger *applog.Logger
}

func NewBus(logger *applog.Logger) *Bus {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Bus{
		subs:   make(map[string][]subscription),
		remote: make(map[uint64]func(event string)),
		logger: logger.WithComponent(applog.ComponentNotify),
	}
}

// Subscribe registers h for event. The returned func removes it; calling it
// more than once, or from inside a handler, is safe.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	id := b.nextID.Add(1)
	b.mu.Lock()
	b.subs[event] = append(b.subs[event], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, event)
			} else {
				b.subs[event] = next
			}
			return
		}
	}
}

// Tap registers fn to observe every event passed to Publish. Used by Relay.
func (b *Bus) Tap(fn func(event string)) {
	b.mu.Lock()
	b.taps = append(b.taps, fn)
	b.mu.Unlock()
}

// Publish notifies the subscribers of event and every tap.
func (b *Bus) Publish(event string) {
	b.mu.RLock()
	taps := b.taps
	b.mu.RUnlock()

	b.Deliver(event)
	for _, tap := range taps {
		tap(event)
	}
}

// OnRemote registers fn to observe events that arrived from another process.
// Observers run before the local subscribers of the event.
func (b *Bus) OnRemote(fn func(event string)) (remove func()) {
	id := b.nextID.Add(1)
	b.mu.Lock()
	b.remote[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.remote, id)
		b.mu.Unlock()
	}
}

// DeliverRemote hands a relayed event to the remote observers and then to
// local subscribers. It never reaches the taps.
func (b *Bus) DeliverRemote(event string) {
	b.mu.RLock()
	observers := make([]func(string), 0, len(b.remote))
	for _, fn := range b.remote {
		observers = append(observers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range observers {
		b.call(event, func() { fn(event) })
	}
	b.Deliver(event)
}

// Deliver notifies local subscribers only, without echoing the event to the
// taps.
func (b *Bus) Deliver(event string) {
	b.mu.RLock()
	subs := b.subs[event]
	b.mu.RUnlock()

	for _, s := range subs {
		b.call(event, s.handler)
	}
}

func (b *Bus) call(event string, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber panicked", applog.FieldEvent, event, applog.FieldError, fmt.Sprint(r))
		}
	}()
	h()
}

// SubscriberCount returns the number of handlers registered for event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}
