package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "salvadanaio/internal/log"
)

// Message is a change event as it crosses process boundaries.
type Message struct {
	Event     string    `json:"event"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// Transport carries Messages between processes.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	// Receive blocks, calling fn for every incoming message, until ctx is
	// cancelled or the transport fails.
	Receive(ctx context.Context, fn func(Message)) error
	Close() error
}

const (
	defaultRelayBuffer = 256
	drainTimeout       = 2 * time.Second
)

// Relay forwards local events matching Prefix to a Transport and delivers
// remote ones to the local bus. Messages that carry this relay's own origin
// are ignored.
type Relay struct {
	bus       *Bus
	transport Transport
	prefix    string
	origin    string
	logger    *applog.Logger

	out     chan Message
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type RelayOption func(*Relay)

// WithPrefix limits forwarding to events starting with prefix.
func WithPrefix(prefix string) RelayOption {
	return func(r *Relay) { r.prefix = prefix }
}

func WithBuffer(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.out = make(chan Message, n)
		}
	}
}

func NewRelay(bus *Bus, transport Transport, logger *applog.Logger, opts ...RelayOption) *Relay {
	if logger == nil {
		logger = applog.Discard()
	}
	r := &Relay{
		bus:       bus,
		transport: transport,
		prefix:    MascotsChangedPrefix,
		origin:    uuid.NewString(),
		logger:    logger.WithComponent(applog.ComponentNotify),
		out:       make(chan Message, defaultRelayBuffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin identifies this process on the transport.
func (r *Relay) Origin() string { return r.origin }

// Start hooks the relay into the bus and starts the sender and receiver
// goroutines. It returns immediately; Stop shuts both down.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.bus.Tap(r.enqueue(ctx))

	r.wg.Add(2)
	go r.sendLoop(ctx)
	go r.receiveLoop(ctx)
	r.logger.Info("Relay started", "origin", r.origin, "prefix", r.prefix)
}

func (r *Relay) enqueue(ctx context.Context) func(string) {
	return func(event string) {
		if !strings.HasPrefix(event, r.prefix) || ctx.Err() != nil {
			return
		}
		msg := Message{Event: event, Origin: r.origin, Timestamp: time.Now().UTC()}
		select {
		case r.out <- msg:
		default:
			r.logger.Warn("Relay buffer full, dropping event", applog.FieldEvent, event)
		}
	}
}

func (r *Relay) sendLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case msg := <-r.out:
			if err := r.transport.Send(ctx, msg); err != nil && ctx.Err() == nil {
				r.logger.Error("Failed to forward event",
					applog.FieldEvent, msg.Event,
					applog.FieldError, err)
			}
		}
	}
}

// drain forwards events queued before Stop so a short-lived process does not
// lose its last change.
func (r *Relay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case msg := <-r.out:
			if err := r.transport.Send(ctx, msg); err != nil {
				r.logger.Warn("Dropping queued event on stop",
					applog.FieldEvent, msg.Event,
					applog.FieldError, err)
			}
		default:
			return
		}
	}
}

func (r *Relay) receiveLoop(ctx context.Context) {
	defer r.wg.Done()
	err := r.transport.Receive(ctx, r.handleIncoming)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		r.logger.Error("Relay receive stopped", applog.FieldError, err)
	}
}

func (r *Relay) handleIncoming(msg Message) {
	if msg.Origin == r.origin {
		return
	}
	if !strings.HasPrefix(msg.Event, r.prefix) {
		return
	}
	r.logger.Debug("Delivering remote event", applog.FieldEvent, msg.Event, "origin", msg.Origin)
	r.bus.DeliverRemote(msg.Event)
}

// Stop cancels the relay goroutines, waits for them and closes the transport.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return r.transport.Close()
	}
	cancel := r.cancel
	r.started = false
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	return r.transport.Close()
}
