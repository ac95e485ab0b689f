package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// hub is an in-memory fan-out shared by fakeTransports.
type hub struct {
	mu    sync.Mutex
	peers []*fakeTransport
}

type fakeTransport struct {
	hub    *hub
	in     chan Message
	mu     sync.Mutex
	sent   []Message
	closed bool
	fail   error
	gate   chan struct{}
}

func (h *hub) join() *fakeTransport {
	t := &fakeTransport{hub: h, in: make(chan Message, 16)}
	h.mu.Lock()
	h.peers = append(h.peers, t)
	h.mu.Unlock()
	return t
}

func (t *fakeTransport) Send(_ context.Context, msg Message) error {
	if t.gate != nil {
		<-t.gate
	}
	t.mu.Lock()
	t.sent = append(t.sent, msg)
	fail := t.fail
	t.mu.Unlock()
	if fail != nil {
		return fail
	}
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	for _, p := range t.hub.peers {
		p.in <- msg
	}
	return nil
}

func (t *fakeTransport) Receive(ctx context.Context, fn func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-t.in:
			fn(msg)
		}
	}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func TestRelayDeliversAcrossBuses(t *testing.T) {
	h := &hub{}
	busA, busB := NewBus(nil), NewBus(nil)
	relayA := NewRelay(busA, h.join(), nil)
	relayB := NewRelay(busB, h.join(), nil)
	ctx := context.Background()
	relayA.Start(ctx)
	relayB.Start(ctx)
	defer func() {
		require.NoError(t, relayA.Stop())
		require.NoError(t, relayB.Stop())
	}()

	var mu sync.Mutex
	var localA, remoteB int
	busA.Subscribe(MascotsChanged("u1"), func() { mu.Lock(); localA++; mu.Unlock() })
	busB.Subscribe(MascotsChanged("u1"), func() { mu.Lock(); remoteB++; mu.Unlock() })

	busA.Publish(MascotsChanged("u1"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return remoteB == 1
	}, time.Second, 5*time.Millisecond)

	// Give a potential echo time to arrive before asserting it did not.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, localA)
	assert.Equal(t, 1, remoteB)
}

func TestRelayNotifiesRemoteObservers(t *testing.T) {
	h := &hub{}
	busA, busB := NewBus(nil), NewBus(nil)
	relayA := NewRelay(busA, h.join(), nil)
	relayB := NewRelay(busB, h.join(), nil)
	ctx := context.Background()
	relayA.Start(ctx)
	relayB.Start(ctx)
	defer func() {
		require.NoError(t, relayA.Stop())
		require.NoError(t, relayB.Stop())
	}()

	var mu sync.Mutex
	var remoteA, remoteB []string
	busA.OnRemote(func(e string) { mu.Lock(); remoteA = append(remoteA, e); mu.Unlock() })
	busB.OnRemote(func(e string) { mu.Lock(); remoteB = append(remoteB, e); mu.Unlock() })

	busA.Publish(MascotsChanged("user:u1"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(remoteB) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, MascotsChanged("user:u1"), remoteB[0])
	assert.Empty(t, remoteA)
}

func TestRelayIgnoresUnprefixedEvents(t *testing.T) {
	h := &hub{}
	tr := h.join()
	bus := NewBus(nil)
	relay := NewRelay(bus, tr, nil)
	relay.Start(context.Background())

	bus.Publish("unrelated")
	bus.Publish(MascotsChanged("u1"))

	require.Eventually(t, func() bool { return tr.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())
	assert.True(t, tr.closed)
}

func TestRelayDropsOwnOrigin(t *testing.T) {
	bus := NewBus(nil)
	relay := NewRelay(bus, (&hub{}).join(), nil)
	var hits int
	bus.Subscribe(MascotsChanged("u1"), func() { hits++ })

	relay.handleIncoming(Message{Event: MascotsChanged("u1"), Origin: relay.Origin()})
	assert.Zero(t, hits)

	relay.handleIncoming(Message{Event: MascotsChanged("u1"), Origin: "elsewhere"})
	assert.Equal(t, 1, hits)
}

func TestRelaySendFailureDoesNotAffectLocalDelivery(t *testing.T) {
	tr := (&hub{}).join()
	tr.fail = errors.New("broker down")
	bus := NewBus(nil)
	relay := NewRelay(bus, tr, nil)
	relay.Start(context.Background())

	var hits int
	bus.Subscribe(MascotsChanged("u1"), func() { hits++ })
	bus.Publish(MascotsChanged("u1"))

	assert.Equal(t, 1, hits)
	require.Eventually(t, func() bool { return tr.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())
}

func TestRelayStopWithoutStart(t *testing.T) {
	tr := (&hub{}).join()
	relay := NewRelay(NewBus(nil), tr, nil)
	require.NoError(t, relay.Stop())
	assert.True(t, tr.closed)
}

func TestRelayStopFlushesQueuedEvents(t *testing.T) {
	tr := (&hub{}).join()
	tr.gate = make(chan struct{})
	bus := NewBus(nil)
	relay := NewRelay(bus, tr, nil)
	relay.Start(context.Background())

	for _, u := range []string{"user:1", "user:2", "user:3"} {
		bus.Publish(MascotsChanged(u))
	}

	stopped := make(chan error, 1)
	go func() { stopped <- relay.Stop() }()
	close(tr.gate)

	require.NoError(t, <-stopped)
	assert.Equal(t, 3, tr.sentCount())
}
