package mascots

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/notify"
)

type countingSource struct {
	mu    sync.Mutex
	ids   []string
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (s *countingSource) Selection(_ context.Context, _ Subject) ([]string, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...), s.err
}

func (s *countingSource) set(list []string) {
	s.mu.Lock()
	s.ids = list
	s.mu.Unlock()
}

func newTestFeed(src SelectionSource, bus *notify.Bus, size int) *NavigationFeed {
	return NewNavigationFeed(NavigationConfig{
		Catalog:   testCatalog(),
		Source:    src,
		Bus:       bus,
		CacheSize: size,
		CacheTTL:  time.Minute,
	})
}

func TestNavigationCachesUntilChanged(t *testing.T) {
	bus := notify.NewBus(nil)
	src := &countingSource{ids: ids(3, 9)}
	feed := newTestFeed(src, bus, 10)
	defer feed.Close()
	ctx := context.Background()
	subj := UserSubject("u1")

	assert.Equal(t, []string{"i3", "i4", "i5"}, itemIDs(feed.EffectiveDisplaySet(ctx, subj, 3)))
	assert.Len(t, feed.EffectiveDisplaySet(ctx, subj, 0), 7)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.Equal(t, 1, bus.SubscriberCount(subj.Event()))

	src.set(ids(6, 12))
	bus.Publish(UserSubject("other").Event())
	assert.Equal(t, "i3", feed.EffectiveDisplaySet(ctx, subj, 1)[0].ID)

	bus.Publish(subj.Event())
	assert.Equal(t, "i6", feed.EffectiveDisplaySet(ctx, subj, 1)[0].ID)
	assert.EqualValues(t, 2, src.calls.Load())
	assert.Equal(t, 1, bus.SubscriberCount(subj.Event()))
}

func TestNavigationCollapsesConcurrentReloads(t *testing.T) {
	src := &countingSource{ids: ids(1, 6), gate: make(chan struct{})}
	feed := newTestFeed(src, notify.NewBus(nil), 10)
	defer feed.Close()

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = len(feed.EffectiveDisplaySet(context.Background(), UserSubject("u1"), 0))
		}(i)
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 1, src.calls.Load())
	close(src.gate)
	wg.Wait()

	for _, n := range results {
		assert.Equal(t, 6, n)
	}
}

func TestNavigationSourceErrorFallsBackToDefaults(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	feed := newTestFeed(src, notify.NewBus(nil), 10)
	defer feed.Close()
	ctx := context.Background()

	assert.Equal(t, testDefaults, itemIDs(feed.EffectiveDisplaySet(ctx, UserSubject("u1"), 0)))
	feed.EffectiveDisplaySet(ctx, UserSubject("u1"), 0)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestNavigationEvictionUnsubscribes(t *testing.T) {
	bus := notify.NewBus(nil)
	feed := newTestFeed(&countingSource{ids: ids(1, 6)}, bus, 1)
	defer feed.Close()
	ctx := context.Background()

	feed.EffectiveDisplaySet(ctx, UserSubject("a"), 0)
	feed.EffectiveDisplaySet(ctx, UserSubject("b"), 0)

	assert.Zero(t, bus.SubscriberCount(UserSubject("a").Event()))
	assert.Equal(t, 1, bus.SubscriberCount(UserSubject("b").Event()))
	assert.Equal(t, 1, feed.Subscriptions())

	feed.Close()
	assert.Zero(t, bus.SubscriberCount(UserSubject("b").Event()))
}

func TestNavigationFollowsEditingSession(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus(nil)
	g := newFakeGateway()
	cat := testCatalog()
	reg := NewRegistry(RegistryConfig{Catalog: cat, Gateway: g, Bus: bus})
	defer reg.Close()
	feed := NewNavigationFeed(NavigationConfig{
		Catalog: cat,
		Source:  LiveSource{Registry: reg, Catalog: cat, Gateway: g},
		Bus:     bus,
	})
	defer feed.Close()

	anon := AnonymousSubject("sid")
	assert.Equal(t, testDefaults, itemIDs(feed.EffectiveDisplaySet(ctx, anon, 0)))

	sess := reg.Session(ctx, anon)
	_, err := sess.Select("i12")
	require.NoError(t, err)
	assert.Equal(t, append(ids(1, 6), "i12"), itemIDs(feed.EffectiveDisplaySet(ctx, anon, 0)))

	user := UserSubject("u1")
	g.storeIDs(t, "u1", ids(4, 10))
	assert.Equal(t, ids(4, 10), itemIDs(feed.EffectiveDisplaySet(ctx, user, 0)))

	us := reg.Session(ctx, user)
	_, err = us.Remove("i4")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(feed.EffectiveDisplaySet(ctx, user, 0)) == 6
	}, time.Second, 5*time.Millisecond)
}
