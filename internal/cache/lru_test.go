package cache

import (
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

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestLRUGetSet(t *testing.T) {
	c := NewLRUCache[[]string](2, time.Minute)
	c.Set("a", []string{"x"})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](2, time.Minute, WithEvict(func(k string, _ int) { evicted = append(evicted, k) }))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"c", "a"}, c.keys())
}

func TestLRUExpiry(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	var evicted []string
	c := NewLRUCache[int](10, time.Second,
		WithClock[int](clk.now),
		WithEvict(func(k string, _ int) { evicted = append(evicted, k) }))

	c.Set("a", 1)
	c.Set("b", 2)
	clk.advance(500 * time.Millisecond)
	c.Set("b", 3)
	clk.advance(600 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.CleanExpired())
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	clk.advance(time.Second)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestLRUDeleteNotifies(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](2, time.Minute, WithEvict(func(k string, _ int) { evicted = append(evicted, k) }))
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("a")
	assert.Equal(t, []string{"a"}, evicted)
}

func TestLRUEvictCallbackMayReenter(t *testing.T) {
	var c *LRUCache[int]
	c = NewLRUCache[int](1, time.Minute, WithEvict(func(string, int) { _ = c.Size() }))
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Size())
}

type cleanerFunc func() int

func (f cleanerFunc) CleanExpired() int { return f() }

func TestManagerSweep(t *testing.T) {
	m := NewManager(nil)
	calls := 0
	m.Register(cleanerFunc(func() int { calls++; return 2 }))
	m.Register(cleanerFunc(func() int { return 1 }))
	assert.Equal(t, 3, m.Sweep())
	assert.Equal(t, 1, calls)
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})
	var once sync.Once
	m.Register(cleanerFunc(func() int { once.Do(func() { close(done) }); return 0 }))
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup never ran")
	}
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	NewManager(nil).Stop()
}
