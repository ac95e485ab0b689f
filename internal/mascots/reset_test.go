package mascots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
)

func TestResetDeletesAndNotifies(t *testing.T) {
	ctx := context.Background()
	g := newFakeGateway()
	g.storeIDs(t, "u1", ids(3, 10))
	bus := notify.NewBus(nil)
	reg := NewRegistry(RegistryConfig{Catalog: testCatalog(), Gateway: g, Bus: bus})
	defer reg.Close()

	reg.Session(ctx, UserSubject("u1"))
	var events int
	bus.Subscribe(UserSubject("u1").Event(), func() { events++ })

	require.NoError(t, Reset(ctx, g, reg, bus, UserSubject("u1")))

	assert.Equal(t, 1, events)
	assert.Zero(t, reg.Len())
	_, err := g.Store.Read(ctx, "u1", preferences.KindCategoryMascots)
	assert.ErrorIs(t, err, preferences.ErrNotFound)

	got, src := Reconcile(ctx, testCatalog(), g, "u1", nil)
	assert.Equal(t, testDefaults, got)
	assert.Equal(t, SourceDefaults, src)
}

func TestResetOutlivesQueuedWrites(t *testing.T) {
	ctx := context.Background()
	g := newFakeGateway()
	g.storeIDs(t, "u1", ids(3, 10))
	reg := NewRegistry(RegistryConfig{Catalog: testCatalog(), Gateway: g})
	defer reg.Close()

	gate := g.hold()
	_, err := reg.Session(ctx, UserSubject("u1")).Select("i12")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- Reset(ctx, g, reg, nil, UserSubject("u1")) }()
	time.Sleep(10 * time.Millisecond)
	close(gate)
	require.NoError(t, <-done)

	// The held write landed while the session closed; the reset still wins.
	assert.Equal(t, [][]string{append(ids(3, 10), "i12")}, g.writeLog())
	_, err = g.Store.Read(ctx, "u1", preferences.KindCategoryMascots)
	assert.ErrorIs(t, err, preferences.ErrNotFound)
}

func TestRemoteResetDropsOpenSession(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog()
	g := newFakeGateway()
	g.storeIDs(t, "u1", ids(4, 10))
	bus := notify.NewBus(nil)
	reg := NewRegistry(RegistryConfig{Catalog: cat, Gateway: g, Bus: bus})
	defer reg.Close()
	feed := NewNavigationFeed(NavigationConfig{
		Catalog: cat,
		Source:  LiveSource{Registry: reg, Catalog: cat, Gateway: g},
		Bus:     bus,
	})
	defer feed.Close()
	user := UserSubject("u1")

	reg.Session(ctx, user)
	require.Equal(t, ids(4, 10), itemIDs(feed.EffectiveDisplaySet(ctx, user, 0)))

	// Another process deletes the record and its event arrives via the relay.
	require.NoError(t, g.Store.Delete(ctx, "u1", preferences.KindCategoryMascots))
	bus.DeliverRemote(user.Event())

	assert.Zero(t, reg.Len())
	assert.Equal(t, testDefaults, itemIDs(feed.EffectiveDisplaySet(ctx, user, 0)))

	sess := reg.Session(ctx, user)
	assert.Equal(t, testDefaults, sess.Selected())
	_, err := sess.Select("i12")
	require.NoError(t, err)
	require.NoError(t, sess.Flush(ctx))
	assert.Equal(t, append(ids(1, 6), "i12"), g.stored(t, "u1"))
}

func TestRemoteEventLeavesAnonymousSessions(t *testing.T) {
	ctx := context.Background()
	bus := notify.NewBus(nil)
	reg := NewRegistry(RegistryConfig{Catalog: testCatalog(), Gateway: newFakeGateway(), Bus: bus})
	defer reg.Close()

	reg.Session(ctx, AnonymousSubject("sid"))
	bus.DeliverRemote(AnonymousSubject("sid").Event())
	bus.DeliverRemote("unrelated")
	assert.Equal(t, 1, reg.Len())
}

type failingDeleter struct{ *fakeGateway }

func (failingDeleter) Delete(context.Context, string, preferences.Kind) error {
	return preferences.Unavailable("delete", errors.New("offline"))
}

func TestResetReportsStoreFailure(t *testing.T) {
	bus := notify.NewBus(nil)
	var events int
	bus.Subscribe(UserSubject("u1").Event(), func() { events++ })

	err := Reset(context.Background(), failingDeleter{newFakeGateway()}, nil, bus, UserSubject("u1"))
	assert.ErrorIs(t, err, preferences.ErrStoreUnavailable)
	assert.Zero(t, events)
}

func TestResetAnonymous(t *testing.T) {
	bus := notify.NewBus(nil)
	var events int
	bus.Subscribe(AnonymousSubject("sid").Event(), func() { events++ })
	require.NoError(t, Reset(context.Background(), newFakeGateway(), nil, bus, AnonymousSubject("sid")))
	assert.Equal(t, 1, events)
}
