package mascots

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"salvadanaio/internal/cache"
	"salvadanaio/internal/catalog"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
	"salvadanaio/internal/selection"
)

const (
	DefaultNavCacheSize = 1024
	DefaultNavCacheTTL  = 5 * time.Minute
)

// SelectionSource yields the authoritative selection for a subject.
type SelectionSource interface {
	Selection(ctx context.Context, subject Subject) ([]string, error)
}

// LiveSource prefers a subject's open editing session and otherwise
// reconciles from the store, so anonymous subjects without a session see
// the defaults.
type LiveSource struct {
	Registry *Registry
	Catalog  *catalog.Catalog
	Gateway  preferences.Gateway
	Logger   *applog.Logger
}

func (s LiveSource) Selection(ctx context.Context, subject Subject) ([]string, error) {
	if s.Registry != nil {
		if sess, ok := s.Registry.Lookup(subject); ok && sess.State() == StateReady {
			return sess.Selected(), nil
		}
	}
	if !subject.Persistable() {
		return selection.DeriveDefaults(s.Catalog.Items()), nil
	}
	ids, _ := Reconcile(ctx, s.Catalog, s.Gateway, subject.UserID, s.Logger)
	return ids, nil
}

type NavigationConfig struct {
	Catalog   *catalog.Catalog
	Source    SelectionSource
	Bus       *notify.Bus
	Logger    *applog.Logger
	CacheSize int
	CacheTTL  time.Duration
}

// NavigationFeed serves the display set shown in navigation. Each subject's
// set is cached until its change event arrives; the next request after that
// re-reads the source, with concurrent re-reads collapsed into one.
type NavigationFeed struct {
	catalog *catalog.Catalog
	source  SelectionSource
	bus     *notify.Bus
	logger  *applog.Logger
	cache   *cache.LRUCache[[]string]
	group   singleflight.Group

	mu   sync.Mutex
	subs map[string]*navSub
}

type navSub struct {
	unsubscribe func()
	generation  uint64
}

func NewNavigationFeed(cfg NavigationConfig) *NavigationFeed {
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultNavCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultNavCacheTTL
	}
	f := &NavigationFeed{
		catalog: cfg.Catalog,
		source:  cfg.Source,
		bus:     cfg.Bus,
		logger:  cfg.Logger.WithComponent(applog.ComponentNavigation),
		subs:    make(map[string]*navSub),
	}
	f.cache = cache.NewLRUCache(cfg.CacheSize, cfg.CacheTTL, cache.WithEvict(f.evicted))
	return f
}

// Cache exposes the underlying cache so it can be swept periodically.
func (f *NavigationFeed) Cache() cache.Cleaner { return f.cache }

// EffectiveDisplaySet returns up to limit selected items for subject. A
// limit of zero or less returns the whole selection.
func (f *NavigationFeed) EffectiveDisplaySet(ctx context.Context, subject Subject, limit int) []catalog.Item {
	return displaySet(f.catalog, f.selection(ctx, subject), limit)
}

func (f *NavigationFeed) selection(ctx context.Context, subject Subject) []string {
	key := subject.Key()
	if ids, ok := f.cache.Get(key); ok {
		return slices.Clone(ids)
	}

	v, _, _ := f.group.Do(key, func() (any, error) {
		gen := f.watch(subject)
		ids, err := f.source.Selection(ctx, subject)
		if err != nil {
			f.logger.WarnContext(ctx, "Navigation reload failed, using defaults",
				applog.FieldSubject, key,
				applog.FieldError, err)
			return selection.DeriveDefaults(f.catalog.Items()), nil
		}
		f.cache.Set(key, ids)
		if !f.current(key, gen) {
			// Changed while loading; do not keep the stale read.
			f.cache.Delete(key)
		}
		return ids, nil
	})
	return slices.Clone(v.([]string))
}

// watch subscribes to the subject's change event if not yet subscribed and
// returns the current invalidation generation.
func (f *NavigationFeed) watch(subject Subject) uint64 {
	key := subject.Key()
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[key]; ok {
		return sub.generation
	}
	sub := &navSub{}
	f.subs[key] = sub
	sub.unsubscribe = f.bus.Subscribe(subject.Event(), func() { f.invalidate(key) })
	return 0
}

func (f *NavigationFeed) current(key string, gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[key]
	return ok && sub.generation == gen
}

func (f *NavigationFeed) invalidate(key string) {
	f.mu.Lock()
	if sub, ok := f.subs[key]; ok {
		sub.generation++
	}
	f.mu.Unlock()
	f.cache.Delete(key)
	f.logger.Debug("Navigation entry invalidated", applog.FieldSubject, key)
}

// evicted drops the subscription of a subject that left the cache.
func (f *NavigationFeed) evicted(key string, _ []string) {
	f.mu.Lock()
	sub, ok := f.subs[key]
	delete(f.subs, key)
	f.mu.Unlock()
	if ok {
		sub.unsubscribe()
	}
}

// Subscriptions returns the number of subjects currently watched.
func (f *NavigationFeed) Subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close unsubscribes from every subject.
func (f *NavigationFeed) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[string]*navSub)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.unsubscribe()
	}
}
