package mascots

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"salvadanaio/internal/catalog"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
	"salvadanaio/internal/selection"
)

var (
	ErrNotReady      = errors.New("session not bootstrapped")
	ErrSessionClosed = errors.New("session closed")
	ErrUnknownItem   = errors.New("unknown catalog item")
)

const defaultWriteTimeout = 10 * time.Second

// State is the lifecycle of an editing session. It only moves forward.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

type SessionConfig struct {
	Subject      Subject
	Catalog      *catalog.Catalog
	Gateway      preferences.Gateway
	Bus          *notify.Bus
	Logger       *applog.Logger
	WriteTimeout time.Duration
	Now          func() time.Time
}

// Session is one editing surface for one subject. Mutations apply to the
// in-memory selection at once; persistence happens afterwards on a single
// writer goroutine in the order the mutations were accepted, and the change
// event is published once each write has been attempted. A failed write is
// logged and never rolled back.
type Session struct {
	subject      Subject
	catalog      *catalog.Catalog
	gateway      preferences.Gateway
	bus          *notify.Bus
	logger       *applog.Logger
	writeTimeout time.Duration
	now          func() time.Time

	container *selection.Container
	state     atomic.Int32
	source    Source
	bootOnce  sync.Once

	// mu orders mutations with their queued writes.
	mu      sync.Mutex
	queue   [][]string
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	pending atomic.Int64

	lastUsed atomic.Int64
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	if cfg.Bus == nil {
		cfg.Bus = notify.NewBus(cfg.Logger)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Session{
		subject:      cfg.Subject,
		catalog:      cfg.Catalog,
		gateway:      cfg.Gateway,
		bus:          cfg.Bus,
		logger:       cfg.Logger.WithComponent(applog.ComponentSelection).With(applog.FieldSubject, cfg.Subject.Key()),
		writeTimeout: cfg.WriteTimeout,
		now:          cfg.Now,
		container:    selection.NewContainer(cfg.Catalog),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	s.touch()
	if s.Persistable() {
		go s.writer()
	} else {
		close(s.done)
	}
	return s
}

func (s *Session) Subject() Subject { return s.subject }

// Persistable reports whether accepted changes are written to the store.
func (s *Session) Persistable() bool {
	return s.subject.Persistable() && s.gateway != nil
}

func (s *Session) State() State { return State(s.state.Load()) }

// Source reports where the bootstrapped selection came from.
func (s *Session) Source() Source {
	if s.State() != StateReady {
		return ""
	}
	return s.source
}

// Bootstrap reconciles the stored preference into the session. Only the
// first call does any work; concurrent callers wait for it.
func (s *Session) Bootstrap(ctx context.Context) {
	s.bootOnce.Do(func() {
		s.state.Store(int32(StateLoading))
		userID := ""
		if s.Persistable() {
			userID = s.subject.UserID
		}
		ids, src := Reconcile(ctx, s.catalog, s.gateway, userID, s.logger)
		s.container.Replace(ids)
		s.source = src
		s.state.Store(int32(StateReady))
		s.logger.DebugContext(ctx, "Session ready",
			applog.FieldSource, string(src),
			applog.FieldCount, len(ids))
	})
}

// Select adds id. A false Changed with a nil error means the rules refused
// it; IsSelected and IsMaxReached tell why.
func (s *Session) Select(id string) (selection.Result, error) {
	return s.mutate(id, s.container.Select)
}

// Remove drops id. A false Changed with a nil error means the minimum was
// reached or id was not selected.
func (s *Session) Remove(id string) (selection.Result, error) {
	return s.mutate(id, s.container.Remove)
}

func (s *Session) mutate(id string, op func(string) selection.Result) (selection.Result, error) {
	if s.State() != StateReady {
		return selection.Result{}, ErrNotReady
	}
	if !s.catalog.Contains(id) {
		return selection.Result{Resulting: s.container.Selected()}, ErrUnknownItem
	}
	s.touch()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return selection.Result{}, ErrSessionClosed
	}
	res := op(id)
	if res.Changed && s.Persistable() {
		s.queue = append(s.queue, slices.Clone(res.Resulting))
		s.pending.Add(1)
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	if res.Changed && !s.Persistable() {
		s.bus.Publish(s.subject.Event())
	}
	return res, nil
}

func (s *Session) writer() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}
		ids := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.persist(ids)
		s.pending.Add(-1)
		s.bus.Publish(s.subject.Event())
	}
}

func (s *Session) persist(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	value, err := preferences.EncodeMascots(ids)
	if err == nil {
		_, err = s.gateway.Write(ctx, s.subject.UserID, preferences.KindCategoryMascots, value)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist selection",
			applog.FieldOperation, applog.OpWrite,
			applog.FieldCount, len(ids),
			applog.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Selection persisted", applog.FieldCount, len(ids))
}

// IsSaving reports whether accepted changes are still waiting to be written.
func (s *Session) IsSaving() bool { return s.pending.Load() > 0 }

// Flush waits until every queued write has been attempted or ctx is done.
func (s *Session) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for s.IsSaving() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops accepting mutations, lets queued writes finish and waits for
// the writer. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Session) Selected() []string {
	s.touch()
	return s.container.Selected()
}

func (s *Session) IsSelected(id string) bool { return s.container.IsSelected(id) }

func (s *Session) Summary() selection.Summary {
	s.touch()
	return s.container.CountSummary()
}

func (s *Session) EffectiveSetFor(g catalog.Group) []catalog.Item {
	return s.container.EffectiveSetFor(g)
}

func (s *Session) ComplementFor(g catalog.Group) []catalog.Item {
	return s.container.ComplementFor(g)
}

func (s *Session) IsMaxReached() bool { return s.container.IsMaxReached() }

func (s *Session) IsMinReached() bool { return s.container.IsMinReached() }

// EffectiveDisplaySet resolves the selection to catalog items in selection
// order, keeping at most limit of them. A limit of zero or less keeps all.
func (s *Session) EffectiveDisplaySet(limit int) []catalog.Item {
	return displaySet(s.catalog, s.Selected(), limit)
}

func (s *Session) touch() { s.lastUsed.Store(s.now().UnixNano()) }

// LastUsed is the time of the most recent read or mutation.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

func displaySet(c *catalog.Catalog, ids []string, limit int) []catalog.Item {
	items := c.Resolve(ids)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
