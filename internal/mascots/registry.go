package mascots

import (
	"context"
	"sync"
	"time"

	"salvadanaio/internal/catalog"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/notify"
	"salvadanaio/internal/preferences"
)

const DefaultIdleTimeout = 30 * time.Minute

type RegistryConfig struct {
	Catalog     *catalog.Catalog
	Gateway     preferences.Gateway
	Bus         *notify.Bus
	Logger      *applog.Logger
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Registry keeps one bootstrapped editing session per subject and closes
// sessions that have been idle for longer than IdleTimeout.
type Registry struct {
	cfg      RegistryConfig
	logger   *applog.Logger
	mu       sync.Mutex
	sessions map[string]*Session

	stopRemote func()
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Bus == nil {
		cfg.Bus = notify.NewBus(cfg.Logger)
	}
	r := &Registry{
		cfg:      cfg,
		logger:   cfg.Logger.WithComponent(applog.ComponentSelection),
		sessions: make(map[string]*Session),
	}
	r.stopRemote = cfg.Bus.OnRemote(r.remoteChange)
	return r
}

// remoteChange drops the open session of a user whose selection another
// process changed, so the next read reconciles from the store. Anonymous
// sessions live only in this process and are left alone.
func (r *Registry) remoteChange(event string) {
	key, ok := notify.SubjectOf(event)
	if !ok {
		return
	}
	subject, ok := ParseSubject(key)
	if !ok || !subject.Persistable() {
		return
	}
	if r.Drop(subject) {
		r.logger.Debug("Session dropped after remote change", applog.FieldSubject, key)
	}
}

// Session returns the subject's session, creating and bootstrapping it on
// first use.
func (r *Registry) Session(ctx context.Context, subject Subject) *Session {
	key := subject.Key()
	r.mu.Lock()
	sess, ok := r.sessions[key]
	if !ok {
		sess = NewSession(SessionConfig{
			Subject: subject,
			Catalog: r.cfg.Catalog,
			Gateway: r.cfg.Gateway,
			Bus:     r.cfg.Bus,
			Logger:  r.cfg.Logger,
			Now:     r.cfg.Now,
		})
		r.sessions[key] = sess
	}
	r.mu.Unlock()

	sess.Bootstrap(ctx)
	return sess
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(subject Subject) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[subject.Key()]
	return sess, ok
}

// Drop closes and forgets the subject's session, if any.
func (r *Registry) Drop(subject Subject) bool {
	r.mu.Lock()
	sess, ok := r.sessions[subject.Key()]
	delete(r.sessions, subject.Key())
	r.mu.Unlock()
	if ok {
		sess.Close()
	}
	return ok
}

// CleanExpired closes idle sessions and returns how many it closed.
func (r *Registry) CleanExpired() int {
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var expired []*Session
	for key, sess := range r.sessions {
		if sess.LastUsed().Before(cutoff) && !sess.IsSaving() {
			expired = append(expired, sess)
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		r.logger.Debug("Idle session closed", applog.FieldSubject, sess.Subject().Key())
	}
	return len(expired)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session, waiting for their pending writes.
func (r *Registry) Close() {
	r.stopRemote()
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	r.logger.Info("Sessions closed", applog.FieldCount, len(sessions))
}
