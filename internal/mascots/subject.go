// Package mascots runs the category mascot selection engine: it reconciles a
// stored preference into a valid selection, keeps one editing session per
// subject, persists accepted changes in order and tells the navigation feed
// when to reload.
package mascots

import (
	"strings"

	"salvadanaio/internal/notify"
)

const (
	userPrefix = "user:"
	anonPrefix = "anon:"
)

// Subject identifies whose selection is being edited or displayed. Exactly
// one of UserID and SessionID is set. Only user subjects are persisted.
type Subject struct {
	UserID    string
	SessionID string
}

func UserSubject(userID string) Subject { return Subject{UserID: strings.TrimSpace(userID)} }

func AnonymousSubject(sessionID string) Subject {
	return Subject{SessionID: strings.TrimSpace(sessionID)}
}

// Key is the stable string form used for registry, cache and event names.
func (s Subject) Key() string {
	if s.UserID != "" {
		return userPrefix + s.UserID
	}
	return anonPrefix + s.SessionID
}

func (s Subject) Persistable() bool { return s.UserID != "" }

func (s Subject) Valid() bool { return s.UserID != "" || s.SessionID != "" }

// Event is the change event name for this subject.
func (s Subject) Event() string { return notify.MascotsChanged(s.Key()) }

func (s Subject) String() string { return s.Key() }

// ParseSubject is the inverse of Key.
func ParseSubject(key string) (Subject, bool) {
	if id, ok := strings.CutPrefix(key, userPrefix); ok && id != "" {
		return Subject{UserID: id}, true
	}
	if sid, ok := strings.CutPrefix(key, anonPrefix); ok && sid != "" {
		return Subject{SessionID: sid}, true
	}
	return Subject{}, false
}
