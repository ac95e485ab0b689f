// Package identity resolves who an HTTP request is editing mascots for.
// Authentication happens upstream; this package only reads its result and,
// for anonymous visitors, keeps a session cookie.
package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"salvadanaio/internal/mascots"
)

const (
	DefaultUserHeader = "X-User-ID"
	SessionCookieName = "mascots_sid"
	sessionCookieAge  = 30 * 24 * time.Hour
)

// Resolver returns the authenticated user for a request, if any.
type Resolver interface {
	CurrentUserID(r *http.Request) (string, bool)
}

// HeaderResolver trusts a header set by the authenticating proxy.
type HeaderResolver struct {
	Header string
}

func (h HeaderResolver) CurrentUserID(r *http.Request) (string, bool) {
	name := h.Header
	if name == "" {
		name = DefaultUserHeader
	}
	id := strings.TrimSpace(r.Header.Get(name))
	return id, id != ""
}

// SubjectResolver maps requests to mascot subjects.
type SubjectResolver struct {
	Users  Resolver
	Secure bool
}

// Subject returns the authenticated user's subject, or the anonymous
// session from the cookie. When the cookie is missing or invalid a new
// session id is issued on w.
func (s SubjectResolver) Subject(w http.ResponseWriter, r *http.Request) mascots.Subject {
	if s.Users != nil {
		if id, ok := s.Users.CurrentUserID(r); ok {
			return mascots.UserSubject(id)
		}
	}
	if sid, ok := sessionID(r); ok {
		return mascots.AnonymousSubject(sid)
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return mascots.AnonymousSubject(sid)
}

func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
