package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderResolver(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := HeaderResolver{}.CurrentUserID(r)
	assert.False(t, ok)

	r.Header.Set(DefaultUserHeader, "  u-1 ")
	id, ok := HeaderResolver{}.CurrentUserID(r)
	require.True(t, ok)
	assert.Equal(t, "u-1", id)

	r.Header.Set("X-Auth-User", "u-2")
	id, _ = HeaderResolver{Header: "X-Auth-User"}.CurrentUserID(r)
	assert.Equal(t, "u-2", id)
}

func TestSubjectResolverAuthenticated(t *testing.T) {
	res := SubjectResolver{Users: HeaderResolver{}}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(DefaultUserHeader, "u-1")
	w := httptest.NewRecorder()

	subj := res.Subject(w, r)
	assert.Equal(t, "u-1", subj.UserID)
	assert.Empty(t, w.Result().Cookies())
}

func TestSubjectResolverIssuesAndReusesCookie(t *testing.T) {
	res := SubjectResolver{Users: HeaderResolver{}}

	w := httptest.NewRecorder()
	first := res.Subject(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, first.Persistable())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	_, err := uuid.Parse(cookies[0].Value)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	second := res.Subject(w, r)
	assert.Equal(t, first, second)
	assert.Empty(t, w.Result().Cookies())
}

func TestSubjectResolverReplacesForgedCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "../../etc"})
	w := httptest.NewRecorder()

	subj := SubjectResolver{}.Subject(w, r)
	assert.NotEqual(t, "../../etc", subj.SessionID)
	assert.Len(t, w.Result().Cookies(), 1)
}
