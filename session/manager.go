package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Manager issues session cookies and moves sessions between requests and
// the store.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager wires a Manager to a store. secure controls the cookie Secure
// attribute and should be true whenever the site is served over TLS.
func NewManager(store Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	if cookieName == "" {
		cookieName = "pathpal_sid"
	}
	return &Manager{store: store, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Load returns the live session referenced by the request cookie, or
// ErrNotFound when there is none.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.store.Get(r.Context(), cookie.Value)
}

// GetOrCreate returns the request's session, creating and attaching a new
// one when the request has none.
func (m *Manager) GetOrCreate(w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess, err := m.Load(r)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess = &Session{
		SID:       uuid.NewString(),
		CreatedAt: time.Now(),
	}
	sess.MarkDirty()
	http.SetCookie(w, m.cookie(sess.SID, m.ttl))
	return sess, nil
}

// Save persists the session when it carries unsaved changes.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || !sess.Dirty() {
		return nil
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}
	sess.dirty = false
	return nil
}

// Destroy removes the session server-side and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := m.store.Delete(ctx, sess.SID); err != nil {
		return err
	}
	http.SetCookie(w, m.cookie("", -time.Hour))
	return nil
}

func (m *Manager) cookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
