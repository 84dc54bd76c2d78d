package session

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
)

const (
	cookieName = "school_finance_session"

	keyUserID   = "user_id"
	keyExpires  = "expires"
	keyRemember = "remember"

	RememberFor = 30 * 24 * time.Hour

	touchInterval = time.Minute
)

func init() {
	gob.Register(Message{})
}

type Options struct {
	Secret string
	MaxAge time.Duration
	Secure bool
}

// Manager keeps the logged in user and pending flash messages in a signed cookie.
type Manager struct {
	store  *sessions.CookieStore
	maxAge time.Duration
	clock  clockwork.Clock
}

func NewManager(opts Options, clock clockwork.Clock) *Manager {
	store := sessions.NewCookieStore([]byte(opts.Secret))
	// codecs must accept remembered cookies
	store.MaxAge(int(max(opts.MaxAge, RememberFor).Seconds()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, maxAge: opts.MaxAge, clock: clock}
}

// get returns the request's session. A tampered or stale cookie yields an
// empty session; the registry hands the same one to every caller in a request.
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, _ := m.store.Get(r, cookieName)
	if remember, _ := s.Values[keyRemember].(bool); remember {
		s.Options.MaxAge = int(RememberFor.Seconds())
	}
	return s
}

// Login binds userID to the session. Remembered sessions survive a browser
// restart; others end with the browser or after the configured max age.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID int64, remember bool) error {
	s := m.get(r)
	s.Values[keyUserID] = userID
	s.Values[keyRemember] = remember
	s.Options.MaxAge = 0
	if remember {
		s.Options.MaxAge = int(RememberFor.Seconds())
	}
	s.Values[keyExpires] = m.clock.Now().Add(m.lifetime(remember)).Unix()
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

// Logout forgets the user but keeps the cookie so a flash can follow.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	delete(s.Values, keyUserID)
	delete(s.Values, keyExpires)
	delete(s.Values, keyRemember)
	s.Options.MaxAge = 0
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

// UserID returns the logged in user, if the session has not expired.
func (m *Manager) UserID(r *http.Request) (int64, bool) {
	s := m.get(r)
	id, ok := s.Values[keyUserID].(int64)
	if !ok {
		return 0, false
	}
	expires, ok := s.Values[keyExpires].(int64)
	if !ok || m.clock.Now().Unix() >= expires {
		return 0, false
	}
	return id, true
}

// Touch slides the expiry of a live session forward, so it only ends after
// a full lifetime without requests. Saves are skipped until at least
// touchInterval has passed since the last one.
func (m *Manager) Touch(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	if _, ok := s.Values[keyUserID].(int64); !ok {
		return nil
	}
	expires, ok := s.Values[keyExpires].(int64)
	now := m.clock.Now()
	if !ok || now.Unix() >= expires {
		return nil
	}
	remember, _ := s.Values[keyRemember].(bool)
	next := now.Add(m.lifetime(remember)).Unix()
	if next-expires < int64(touchInterval.Seconds()) {
		return nil
	}
	s.Values[keyExpires] = next
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (m *Manager) lifetime(remember bool) time.Duration {
	if remember {
		return RememberFor
	}
	return m.maxAge
}
