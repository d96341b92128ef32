package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const sidKey = "sid"

// CookieStore keeps the session id in a signed cookie
type CookieStore struct {
	store *sessions.CookieStore
	name  string
}

func NewCookieStore(secret, name string, secure bool, ttl time.Duration) *CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieStore{store: store, name: name}
}

// SessionID returns the sid carried by the request cookie, if any
func (c *CookieStore) SessionID(r *http.Request) (string, bool) {
	session, err := c.store.Get(r, c.name)
	if err != nil {
		return "", false
	}
	sid, ok := session.Values[sidKey].(string)
	return sid, ok && sid != ""
}

// Save writes a cookie carrying sid
func (c *CookieStore) Save(w http.ResponseWriter, r *http.Request, sid string) error {
	session, _ := c.store.New(r, c.name)
	session.Values[sidKey] = sid
	return session.Save(r, w)
}

// Clear expires the session cookie
func (c *CookieStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := c.store.New(r, c.name)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
