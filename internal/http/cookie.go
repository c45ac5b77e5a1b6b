package http

import (
	"net/http"
	"sync"
	"time"
)

const (
	CartCookieName = "cartId"
	cartCookieAge  = 30 * 24 * time.Hour
)

// cookieStore keeps the cart id for one request. Changes are buffered and
// written by flush, since the controller may update the id from a background
// goroutine.
type cookieStore struct {
	mu      sync.Mutex
	id      string
	changed bool
	secure  bool
}

func newCookieStore(r *http.Request, secure bool) *cookieStore {
	s := &cookieStore{secure: secure}
	if c, err := r.Cookie(CartCookieName); err == nil {
		s.id = c.Value
	}
	return s
}

func (s *cookieStore) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *cookieStore) SetCartID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != id {
		s.id = id
		s.changed = true
	}
}

func (s *cookieStore) ClearCartID() {
	s.SetCartID("")
}

// flush writes a Set-Cookie header when the id changed. It must run before
// the response status is written.
func (s *cookieStore) flush(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.changed {
		return
	}
	c := &http.Cookie{
		Name:     CartCookieName,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cartCookieAge.Seconds()),
	}
	if s.id == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
	s.changed = false
}
