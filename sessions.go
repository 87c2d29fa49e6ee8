package main

import (
	"github.com/apibillme/cache"
	"github.com/google/uuid"
	"net/http"
	"sync"
	"time"
)

const sessionCookie = "pexels_session"

// SessionStore keeps one SearchController per browser session or user.
// A session falls out of the cache after an hour without requests.
type SessionStore struct {
	api  MediaSearcher
	opts []ControllerOption

	mu       sync.Mutex
	sessions cache.Cache
}

func NewSessionStore(api MediaSearcher, opts ...ControllerOption) *SessionStore {
	return &SessionStore{
		api:      api,
		opts:     opts,
		sessions: cache.New(1024, cache.WithTTL(1*time.Hour)),
	}
}

func (ss *SessionStore) Get(key string) *SearchController {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if c, ok := ss.sessions.Get(key); ok {
		return c.(*SearchController)
	}
	c := NewSearchController(ss.api, ss.opts...)
	ss.sessions.Set(key, c)
	return c
}

// sessionKey returns the id stored in the session cookie, issuing a new one
// when the request carries none.
func sessionKey(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			return ck.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
