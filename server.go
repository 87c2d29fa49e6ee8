package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/andybalholm/brotli"
	"github.com/gorilla/websocket"
	"log"
	"net/http"
	"os"
	"time"
)

type Server struct {
	cfg      *Config
	api      MediaSearcher
	store    *Store
	sessions *SessionStore
	upgrader websocket.Upgrader
	log      *log.Logger
}

// stateView is the JSON shape handed to the UI.
type stateView struct {
	SearchState
	HasMore bool `json:"hasMore"`
}

func viewOf(s SearchState) stateView {
	return stateView{SearchState: s, HasMore: s.HasMore()}
}

// NewServer wires the HTTP surface. store may be nil when auth is off.
func NewServer(cfg *Config, api MediaSearcher, store *Store) *Server {
	return &Server{
		cfg:      cfg,
		api:      api,
		store:    store,
		sessions: NewSessionStore(api, cfg.ControllerOptions()...),
		log:      log.New(os.Stderr, "(server) ", log.LstdFlags),
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "Not Found")
	})
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/search", s.withSession(s.handleSearch))
	mux.HandleFunc("/more", s.withSession(s.handleMore))
	mux.HandleFunc("/reset", s.withSession(s.handleReset))
	mux.HandleFunc("/state", s.withSession(s.handleState))
	if s.cfg.Search.BrowseWithoutQuery {
		mux.HandleFunc("/browse", s.withSession(s.handleBrowse))
	}
	mux.HandleFunc("/live", s.authenticated(s.handleLive))
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.log.Println("Starting Server on", s.cfg.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, c *SearchController)

// authenticated enforces basic auth when auth.required is set and passes the
// user name on; otherwise the user name is empty.
func (s *Server) authenticated(next func(w http.ResponseWriter, r *http.Request, user string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Required {
			next(w, r, "")
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || s.store == nil || !s.store.TestUser(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+s.cfg.App.Title+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "Unauthorized")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user string) {
		key := "user:" + user
		if user == "" {
			key = "session:" + sessionKey(w, r)
		}
		next(w, r, s.sessions.Get(key))
	})
}

// fetchContext keeps request values but not cancellation: a client that
// hangs up must not fail the session's fetch.
func fetchContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"appTitle":           s.cfg.App.Title,
		"perPage":            s.cfg.Search.PerPage,
		"debounceMs":         s.cfg.Search.DebounceMs,
		"browseWithoutQuery": s.cfg.Search.BrowseWithoutQuery,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, c *SearchController) {
	q, hasQ := r.URL.Query()["q"]
	if !hasQ {
		http.Error(w, "Query Search Parameter ?q= missing", http.StatusBadRequest)
		return
	}
	kind, err := ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	o := r.URL.Query().Get("orientation")
	if o == "" {
		c.Search(fetchContext(r), q[0], kind)
	} else {
		orientation, err := ParseOrientation(o)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.SearchWithOrientation(fetchContext(r), q[0], kind, orientation)
	}
	s.writeJSON(w, r, http.StatusOK, viewOf(c.State()))
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request, c *SearchController) {
	kind, err := ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.Browse(fetchContext(r), kind)
	s.writeJSON(w, r, http.StatusOK, viewOf(c.State()))
}

func (s *Server) handleMore(w http.ResponseWriter, r *http.Request, c *SearchController) {
	c.LoadMore(fetchContext(r))
	s.writeJSON(w, r, http.StatusOK, viewOf(c.State()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, c *SearchController) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	c.Reset()
	s.writeJSON(w, r, http.StatusOK, viewOf(c.State()))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, c *SearchController) {
	s.writeJSON(w, r, http.StatusOK, viewOf(c.State()))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	body := brotli.HTTPCompressor(w, r)
	defer body.Close()
	w.WriteHeader(status)
	enc := json.NewEncoder(body)
	if s.cfg.Debug.PrettyJson {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		s.log.Println("Failed to write response:", err)
	}
}
