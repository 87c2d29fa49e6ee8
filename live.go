package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
)

type liveMessage struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

type liveQuery struct {
	query string
	kind  Kind
}

var liveLog = log.New(os.Stderr, "(live) ", log.LstdFlags)

// handleLive serves a websocket the UI feeds with every keystroke. Queries
// are debounced before they reach the connection's own controller, and every
// state change is pushed back as JSON.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, user string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		liveLog.Println("Upgrade failed:", err)
		return
	}
	defer conn.Close()
	if user != "" {
		liveLog.Println("Live session for", user)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var writeMu sync.Mutex
	push := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			liveLog.Println("Write failed:", err)
			cancel()
		}
	}

	opts := append(s.cfg.ControllerOptions(), WithObserver(func(st SearchState) {
		push(viewOf(st))
	}))
	c := NewSearchController(s.api, opts...)

	queries := make(chan liveQuery)
	forwarded := make(chan struct{})
	var ops sync.WaitGroup
	defer func() {
		cancel()
		<-forwarded
		ops.Wait()
	}()
	go func() {
		defer close(forwarded)
		for q := range Debounce(ctx, queries, s.cfg.DebounceDelay()) {
			ops.Add(1)
			go func(q liveQuery) {
				defer ops.Done()
				c.Search(ctx, q.query, q.kind)
			}(q)
		}
	}()

	push(viewOf(c.State()))
	for {
		var msg liveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				liveLog.Println("Connection closed:", err)
			}
			return
		}
		switch msg.Type {
		case "query":
			kind, err := ParseKind(msg.Kind)
			if err != nil {
				push(map[string]string{"type": "error", "message": err.Error()})
				continue
			}
			select {
			case queries <- liveQuery{query: msg.Query, kind: kind}:
			case <-ctx.Done():
				return
			}
		case "more":
			ops.Add(1)
			go func() {
				defer ops.Done()
				c.LoadMore(ctx)
			}()
		case "reset":
			c.Reset()
		case "browse":
			kind, err := ParseKind(msg.Kind)
			if err != nil {
				push(map[string]string{"type": "error", "message": err.Error()})
				continue
			}
			ops.Add(1)
			go func() {
				defer ops.Done()
				c.Browse(ctx, kind)
			}()
		default:
			push(map[string]string{"type": "error", "message": "unknown message type " + msg.Type})
		}
	}
}
