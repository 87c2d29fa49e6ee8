package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
)

// SearchState is a snapshot of what the controller has accumulated for the
// current query. Items always hold a single Kind.
type SearchState struct {
	Items        []Media     `json:"items"`
	Kind         Kind        `json:"kind"`
	Query        string      `json:"query"`
	Orientation  Orientation `json:"orientation,omitempty"`
	Page         int         `json:"page"`
	TotalResults int         `json:"totalResults"`
	Loading      bool        `json:"loading"`
	Error        *ApiError   `json:"error"`
}

func (s SearchState) HasMore() bool {
	return len(s.Items) < s.TotalResults
}

func initialState() SearchState {
	return SearchState{Items: []Media{}, Kind: KindImage, Page: 1}
}

type ControllerOption func(*SearchController)

func WithPerPage(perPage int) ControllerOption {
	return func(c *SearchController) {
		if perPage > 0 {
			c.perPage = perPage
		}
	}
}

func WithOrientation(o Orientation) ControllerOption {
	return func(c *SearchController) { c.orientation = o }
}

// WithBrowse lets Browse and empty-query pagination reach the curated and
// popular endpoints. Without it they are unreachable.
func WithBrowse(enabled bool) ControllerOption {
	return func(c *SearchController) { c.browse = enabled }
}

// WithObserver registers fn to receive a snapshot after every state change.
// fn runs without the state lock held and may read State, but must not start
// Search, Browse, LoadMore or Reset itself.
func WithObserver(fn func(SearchState)) ControllerOption {
	return func(c *SearchController) { c.observer = fn }
}

// SearchController owns the paginated results of one search session.
//
// At most one fetch is accepted as current. Search, Browse and Reset start a
// new generation, and a fetch that settles under an older generation is
// dropped. LoadMore is refused while a fetch is loading.
type SearchController struct {
	api         MediaSearcher
	perPage     int
	orientation Orientation
	browse      bool
	observer    func(SearchState)
	log         *log.Logger

	mu      sync.Mutex
	state   SearchState
	gen     uint64
	version uint64

	emitMu  sync.Mutex
	emitted uint64
}

func NewSearchController(api MediaSearcher, opts ...ControllerOption) *SearchController {
	c := &SearchController{
		api:     api,
		perPage: DefaultPerPage,
		state:   initialState(),
		log:     log.New(os.Stderr, "(search) ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SearchController) State() SearchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *SearchController) snapshot() SearchState {
	s := c.state
	s.Items = slices.Clone(c.state.Items)
	if s.Items == nil {
		s.Items = []Media{}
	}
	if c.state.Error != nil {
		e := *c.state.Error
		s.Error = &e
	}
	return s
}

// Search replaces the session with page 1 of query. A blank query or an
// unknown kind is ignored and false is returned.
func (c *SearchController) Search(ctx context.Context, query string, kind Kind) bool {
	return c.SearchWithOrientation(ctx, query, kind, c.orientation)
}

// SearchWithOrientation is Search with an orientation that overrides the
// controller default for this session, LoadMore included.
func (c *SearchController) SearchWithOrientation(ctx context.Context, query string, kind Kind, o Orientation) bool {
	if strings.TrimSpace(query) == "" || !kind.Valid() {
		return false
	}
	c.start(ctx, query, kind, o)
	return true
}

// Browse starts a session without a query term: curated photos or popular
// videos. It is a no-op unless the controller was built WithBrowse.
func (c *SearchController) Browse(ctx context.Context, kind Kind) bool {
	if !c.browse || !kind.Valid() {
		return false
	}
	c.start(ctx, "", kind, c.orientation)
	return true
}

func (c *SearchController) start(ctx context.Context, query string, kind Kind, o Orientation) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = SearchState{
		Items:   []Media{},
		Kind:        kind,
		Query:       query,
		Orientation: o,
		Page:        1,
		Loading:     true,
	}
	v, snap := c.changedLocked()
	c.mu.Unlock()
	c.emit(v, snap)

	page, err := c.fetch(ctx, query, kind, o, 1)
	c.settle(gen, 1, page, err)
}

// LoadMore fetches the page after the current one and appends it. It returns
// false without fetching while a fetch is loading or when nothing is left.
func (c *SearchController) LoadMore(ctx context.Context) bool {
	c.mu.Lock()
	if c.state.Loading || !c.state.HasMore() {
		c.mu.Unlock()
		return false
	}
	if c.state.Query == "" && !c.browse {
		c.mu.Unlock()
		return false
	}
	c.gen++
	gen := c.gen
	next := c.state.Page + 1
	query, kind, o := c.state.Query, c.state.Kind, c.state.Orientation
	c.state.Loading = true
	c.state.Error = nil
	v, snap := c.changedLocked()
	c.mu.Unlock()
	c.emit(v, snap)

	page, err := c.fetch(ctx, query, kind, o, next)
	c.settle(gen, next, page, err)
	return true
}

// Reset returns the controller to its initial state. A fetch still in
// flight is dropped when it settles.
func (c *SearchController) Reset() {
	c.mu.Lock()
	c.gen++
	c.state = initialState()
	v, snap := c.changedLocked()
	c.mu.Unlock()
	c.emit(v, snap)
}

func (c *SearchController) fetch(ctx context.Context, query string, kind Kind, o Orientation, page int) (ResultPage[Media], error) {
	req := SearchRequest{
		Query:       query,
		Kind:        kind,
		Page:        page,
		PerPage:     c.perPage,
		Orientation: o,
	}
	switch kind {
	case KindImage:
		var res ResultPage[PexelsPhoto]
		var err error
		if query == "" {
			res, err = c.api.CuratedPhotos(ctx, page, c.perPage)
		} else {
			res, err = c.api.SearchPhotos(ctx, req)
		}
		return toMediaPage(res), err
	case KindVideo:
		var res ResultPage[PexelsVideo]
		var err error
		if query == "" {
			res, err = c.api.PopularVideos(ctx, page, c.perPage)
		} else {
			res, err = c.api.SearchVideos(ctx, req)
		}
		return toMediaPage(res), err
	}
	return ResultPage[Media]{}, fmt.Errorf("unsupported media kind %q", kind)
}

func toMediaPage[T Media](res ResultPage[T]) ResultPage[Media] {
	items := make([]Media, len(res.Items))
	for i, it := range res.Items {
		items[i] = it
	}
	return ResultPage[Media]{
		Items:        items,
		TotalResults: res.TotalResults,
		Page:         res.Page,
		PerPage:      res.PerPage,
	}
}

func (c *SearchController) settle(gen uint64, page int, res ResultPage[Media], err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Printf("dropping stale page %d (attempt %d)", page, gen)
		return
	}
	c.state.Loading = false
	if err != nil {
		apiErr := ToApiError(err)
		c.state.Error = &apiErr
	} else {
		if page == 1 {
			c.state.Items = res.Items
		} else {
			items := make([]Media, 0, len(c.state.Items)+len(res.Items))
			items = append(items, c.state.Items...)
			c.state.Items = append(items, res.Items...)
		}
		c.state.Page = page
		c.state.TotalResults = max(res.TotalResults, len(c.state.Items))
	}
	v, snap := c.changedLocked()
	c.mu.Unlock()
	c.emit(v, snap)
}

func (c *SearchController) changedLocked() (uint64, SearchState) {
	c.version++
	if c.observer == nil {
		return c.version, SearchState{}
	}
	return c.version, c.snapshot()
}

// emit delivers snapshots to the observer in version order; a snapshot that
// lost the race to a newer one is skipped.
func (c *SearchController) emit(v uint64, s SearchState) {
	if c.observer == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if v <= c.emitted {
		return
	}
	c.emitted = v
	c.observer(s)
}
