package main

import (
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type stateReply struct {
	Items []struct {
		Id int `json:"id"`
	} `json:"items"`
	Kind         Kind        `json:"kind"`
	Query        string      `json:"query"`
	Orientation  Orientation `json:"orientation"`
	Page         int         `json:"page"`
	TotalResults int         `json:"totalResults"`
	Loading      bool        `json:"loading"`
	Error        *ApiError   `json:"error"`
	HasMore      bool        `json:"hasMore"`
}

func newTestServer(t *testing.T, cfg *Config, api MediaSearcher, store *Store) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(NewServer(cfg, api, store).Routes())
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func getState(t *testing.T, client *http.Client, method string, u string) (int, stateReply) {
	t.Helper()
	req, err := http.NewRequest(method, u, nil)
	require.NoError(t, err)
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var st stateReply
	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	}
	return res.StatusCode, st
}

func TestServerSearchFlow(t *testing.T) {
	api := newFakeSearcher(fixedPages(100, 15))
	srv, client := newTestServer(t, defaultConfig(), api, nil)

	status, st := getState(t, client, http.MethodGet, srv.URL+"/search?q=mountains&kind=photos")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, st.Items, 15)
	assert.Equal(t, "mountains", st.Query)
	assert.Equal(t, KindImage, st.Kind)
	assert.True(t, st.HasMore)
	assert.Equal(t, 1, st.Page)

	status, st = getState(t, client, http.MethodGet, srv.URL+"/more")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, st.Items, 30)
	assert.Equal(t, 2, st.Page)

	status, st = getState(t, client, http.MethodGet, srv.URL+"/state")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, st.Items, 30)

	status, _ = getState(t, client, http.MethodGet, srv.URL+"/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, st = getState(t, client, http.MethodPost, srv.URL+"/reset")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, st.Items)
	assert.False(t, st.HasMore)
	assert.Equal(t, 2, api.callCount())
}

func TestServerSessionsAreSeparate(t *testing.T) {
	api := newFakeSearcher(fixedPages(100, 15))
	srv, alice := newTestServer(t, defaultConfig(), api, nil)
	jar, _ := cookiejar.New(nil)
	bob := &http.Client{Jar: jar}

	getState(t, alice, http.MethodGet, srv.URL+"/search?q=cats")
	_, st := getState(t, bob, http.MethodGet, srv.URL+"/state")
	assert.Empty(t, st.Items)
	assert.Empty(t, st.Query)

	_, st = getState(t, alice, http.MethodGet, srv.URL+"/state")
	assert.Equal(t, "cats", st.Query)
}

func TestServerSearchValidation(t *testing.T) {
	api := newFakeSearcher(fixedPages(100, 15))
	srv, client := newTestServer(t, defaultConfig(), api, nil)

	status, _ := getState(t, client, http.MethodGet, srv.URL+"/search")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = getState(t, client, http.MethodGet, srv.URL+"/search?q=x&kind=audio")
	assert.Equal(t, http.StatusBadRequest, status)

	status, st := getState(t, client, http.MethodGet, srv.URL+"/search?q="+url.QueryEscape("   "))
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, st.Items)
	assert.Equal(t, 0, api.callCount())
}

func TestServerReportsUpstreamErrors(t *testing.T) {
	api := newFakeSearcher(func(fakeCall) (int, int, error) {
		return 0, 0, &StatusError{Status: 401, Body: "invalid key"}
	})
	srv, client := newTestServer(t, defaultConfig(), api, nil)

	status, st := getState(t, client, http.MethodGet, srv.URL+"/search?q=cats&kind=videos")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, st.Error)
	assert.Equal(t, 401, st.Error.Status)
	assert.Contains(t, st.Error.Message, "invalid key")
	assert.Equal(t, KindVideo, st.Kind)
}

func TestServerBrowseRoute(t *testing.T) {
	api := newFakeSearcher(fixedPages(100, 15))
	srv, client := newTestServer(t, defaultConfig(), api, nil)
	status, _ := getState(t, client, http.MethodGet, srv.URL+"/browse?kind=videos")
	assert.Equal(t, http.StatusNotFound, status)

	cfg := defaultConfig()
	cfg.Search.BrowseWithoutQuery = true
	srv, client = newTestServer(t, cfg, api, nil)
	status, st := getState(t, client, http.MethodGet, srv.URL+"/browse?kind=videos")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, st.Items, 15)
	assert.Equal(t, KindVideo, st.Kind)
	assert.Empty(t, st.Query)
}

func TestServerConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.App.Title = "Stock Finder"
	srv, client := newTestServer(t, cfg, newFakeSearcher(fixedPages(0, 0)), nil)

	res, err := client.Get(srv.URL + "/config")
	require.NoError(t, err)
	defer res.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Stock Finder", body["appTitle"])
}

func TestServerBrotli(t *testing.T) {
	srv, _ := newTestServer(t, defaultConfig(), newFakeSearcher(fixedPages(100, 15)), nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/state", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "br")
	res, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "br", res.Header.Get("Content-Encoding"))
}

func TestServerBasicAuth(t *testing.T) {
	store, cfg := newTestStore(t)
	require.NoError(t, store.AddUser("ana", "s3cret", 1))
	cfg.Auth.Required = true
	api := newFakeSearcher(fixedPages(100, 15))
	srv, client := newTestServer(t, cfg, api, store)

	status, _ := getState(t, client, http.MethodGet, srv.URL+"/state")
	assert.Equal(t, http.StatusUnauthorized, status)

	u := strings.Replace(srv.URL, "http://", "http://ana:s3cret@", 1)
	status, _ = getState(t, client, http.MethodGet, u+"/search?q=cats")
	require.Equal(t, http.StatusOK, status)

	jar, _ := cookiejar.New(nil)
	other := &http.Client{Jar: jar}
	status, st := getState(t, other, http.MethodGet, u+"/state")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cats", st.Query, "sessions follow the user, not the cookie")

	u = strings.Replace(srv.URL, "http://", "http://ana:nope@", 1)
	status, _ = getState(t, client, http.MethodGet, u+"/state")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServerSearchOrientation(t *testing.T) {
	api := newFakeSearcher(fixedPages(100, 15))
	srv, client := newTestServer(t, defaultConfig(), api, nil)

	status, st := getState(t, client, http.MethodGet, srv.URL+"/search?q=faces&kind=photos&orientation=portrait")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, OrientationPortrait, st.Orientation)
	getState(t, client, http.MethodGet, srv.URL+"/more")

	calls := api.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, OrientationPortrait, calls[0].req.Orientation)
	assert.Equal(t, OrientationPortrait, calls[1].req.Orientation)

	status, _ = getState(t, client, http.MethodGet, srv.URL+"/search?q=faces&orientation=diagonal")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, api.recorded(), 2)
}

func TestServerClientHangupKeepsFetch(t *testing.T) {
	api := newFakeSearcher(fixedPages(100, 15))
	srv, client := newTestServer(t, defaultConfig(), api, nil)
	getState(t, client, http.MethodGet, srv.URL+"/search?q=cats")
	waitStarted(t, api)
	gate := api.hold("cats", 2)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/more", nil)
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if res, err := client.Do(req); err == nil {
			res.Body.Close()
		}
	}()
	waitStarted(t, api)
	cancel()
	<-done
	time.Sleep(50 * time.Millisecond)
	close(gate)

	var st stateReply
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, st = getState(t, client, http.MethodGet, srv.URL+"/state")
		if !st.Loading || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, st.Loading)
	assert.Nil(t, st.Error)
	assert.Len(t, st.Items, 30)
	assert.Equal(t, 2, st.Page)
}
