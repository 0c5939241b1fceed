package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/orbit-news/app/article"
	"github.com/lysyi3m/orbit-news/app/database"
	"github.com/lysyi3m/orbit-news/app/favorites"
	"github.com/lysyi3m/orbit-news/app/feed"
	"github.com/lysyi3m/orbit-news/app/tasks"
)

const readerHTML = `<html><head><title>Moon</title></head><body><article>
<p>Artemis II will carry four astronauts around the Moon and back, the first crewed lunar flight in more than fifty years.</p>
<p>The Orion capsule and the Space Launch System rocket are being stacked at Kennedy Space Center ahead of the launch window.</p>
<p>Mission managers said the heat shield investigation is complete and the crew continues training in Houston.</p>
</article></body></html>`

type fakeScheduler struct {
	enqueued []tasks.TaskInterface
	err      error
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}
func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

type testEnv struct {
	router    http.Handler
	remote    *httptest.Server
	favorites *favorites.Store
	scheduler *fakeScheduler
}

// remoteAPI serves two pages of articles plus an article web page.
func remoteAPI(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/articles":
			search := r.URL.Query().Get("search")
			page := article.Page{
				Next: srv.URL + "/v4/articles/page2",
				Results: []article.Article{
					{ID: 1, Title: "Starship flight 9" + search, URL: srv.URL + "/story/1"},
					{ID: 2, Title: "Artemis II crew", URL: srv.URL + "/story/2"},
				},
			}
			if r.URL.Query().Get("_limit") == "1" {
				page.Results = page.Results[:1]
			}
			_ = json.NewEncoder(w).Encode(page)
		case "/v4/articles/page2":
			_ = json.NewEncoder(w).Encode(article.Page{Results: []article.Article{
				{ID: 3, Title: "Mars sample return"},
				{ID: 4, Title: "Europa Clipper"},
			}})
		case "/story/1", "/story/2":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(readerHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEnv(t *testing.T, apiKey string, favoritesAvailable bool) *testEnv {
	t.Helper()

	remote := remoteAPI(t)
	client := feed.NewClient(5*time.Second, "OrbitNews/test")

	registry := feed.NewRegistry([]*feed.Config{
		{Name: "articles", URL: remote.URL + "/v4/articles", Settings: feed.ConfigSettings{Enabled: true, PageSize: 2, Timeout: 5}},
		{Name: "broken", URL: remote.URL + "/missing", Settings: feed.ConfigSettings{Enabled: true, PageSize: 2, Timeout: 5}},
	}, func(*feed.Config) feed.PageGetter { return client })

	favStore := favorites.NewStore(nil)
	if favoritesAvailable {
		db, err := database.NewConnection(filepath.Join(t.TempDir(), "api.sqlite"), 5*time.Second)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		_, _, err = database.RunMigrations(db)
		require.NoError(t, err)
		favStore = favorites.NewStore(database.NewFavoriteRepository(db))
	}

	scheduler := &fakeScheduler{}
	handler := NewHandler(registry, favStore, feed.NewGenerator("https://orbit.example.com", "test"),
		feed.NewContentExtractor(), client, scheduler)

	return &testEnv{
		router:    NewServer(handler, apiKey),
		remote:    remote,
		favorites: favStore,
		scheduler: scheduler,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) feed.State {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state feed.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func ids(state feed.State) []int64 {
	var result []int64
	if state.Page == nil {
		return result
	}
	for _, a := range state.Page.Results {
		result = append(result, a.ID)
	}
	return result
}

func TestFeedEndpoints(t *testing.T) {
	env := newTestEnv(t, "", true)

	state := decodeState(t, env.do(t, http.MethodGet, "/feeds/articles", nil))
	assert.Nil(t, state.Page)

	state = decodeState(t, env.do(t, http.MethodPost, "/feeds/articles/fetch?limit=2&loading=false", nil))
	assert.Equal(t, []int64{1, 2}, ids(state))
	assert.False(t, state.IsLoading)

	state = decodeState(t, env.do(t, http.MethodPost, "/feeds/articles/more", nil))
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(state))
	assert.Empty(t, state.Page.Next)

	// nothing left to load
	state = decodeState(t, env.do(t, http.MethodPost, "/feeds/articles/more", nil))
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(state))

	state = decodeState(t, env.do(t, http.MethodPost, "/feeds/articles/search", map[string]any{"query": " mars "}))
	assert.Equal(t, " mars ", state.SearchQuery)
	require.NotNil(t, state.Page)
	assert.Equal(t, "Starship flight 9mars", state.Page.Results[0].Title, "search term is trimmed before sending")

	state = decodeState(t, env.do(t, http.MethodPost, "/feeds/broken/fetch", nil))
	assert.Contains(t, state.ErrorMessage, "unexpected status 404")
	assert.Nil(t, state.Page)

	rec := env.do(t, http.MethodGet, "/feeds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Feeds []map[string]any `json:"feeds"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "articles", list.Feeds[0]["name"])
	assert.Equal(t, float64(2), list.Feeds[0]["results"])
	assert.Equal(t, "broken", list.Feeds[1]["name"])
	assert.NotEmpty(t, list.Feeds[1]["error_message"])
}

func TestFeedEndpoints_BadInput(t *testing.T) {
	env := newTestEnv(t, "", true)

	tests := []struct {
		method, target string
		body           any
		code           int
	}{
		{http.MethodGet, "/feeds/unknown", nil, http.StatusNotFound},
		{http.MethodPost, "/feeds/unknown/more", nil, http.StatusNotFound},
		{http.MethodPost, "/feeds/articles/fetch?limit=0", nil, http.StatusBadRequest},
		{http.MethodPost, "/feeds/articles/fetch?limit=abc", nil, http.StatusBadRequest},
		{http.MethodPost, "/feeds/articles/fetch?loading=maybe", nil, http.StatusBadRequest},
		{http.MethodPost, "/feeds/articles/search", "not an object", http.StatusBadRequest},
		{http.MethodGet, "/articles/abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/favorites/abc", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestFavoritesEndpoints(t *testing.T) {
	env := newTestEnv(t, "", true)

	published := time.Date(2025, 4, 19, 10, 30, 0, 0, time.UTC)
	rec := env.do(t, http.MethodPut, "/favorites", map[string]any{
		"id":           101,
		"title":        "Hello\u0000World\u001F",
		"url":          "https://example.com/a",
		"published_at": published.Format(time.RFC3339),
		"authors":      []map[string]string{{"name": "Jane Roe"}, {"name": "John Doe"}},
		"is_favorite":  false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored article.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, "HelloWorld", stored.Title)

	rec = env.do(t, http.MethodGet, "/favorites/101", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "HelloWorld", got["title"])
	assert.Equal(t, true, got["is_favorite"])
	assert.Len(t, got["authors"], 1)

	_ = env.do(t, http.MethodPut, "/favorites", map[string]any{"id": 102, "title": "Swift Testing Search"})

	rec = env.do(t, http.MethodGet, "/favorites?q=swift", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found struct {
		Favorites []article.Article `json:"favorites"`
		Total     int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Equal(t, 1, found.Total)
	assert.Equal(t, int64(102), found.Favorites[0].ID)

	rec = env.do(t, http.MethodGet, "/favorites?q=zzz-no-match", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Zero(t, found.Total)
	assert.NotNil(t, found.Favorites)

	rec = env.do(t, http.MethodGet, "/favorites", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Equal(t, 2, found.Total)

	rec = env.do(t, http.MethodGet, "/rss/favorites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")
	assert.Equal(t, "2", rec.Header().Get("X-Feed-Items"))
	parsed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Len(t, parsed.Items, 2)

	rec = env.do(t, http.MethodDelete, "/favorites/101", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/favorites/999", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "deleting a missing favorite is not an error")

	rec = env.do(t, http.MethodGet, "/favorites/101", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, float64(1), health["favorites"])
	assert.Equal(t, float64(2), health["sources"])
	assert.Equal(t, true, health["favorites_available"])
}

func TestFavoritesEndpoints_Unavailable(t *testing.T) {
	env := newTestEnv(t, "", false)

	for _, tt := range []struct{ method, target string }{
		{http.MethodGet, "/favorites"},
		{http.MethodGet, "/favorites?q=x"},
		{http.MethodGet, "/favorites/1"},
		{http.MethodDelete, "/favorites/1"},
		{http.MethodGet, "/rss/favorites"},
	} {
		rec := env.do(t, tt.method, tt.target, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tt.target)
	}

	rec := env.do(t, http.MethodPut, "/favorites", map[string]any{"id": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"favorites_available":false`)

	// articles still resolve from the feed
	decodeState(t, env.do(t, http.MethodPost, "/feeds/articles/fetch", nil))
	rec = env.do(t, http.MethodGet, "/articles/2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArticleEndpoints(t *testing.T) {
	env := newTestEnv(t, "", true)
	decodeState(t, env.do(t, http.MethodPost, "/feeds/articles/fetch", nil))

	rec := env.do(t, http.MethodGet, "/articles/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a article.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "Artemis II crew", a.Title)
	assert.Contains(t, rec.Body.String(), `"is_favorite":false`)

	_, err := env.favorites.Upsert(context.Background(), article.Article{ID: 2, Title: "Artemis II crew (saved)", URL: a.URL})
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/articles/2?feed=articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "(saved)", "stored favorite copy wins")
	assert.Contains(t, rec.Body.String(), `"is_favorite":true`)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/articles/77", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/articles/1?feed=unknown", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/articles/1?feed=broken", nil).Code)

	rec = env.do(t, http.MethodGet, "/articles/1/reader", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reader readerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reader))
	assert.Equal(t, int64(1), reader.ID)
	assert.Contains(t, reader.Text, "Orion capsule")
	assert.NotEmpty(t, reader.HTML)

	_, err = env.favorites.Upsert(context.Background(), article.Article{ID: 5, Title: "No link"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodGet, "/articles/5/reader", nil).Code)

	_, err = env.favorites.Upsert(context.Background(), article.Article{ID: 6, URL: env.remote.URL + "/gone"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/articles/6/reader", nil).Code)
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t, "", true)

	rec := env.do(t, http.MethodPost, "/feeds/articles/refresh", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, env.scheduler.enqueued, 1)
	assert.Equal(t, tasks.TaskTypeRefreshFeed, env.scheduler.enqueued[0].GetType())
	assert.Equal(t, "articles", env.scheduler.enqueued[0].GetFeedName())

	env.scheduler.err = errors.New("task queue is full")
	rec = env.do(t, http.MethodPost, "/feeds/articles/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "s3cret", true)

	tests := []struct {
		name    string
		headers []string
		code    int
	}{
		{name: "missing key", code: http.StatusUnauthorized},
		{name: "wrong key", headers: []string{"X-API-Key", "nope"}, code: http.StatusUnauthorized},
		{name: "header key", headers: []string{"X-API-Key", "s3cret"}, code: http.StatusOK},
		{name: "bearer key", headers: []string{"Authorization", "Bearer s3cret"}, code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/feeds/articles/more", nil, tt.headers...)
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPut, "/favorites", map[string]any{"id": 1}).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, "/favorites/1", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/favorites", nil).Code, "reads stay public")
}

func TestServerMiddleware(t *testing.T) {
	env := newTestEnv(t, "", true)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, http.MethodGet, "/health", nil, requestIDHeader, "given-id")
	assert.Equal(t, "given-id", rec.Header().Get(requestIDHeader))

	rec = env.do(t, http.MethodOptions, "/favorites", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE"))

	rec = env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"Orbit News"`)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodGet, "/favicon.ico", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/nope/%d", 1), nil).Code)
}

func TestReaderRefusesNonPublicTargets(t *testing.T) {
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "reader.sqlite"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)
	favStore := favorites.NewStore(database.NewFavoriteRepository(db))

	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(readerHTML))
	}))
	t.Cleanup(internal.Close)

	registry := feed.NewRegistry(nil, func(*feed.Config) feed.PageGetter { return nil })
	handler := NewHandler(registry, favStore, feed.NewGenerator("https://orbit.example.com", "test"),
		feed.NewContentExtractor(), feed.NewClient(5*time.Second, "OrbitNews/test", feed.PublicOnly()), &fakeScheduler{})
	router := NewServer(handler, "")

	targets := map[int64]string{
		1: internal.URL + "/story/1",
		2: "http://169.254.169.254/latest/meta-data/",
		3: "http://localhost:1/admin",
	}
	for id, target := range targets {
		_, err := favStore.Upsert(context.Background(), article.Article{ID: id, Title: "Internal", URL: target})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/articles/%d/reader", id), nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Article URL is not allowed", target)
	}
}
