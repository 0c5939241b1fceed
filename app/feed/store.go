package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lysyi3m/orbit-news/app/article"
)

// PageGetter fetches one feed envelope from an absolute URL.
type PageGetter interface {
	GetPage(ctx context.Context, rawURL string) (*article.Page, error)
}

// Store keeps the paginated article feed of one source together with its
// loading, error and search state. Failures never escape a Store operation;
// they are recorded in the state's ErrorMessage.
//
// Every Fetch takes a new generation. A response is applied only while its
// generation is still the latest one, so the last issued Fetch wins.
// LoadMore runs only once the latest Fetch has settled, so it never
// continues a cursor that belongs to a superseded query.
type Store struct {
	config *Config
	pages  PageGetter

	mu           sync.Mutex
	page         *article.Page
	loading      bool
	moreInFlight bool
	errMsg       string
	query        string
	generation   uint64
	settled      uint64 // generation of the latest finished Fetch
}

func NewStore(config *Config, pages PageGetter) *Store {
	return &Store{config: config, pages: pages}
}

func (s *Store) Name() string {
	return s.config.Name
}

func (s *Store) Config() *Config {
	return s.config
}

// State returns a snapshot that shares no memory with the store.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Page:         s.page.Clone(),
		IsLoading:    s.loading,
		ErrorMessage: s.errMsg,
		SearchQuery:  s.query,
	}
}

func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
}

// Fetch replaces the current page with the first page of the feed, limited
// to limit results and filtered by searchText. showLoading controls whether
// the request is visible through IsLoading.
func (s *Store) Fetch(ctx context.Context, limit int, searchText string, showLoading bool) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.errMsg = ""
	s.loading = showLoading
	s.mu.Unlock()

	rawURL, err := PageURL(s.config.URL, limit, searchText)
	if err != nil {
		s.finishFetch(ctx, gen, nil, err)
		return
	}

	page, err := s.pages.GetPage(ctx, rawURL)
	s.finishFetch(ctx, gen, page, err)
}

func (s *Store) finishFetch(ctx context.Context, gen uint64, page *article.Page, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		slog.DebugContext(ctx, "Discarding stale feed response", "feed", s.config.Name, "generation", gen, "latest", s.generation)
		return
	}

	s.settled = gen
	s.loading = false
	if err != nil {
		s.errMsg = err.Error()
		slog.WarnContext(ctx, "Feed fetch failed", "feed", s.config.Name, "error", err)
		return
	}

	s.page = page
	slog.DebugContext(ctx, "Feed page loaded", "feed", s.config.Name, "results", len(page.Results), "has_next", page.Next != "")
}

// LoadMore appends the next page to the current results. It does nothing
// while another request is in flight, visible or silent, or when there is
// no next page.
func (s *Store) LoadMore(ctx context.Context) {
	s.mu.Lock()
	fetchPending := s.settled != s.generation
	if s.loading || fetchPending || s.moreInFlight || s.page == nil || s.page.Next == "" {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.moreInFlight = true
	s.errMsg = ""
	gen := s.generation
	next := s.page.Next
	s.mu.Unlock()

	page, err := s.pages.GetPage(ctx, next)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.moreInFlight = false

	if gen != s.generation {
		slog.DebugContext(ctx, "Discarding load-more superseded by fetch", "feed", s.config.Name)
		return
	}

	s.loading = false
	if err != nil {
		s.errMsg = err.Error()
		slog.WarnContext(ctx, "Feed load-more failed", "feed", s.config.Name, "error", err)
		return
	}

	merged := s.page.Clone()
	merged.Results = append(merged.Results, page.Results...)
	merged.Next = page.Next
	merged.Previous = page.Previous
	if page.Count != nil {
		merged.Count = page.Count
	}
	s.page = merged

	slog.DebugContext(ctx, "Feed page appended", "feed", s.config.Name, "added", len(page.Results), "total", len(merged.Results))
}

// Search re-fetches with the current search query, keeping as many results
// as are loaded now (or one page when nothing is loaded).
func (s *Store) Search(ctx context.Context, showLoading bool) {
	s.mu.Lock()
	query := s.query
	limit := s.config.Settings.PageSize
	if s.page != nil && len(s.page.Results) > 0 {
		limit = len(s.page.Results)
	}
	s.mu.Unlock()

	s.Fetch(ctx, limit, query, showLoading)
}
