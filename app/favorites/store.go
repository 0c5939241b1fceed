// Package favorites keeps the user's favorited articles: a durable table
// behind a repository plus the materialized list the presentation layer
// reads from.
package favorites

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v2"
	"github.com/samber/lo"

	"github.com/lysyi3m/orbit-news/app/article"
	"github.com/lysyi3m/orbit-news/app/database"
)

// ErrUnavailable is returned by every operation of a store whose database
// could not be opened.
var ErrUnavailable = errors.New("favorites database is unavailable")

const (
	lookupTTL     = 5 * time.Minute
	lookupMaxKeys = 256
)

// Store owns the favorites table and the in-memory favorites list.
// The list is refreshed by List and Search only; it is not live-synced with
// writers outside this store.
type Store struct {
	repo    database.FavoriteRepository
	lookups cache.Cache[int64, article.Article]

	// writeMu pairs every repository call with its cache update, so a
	// lookup that read a row cannot cache it after a delete of that row.
	writeMu sync.Mutex

	mu        sync.RWMutex
	favorites []article.Article
}

// NewStore creates a store on top of repo. A nil repo produces a store that
// stays empty and fails every operation with ErrUnavailable.
func NewStore(repo database.FavoriteRepository) *Store {
	return &Store{
		repo: repo,
		lookups: cache.NewCache[int64, article.Article]().
			WithLRU().
			WithMaxKeys(lookupMaxKeys).
			WithTTL(lookupTTL),
		favorites: []article.Article{},
	}
}

// Available reports whether the store has a working database behind it.
func (s *Store) Available() bool {
	return s.repo != nil
}

// Favorites returns a copy of the materialized favorites list.
func (s *Store) Favorites() []article.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]article.Article, len(s.favorites))
	copy(result, s.favorites)
	return result
}

// Upsert stores a, replacing any favorite with the same id, and reflects
// the stored (sanitized) value in the favorites list.
func (s *Store) Upsert(ctx context.Context, a article.Article) (article.Article, error) {
	if !s.Available() {
		slog.ErrorContext(ctx, "Favorites database unavailable", "operation", "upsert", "id", a.ID)
		return article.Article{}, ErrUnavailable
	}

	s.writeMu.Lock()
	stored, err := s.repo.Upsert(ctx, a)
	if err != nil {
		s.writeMu.Unlock()
		slog.ErrorContext(ctx, "Failed to upsert favorite", "id", a.ID, "error", err)
		return article.Article{}, err
	}
	s.lookups.Set(stored.ID, stored, 0)
	s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.favorites {
		if s.favorites[i].ID == stored.ID {
			s.favorites[i] = stored
			replaced = true
		}
	}
	if !replaced {
		s.favorites = append(s.favorites, stored)
	}

	slog.DebugContext(ctx, "Favorite stored", "id", stored.ID, "title", stored.Title)
	return stored, nil
}

// Delete removes the favorite with the given id. Deleting an id that is not
// stored is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if !s.Available() {
		slog.ErrorContext(ctx, "Favorites database unavailable", "operation", "delete", "id", id)
		return ErrUnavailable
	}

	s.writeMu.Lock()
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.writeMu.Unlock()
		slog.ErrorContext(ctx, "Failed to delete favorite", "id", id, "error", err)
		return err
	}
	s.lookups.Invalidate(id)
	s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = lo.Reject(s.favorites, func(f article.Article, _ int) bool { return f.ID == id })

	slog.DebugContext(ctx, "Favorite deleted", "id", id, "existed", deleted)
	return nil
}

// Get returns the stored copy of the article with the given id, or nil when
// it is not a favorite.
func (s *Store) Get(ctx context.Context, id int64) (*article.Article, error) {
	if !s.Available() {
		slog.ErrorContext(ctx, "Favorites database unavailable", "operation", "get", "id", id)
		return nil, ErrUnavailable
	}

	if a, ok := s.lookups.Get(id); ok {
		return &a, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get favorite", "id", id, "error", err)
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	s.lookups.Set(id, *a, 0)
	return a, nil
}

// List replaces the favorites list with every stored favorite.
func (s *Store) List(ctx context.Context) ([]article.Article, error) {
	return s.reload(ctx, "list", func() ([]article.Article, error) {
		return s.repo.List(ctx)
	})
}

// Search replaces the favorites list with the favorites whose title contains
// keyword, ignoring case. An empty keyword matches everything.
func (s *Store) Search(ctx context.Context, keyword string) ([]article.Article, error) {
	return s.reload(ctx, "search", func() ([]article.Article, error) {
		return s.repo.Search(ctx, keyword)
	})
}

// Count returns the number of stored favorites.
func (s *Store) Count(ctx context.Context) (int, error) {
	if !s.Available() {
		return 0, ErrUnavailable
	}
	return s.repo.Count(ctx)
}

func (s *Store) reload(ctx context.Context, operation string, load func() ([]article.Article, error)) ([]article.Article, error) {
	if !s.Available() {
		slog.ErrorContext(ctx, "Favorites database unavailable", "operation", operation)
		return []article.Article{}, ErrUnavailable
	}

	articles, err := load()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load favorites", "operation", operation, "error", err)
		return s.Favorites(), err
	}

	s.mu.Lock()
	s.favorites = articles
	s.mu.Unlock()

	result := make([]article.Article, len(articles))
	copy(result, articles)
	return result, nil
}
