package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lysyi3m/orbit-news/app/article"
)

const favoriteColumns = `id, title, url, image_url, news_site, summary, published_at, updated_at, featured, author_name`

// SQLiteFavoriteRepository handles database operations for favorited articles
type SQLiteFavoriteRepository struct {
	db *DB
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *DB) *SQLiteFavoriteRepository {
	return &SQLiteFavoriteRepository{db: db}
}

// Upsert sanitizes the article and inserts it, fully replacing any row with
// the same id. It returns the article as it is now stored.
func (r *SQLiteFavoriteRepository) Upsert(ctx context.Context, a article.Article) (article.Article, error) {
	clean := a.Sanitized()

	featured := 0
	if clean.Featured {
		featured = 1
	}

	err := withStatement(ctx, r.db.DB, `
		INSERT OR REPLACE INTO articles (`+favoriteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		_, err := stmt.ExecContext(ctx,
			clean.ID,
			nullString(clean.Title),
			nullString(clean.URL),
			nullString(clean.ImageURL),
			nullString(clean.NewsSite),
			nullString(clean.Summary),
			nullString(article.FormatTime(clean.PublishedAt)),
			nullString(clean.UpdatedAt),
			featured,
			nullString(clean.FirstAuthorName()),
		)
		return err
	})
	if err != nil {
		return article.Article{}, fmt.Errorf("failed to upsert favorite %d: %w", a.ID, err)
	}

	row := FavoriteRow{
		ID:          clean.ID,
		Title:       nullString(clean.Title),
		URL:         nullString(clean.URL),
		ImageURL:    nullString(clean.ImageURL),
		NewsSite:    nullString(clean.NewsSite),
		Summary:     nullString(clean.Summary),
		PublishedAt: nullString(article.FormatTime(clean.PublishedAt)),
		UpdatedAt:   nullString(clean.UpdatedAt),
		Featured:    int64(featured),
		AuthorName:  nullString(clean.FirstAuthorName()),
	}

	return row.Article(), nil
}

// Delete removes the favorite with the given id and reports whether a row
// was removed. A missing row is not an error.
func (r *SQLiteFavoriteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	var affected int64
	err := withStatement(ctx, r.db.DB, `DELETE FROM articles WHERE id = ?`, func(stmt *sql.Stmt) error {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete favorite %d: %w", id, err)
	}

	return affected > 0, nil
}

// Get retrieves a favorite by id, returning nil when it does not exist
func (r *SQLiteFavoriteRepository) Get(ctx context.Context, id int64) (*article.Article, error) {
	var row FavoriteRow
	err := withStatement(ctx, r.db.DB, `SELECT `+favoriteColumns+` FROM articles WHERE id = ?`, func(stmt *sql.Stmt) error {
		return stmt.QueryRowContext(ctx, id).Scan(row.scanArgs()...)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite %d: %w", id, err)
	}

	a := row.Article()
	return &a, nil
}

// List returns every stored favorite in storage order
func (r *SQLiteFavoriteRepository) List(ctx context.Context) ([]article.Article, error) {
	articles, err := r.query(ctx, `SELECT `+favoriteColumns+` FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return articles, nil
}

// Search returns favorites whose title contains keyword, ignoring case.
// An empty keyword matches every row, untitled ones included. Case folding
// is SQLite's LIKE folding and covers ASCII letters only.
func (r *SQLiteFavoriteRepository) Search(ctx context.Context, keyword string) ([]article.Article, error) {
	articles, err := r.query(ctx, `
		SELECT `+favoriteColumns+`
		FROM articles
		WHERE COALESCE(title, '') LIKE ? ESCAPE '\'
	`, "%"+escapeLike(keyword)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search favorites: %w", err)
	}
	return articles, nil
}

// Count returns the number of stored favorites
func (r *SQLiteFavoriteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get favorite count: %w", err)
	}
	return count, nil
}

func (r *SQLiteFavoriteRepository) query(ctx context.Context, query string, args ...any) ([]article.Article, error) {
	articles := []article.Article{}

	err := withStatement(ctx, r.db.DB, query, func(stmt *sql.Stmt) error {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row FavoriteRow
			if err := rows.Scan(row.scanArgs()...); err != nil {
				return fmt.Errorf("failed to scan favorite row: %w", err)
			}
			articles = append(articles, row.Article())
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return articles, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
