package database

import (
	"database/sql"

	"github.com/lysyi3m/orbit-news/app/article"
)

// FavoriteRow is a row of the articles table as it is scanned.
type FavoriteRow struct {
	ID          int64
	Title       sql.NullString
	URL         sql.NullString
	ImageURL    sql.NullString
	NewsSite    sql.NullString
	Summary     sql.NullString
	PublishedAt sql.NullString
	UpdatedAt   sql.NullString
	Featured    int64
	AuthorName  sql.NullString
}

func (r *FavoriteRow) scanArgs() []any {
	return []any{
		&r.ID, &r.Title, &r.URL, &r.ImageURL, &r.NewsSite, &r.Summary,
		&r.PublishedAt, &r.UpdatedAt, &r.Featured, &r.AuthorName,
	}
}

// Article rebuilds the stored article. Text columns are sanitized again on
// the way out so rows written by other tools cannot leak control bytes.
func (r FavoriteRow) Article() article.Article {
	a := article.Article{
		ID:          r.ID,
		Title:       article.Sanitize(r.Title.String),
		URL:         article.Sanitize(r.URL.String),
		ImageURL:    article.Sanitize(r.ImageURL.String),
		NewsSite:    article.Sanitize(r.NewsSite.String),
		Summary:     article.Sanitize(r.Summary.String),
		PublishedAt: article.ParseTime(article.Sanitize(r.PublishedAt.String)),
		UpdatedAt:   article.Sanitize(r.UpdatedAt.String),
		Featured:    r.Featured == 1,
		IsFavorite:  true,
	}

	if name := article.Sanitize(r.AuthorName.String); name != "" {
		a.Authors = []article.Author{{Name: name}}
	}

	return a
}
