package database

import (
	"context"

	"github.com/lysyi3m/orbit-news/app/article"
)

type FavoriteRepository interface {
	Upsert(ctx context.Context, a article.Article) (article.Article, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*article.Article, error)
	List(ctx context.Context) ([]article.Article, error)
	Search(ctx context.Context, keyword string) ([]article.Article, error)
	Count(ctx context.Context) (int, error)
}

var _ FavoriteRepository = (*SQLiteFavoriteRepository)(nil)
