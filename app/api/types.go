package api

import (
	"context"

	"github.com/lysyi3m/orbit-news/app/article"
	"github.com/lysyi3m/orbit-news/app/favorites"
	"github.com/lysyi3m/orbit-news/app/feed"
	"github.com/lysyi3m/orbit-news/app/tasks"
)

type GeneratorInterface interface {
	Run(title, path string, articles []article.Article) (string, error)
}

type ExtractorInterface interface {
	Run(data []byte, pageURL string) (*feed.Readable, error)
}

type DocumentGetter interface {
	GetDocument(ctx context.Context, rawURL string) ([]byte, error)
}

type FavoritesStore interface {
	Upsert(ctx context.Context, a article.Article) (article.Article, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*article.Article, error)
	List(ctx context.Context) ([]article.Article, error)
	Search(ctx context.Context, keyword string) ([]article.Article, error)
	Count(ctx context.Context) (int, error)
}

var (
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ ExtractorInterface = (*feed.ContentExtractor)(nil)
	_ DocumentGetter     = (*feed.Client)(nil)
	_ FavoritesStore     = (*favorites.Store)(nil)
)

type Handler struct {
	sources   *feed.Registry
	favorites FavoritesStore
	generator GeneratorInterface
	extractor ExtractorInterface
	documents DocumentGetter
	scheduler tasks.TaskSchedulerInterface
}

type searchRequest struct {
	Query   string `json:"query"`
	Loading *bool  `json:"loading"`
}

type readerResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
}
