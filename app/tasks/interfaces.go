package tasks

import (
	"context"

	"github.com/lysyi3m/orbit-news/app/article"
	"github.com/lysyi3m/orbit-news/app/feed"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to keep feed sources fresh in the background.
// Example usage:
//
//	scheduler := NewScheduler(sources, favoritesStore, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshFeedTask(source))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// FeedSource is a feed whose current view can be refreshed silently.
type FeedSource interface {
	Name() string
	Config() *feed.Config
	Search(ctx context.Context, showLoading bool)
	State() feed.State
}

// FavoritesLoader reloads the materialized favorites list.
type FavoritesLoader interface {
	List(ctx context.Context) ([]article.Article, error)
}
