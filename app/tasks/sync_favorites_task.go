package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/orbit-news/app/favorites"
)

type SyncFavoritesTask struct {
	Task
	favorites FavoritesLoader
}

func NewSyncFavoritesTask(favorites FavoritesLoader) *SyncFavoritesTask {
	return &SyncFavoritesTask{
		Task:      NewTask(TaskTypeSyncFavorites, ""),
		favorites: favorites,
	}
}

func (t *SyncFavoritesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	loaded, err := t.favorites.List(ctx)
	if errors.Is(err, favorites.ErrUnavailable) {
		slog.Warn("Favorites database unavailable, nothing to sync")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncFavorites",
		"duration", t.GetDuration(),
		"favorites", len(loaded))

	return nil
}
