package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type RefreshFeedTask struct {
	Task
	source FeedSource
}

func NewRefreshFeedTask(source FeedSource) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:   NewTask(TaskTypeRefreshFeed, source.Name()),
		source: source,
	}
}

// Execute re-runs the source's current search without the loading indicator.
// A failure recorded by the store is returned so the scheduler can retry.
func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.source.Config().Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	t.source.Search(ctx, false)

	state := t.source.State()
	if state.ErrorMessage != "" {
		return fmt.Errorf("failed to refresh feed: %w", errors.New(state.ErrorMessage))
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"results", state.ResultCount(),
		"query", state.SearchQuery)

	return nil
}
