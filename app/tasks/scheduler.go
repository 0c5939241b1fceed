package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	sources     []FeedSource
	favorites   FavoritesLoader
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu          sync.Mutex
	lastRefresh map[string]time.Time
	inFlight    map[string]bool
}

func NewScheduler(sources []FeedSource, favorites FavoritesLoader, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount < 1 {
		workerCount = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Scheduler{
		sources:     sources,
		favorites:   favorites,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		lastRefresh: make(map[string]time.Time),
		inFlight:    make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks(time.Now())
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.favorites != nil {
		if err := s.EnqueueTask(NewSyncFavoritesTask(s.favorites)); err != nil {
			slog.Warn("Failed to enqueue SyncFavoritesTask", "error", err)
		}
	}

	if len(s.sources) == 0 {
		slog.Debug("No feed sources configured")
		return
	}

	slog.Debug("Loading feed sources", "count", len(s.sources))

	for _, source := range s.sources {
		if !source.Config().Settings.Enabled {
			slog.Debug("Feed disabled, skipping RefreshFeedTask", "feed", source.Name())
			continue
		}
		s.enqueueRefresh(source)
	}
}

// enqueueTasks schedules a refresh for every enabled source whose refresh
// interval elapsed at now.
func (s *Scheduler) enqueueTasks(now time.Time) {
	for _, source := range s.sources {
		settings := source.Config().Settings
		if !settings.Enabled || settings.RefreshInterval <= 0 {
			continue
		}

		s.mu.Lock()
		last, seen := s.lastRefresh[source.Name()]
		s.mu.Unlock()

		if seen && now.Sub(last) < source.Config().RefreshEvery() {
			slog.Debug("Feed not due for refresh yet", "feed", source.Name(), "last_refresh", last)
			continue
		}

		s.enqueueRefresh(source)
	}
}

func (s *Scheduler) enqueueRefresh(source FeedSource) {
	s.mu.Lock()
	if s.inFlight[source.Name()] {
		s.mu.Unlock()
		slog.Debug("Refresh already queued", "feed", source.Name())
		return
	}
	s.inFlight[source.Name()] = true
	s.mu.Unlock()

	if err := s.EnqueueTask(NewRefreshFeedTask(source)); err != nil {
		s.markDone(source.Name())
		slog.Warn("Failed to enqueue RefreshFeedTask", "feed", source.Name(), "error", err)
	}
}

func (s *Scheduler) markDone(feedName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, feedName)
	s.lastRefresh[feedName] = time.Now()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.finish(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.finish(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := RetryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-timer.C:
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			s.finish(task)
		}
	}()
}

func (s *Scheduler) finish(task TaskInterface) {
	if task.GetType() == TaskTypeRefreshFeed {
		s.markDone(task.GetFeedName())
	}
}

// RetryDelay is the backoff before the given retry attempt: 1s, 2s, 4s and
// so on, capped at 30s.
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	if retryCount > 6 {
		return 30 * time.Second
	}
	retryDelay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}
	return retryDelay
}
