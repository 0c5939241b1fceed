package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/orbit-news/app/article"
	"github.com/lysyi3m/orbit-news/app/favorites"
	"github.com/lysyi3m/orbit-news/app/feed"
	"github.com/lysyi3m/orbit-news/app/tasks"
)

const favoritesFeedTitle = "Orbit News favorites"

func NewHandler(sources *feed.Registry, favoritesStore FavoritesStore, generator GeneratorInterface,
	extractor ExtractorInterface, documents DocumentGetter, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sources:   sources,
		favorites: favoritesStore,
		generator: generator,
		extractor: extractor,
		documents: documents,
		scheduler: scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   h.sources.Len(),
	}

	if count, err := h.favorites.Count(c.Request.Context()); err == nil {
		health["favorites"] = count
		health["favorites_available"] = true
	} else {
		health["favorites_available"] = false
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	stores := h.sources.Stores()
	feeds := make([]map[string]interface{}, 0, len(stores))

	for _, store := range stores {
		feedConfig := store.Config()
		state := store.State()

		feeds = append(feeds, map[string]interface{}{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"enabled":          feedConfig.Settings.Enabled,
			"page_size":        feedConfig.Settings.PageSize,
			"refresh_interval": feedConfig.RefreshEvery().String(),
			"timeout":          feedConfig.RequestTimeout().String(),
			"results":          state.ResultCount(),
			"has_more":         state.Page != nil && state.Page.Next != "",
			"is_loading":       state.IsLoading,
			"error_message":    state.ErrorMessage,
			"search_query":     state.SearchQuery,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, store.State())
}

// FetchFeed loads the first page of a feed. The request keeps running when
// the client goes away; its result still lands in the store.
func (h *Handler) FetchFeed(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	limit := store.Config().Settings.PageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	showLoading, ok := loadingParam(c)
	if !ok {
		return
	}

	store.Fetch(context.WithoutCancel(c.Request.Context()), limit, c.Query("search"), showLoading)
	c.JSON(http.StatusOK, store.State())
}

func (h *Handler) LoadMore(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	store.LoadMore(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, store.State())
}

func (h *Handler) SearchFeed(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid search request", "details": err.Error()})
		return
	}

	showLoading := true
	if req.Loading != nil {
		showLoading = *req.Loading
	}

	store.SetSearchQuery(req.Query)
	store.Search(context.WithoutCancel(c.Request.Context()), showLoading)
	c.JSON(http.StatusOK, store.State())
}

// RefreshFeed queues a silent background refresh of a feed.
func (h *Handler) RefreshFeed(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	task := tasks.NewRefreshFeedTask(store)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.ErrorContext(c.Request.Context(), "Error enqueueing refresh task", "feed", store.Name(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refresh task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
			"feed": task.FeedName,
		},
	})
}

// GetArticle prefers the stored favorite copy over the feed item.
func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	a, ok := h.resolveArticle(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) GetReader(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	a, ok := h.resolveArticle(c, id)
	if !ok {
		return
	}

	if a.URL == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Article has no URL"})
		return
	}

	data, err := h.documents.GetDocument(c.Request.Context(), a.URL)
	if errors.Is(err, feed.ErrInvalidURL) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Article URL is invalid", "details": err.Error()})
		return
	}
	if errors.Is(err, feed.ErrBlockedAddress) {
		slog.WarnContext(c.Request.Context(), "Refused article download to non-public address", "id", id, "url", a.URL)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Article URL is not allowed", "details": err.Error()})
		return
	}
	if err != nil {
		slog.WarnContext(c.Request.Context(), "Failed to download article", "id", id, "url", a.URL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to download article", "details": err.Error()})
		return
	}

	readable, err := h.extractor.Run(data, a.URL)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "Failed to extract article", "id", id, "url", a.URL, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to extract article content", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, readerResponse{
		ID:    a.ID,
		Title: a.Title,
		URL:   a.URL,
		Text:  readable.Text,
		HTML:  readable.HTML,
	})
}

func (h *Handler) ListFavorites(c *gin.Context) {
	var (
		list []article.Article
		err  error
	)

	if keyword, ok := c.GetQuery("q"); ok {
		list, err = h.favorites.Search(c.Request.Context(), keyword)
	} else {
		list, err = h.favorites.List(c.Request.Context())
	}
	if err != nil {
		favoritesError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"favorites": list,
		"total":     len(list),
	})
}

func (h *Handler) GetFavorite(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	a, err := h.favorites.Get(c.Request.Context(), id)
	if err != nil {
		favoritesError(c, err)
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Favorite not found"})
		return
	}

	c.JSON(http.StatusOK, a)
}

func (h *Handler) PutFavorite(c *gin.Context) {
	var a article.Article
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article", "details": err.Error()})
		return
	}

	stored, err := h.favorites.Upsert(c.Request.Context(), a)
	if err != nil {
		favoritesError(c, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (h *Handler) DeleteFavorite(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.favorites.Delete(c.Request.Context(), id); err != nil {
		favoritesError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetFavoritesRSS(c *gin.Context) {
	list, err := h.favorites.List(c.Request.Context())
	if err != nil {
		favoritesError(c, err)
		return
	}

	rss, err := h.generator.Run(favoritesFeedTitle, c.Request.URL.Path, list)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(list)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) store(c *gin.Context) (*feed.Store, bool) {
	name := c.Param("name")
	store, ok := h.sources.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found", "feed": name})
		return nil, false
	}
	return store, true
}

// resolveArticle looks the id up in favorites first, then in the feed named
// by ?feed= or, without it, in every feed.
func (h *Handler) resolveArticle(c *gin.Context, id int64) (article.Article, bool) {
	stored, err := h.favorites.Get(c.Request.Context(), id)
	if err != nil && !errors.Is(err, favorites.ErrUnavailable) {
		slog.WarnContext(c.Request.Context(), "Favorite lookup failed, using feed copy", "id", id, "error", err)
	}
	if stored != nil {
		return *stored, true
	}

	stores := h.sources.Stores()
	if name := c.Query("feed"); name != "" {
		store, ok := h.sources.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found", "feed": name})
			return article.Article{}, false
		}
		stores = []*feed.Store{store}
	}

	for _, store := range stores {
		if a, ok := store.State().Find(id); ok {
			return a, true
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
	return article.Article{}, false
}

func favoritesError(c *gin.Context, err error) {
	if errors.Is(err, favorites.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Favorites storage is unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return 0, false
	}
	return id, true
}

func loadingParam(c *gin.Context) (bool, bool) {
	raw := c.Query("loading")
	if raw == "" {
		return true, true
	}
	showLoading, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "loading must be a boolean"})
		return false, false
	}
	return showLoading, true
}
