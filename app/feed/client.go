package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"

	"github.com/lysyi3m/orbit-news/app/article"
	"github.com/lysyi3m/orbit-news/app/logging"
)

// ErrInvalidURL is returned when a page URL cannot be built or is not an
// absolute http(s) URL. No request is sent in that case.
var ErrInvalidURL = errors.New("invalid feed URL")

const maxPageBytes = 10 << 20

// Client fetches feed envelopes and article documents over HTTP.
type Client struct {
	rq *requester.Requester
}

func NewClient(timeout time.Duration, userAgent string, opts ...ClientOption) *Client {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := http.Client{Timeout: timeout}
	if o.publicOnly {
		httpClient.Transport = publicOnlyTransport(timeout)
	}

	return &Client{
		rq: requester.New(
			httpClient,
			middleware.Header("User-Agent", userAgent),
			middleware.Header("Accept", "application/json"),
			logging.RoundTripper(slog.Default(), logging.RoundTripperOpts{Level: slog.LevelDebug}),
		),
	}
}

// PageURL builds the first-page request for base: newest first, limit
// results, filtered by the trimmed search text when it is not empty.
func PageURL(base string, limit int, search string) (string, error) {
	u, err := parseAbsolute(base)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("_limit", strconv.Itoa(limit))
	q.Set("_sort", "publishedAt:desc")
	if term := strings.TrimSpace(search); term != "" {
		q.Set("search", term)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// GetPage downloads and decodes one feed envelope. rawURL is used verbatim.
func (c *Client) GetPage(ctx context.Context, rawURL string) (*article.Page, error) {
	if _, err := parseAbsolute(rawURL); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var page article.Page
	if err := json.NewDecoder(io.LimitReader(body, maxPageBytes)).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}

	return &page, nil
}

// GetDocument downloads an article web page for the reader view.
func (c *Client) GetDocument(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := parseAbsolute(rawURL); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := c.rq.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, nil
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}
