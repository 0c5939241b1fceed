package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		limit  int
		search string
		want   url.Values
	}{
		{
			name:  "no search",
			base:  "https://api.example.com/v4/articles",
			limit: 10,
			want:  url.Values{"_limit": {"10"}, "_sort": {"publishedAt:desc"}},
		},
		{
			name:   "trimmed search",
			base:   "https://api.example.com/v4/articles",
			limit:  4,
			search: "  starship flight ",
			want:   url.Values{"_limit": {"4"}, "_sort": {"publishedAt:desc"}, "search": {"starship flight"}},
		},
		{
			name:   "blank search is dropped",
			base:   "https://api.example.com/v4/articles",
			limit:  2,
			search: "   ",
			want:   url.Values{"_limit": {"2"}, "_sort": {"publishedAt:desc"}},
		},
		{
			name:  "existing query kept",
			base:  "https://api.example.com/v4/articles?news_site=NASA",
			limit: 2,
			want:  url.Values{"_limit": {"2"}, "_sort": {"publishedAt:desc"}, "news_site": {"NASA"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PageURL(tt.base, tt.limit, tt.search)
			require.NoError(t, err)

			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, "api.example.com", u.Host)
			assert.Equal(t, "/v4/articles", u.Path)
			assert.Equal(t, tt.want, u.Query())
		})
	}
}

func TestPageURL_Invalid(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative", "ftp://example.com/x", "https://", "http://[::1"} {
		_, err := PageURL(base, 10, "")
		assert.ErrorIs(t, err, ErrInvalidURL, "base %q", base)
	}
}

func TestClient_GetPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OrbitNews/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "publishedAt:desc", r.URL.Query().Get("_sort"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 3, "next": "https://api.example.com/next", "previous": null,
			"results": [{"id": 1, "title": "One"}, {"id": 2, "title": "Two", "published_at": "invalid-date"}]}`))
	}))
	defer ts.Close()

	client := NewClient(5*time.Second, "OrbitNews/test")
	rawURL, err := PageURL(ts.URL, 2, "")
	require.NoError(t, err)

	page, err := client.GetPage(context.Background(), rawURL)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	require.NotNil(t, page.Count)
	assert.Equal(t, 3, *page.Count)
	assert.Equal(t, "https://api.example.com/next", page.Next)
	assert.Empty(t, page.Previous)
	assert.Nil(t, page.Results[1].PublishedAt)
}

func TestClient_GetPageFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			http.Error(w, "boom", http.StatusBadGateway)
		case "/garbage":
			_, _ = w.Write([]byte(`<html>not json</html>`))
		case "/shape":
			_, _ = w.Write([]byte(`{"results": {"id": 1}}`))
		}
	}))
	defer ts.Close()

	client := NewClient(5*time.Second, "OrbitNews/test")
	ctx := context.Background()

	_, err := client.GetPage(ctx, ts.URL+"/status")
	assert.ErrorContains(t, err, "unexpected status 502")

	_, err = client.GetPage(ctx, ts.URL+"/garbage")
	assert.ErrorContains(t, err, "failed to decode feed page")

	_, err = client.GetPage(ctx, ts.URL+"/shape")
	assert.ErrorContains(t, err, "failed to decode feed page")

	_, err = client.GetPage(ctx, "mailto:someone@example.com")
	assert.ErrorIs(t, err, ErrInvalidURL)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = client.GetPage(ctx, closed.URL)
	assert.ErrorContains(t, err, "failed to fetch")
}

func TestClient_GetDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer ts.Close()

	client := NewClient(5*time.Second, "OrbitNews/test")

	data, err := client.GetDocument(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>hi</body></html>", string(data))

	_, err = client.GetDocument(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestClient_PublicOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>internal</body></html>"))
	}))
	defer srv.Close()

	open := NewClient(5*time.Second, "OrbitNews/test")
	_, err := open.GetDocument(context.Background(), srv.URL)
	require.NoError(t, err)

	guarded := NewClient(5*time.Second, "OrbitNews/test", PublicOnly())
	_, err = guarded.GetDocument(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlockedAddress)

	// host names are checked after resolution
	_, err = guarded.GetDocument(context.Background(), "http://localhost:1/latest/meta-data")
	assert.ErrorIs(t, err, ErrBlockedAddress)
}

func TestCheckPublicAddress(t *testing.T) {
	tests := []struct {
		address string
		public  bool
	}{
		{"127.0.0.1:80", false},
		{"[::1]:443", false},
		{"10.1.2.3:80", false},
		{"172.16.0.1:80", false},
		{"192.168.1.1:80", false},
		{"169.254.169.254:80", false},
		{"100.64.0.1:80", false},
		{"0.0.0.0:80", false},
		{"[fd00::1]:80", false},
		{"[fe80::1]:80", false},
		{"[::ffff:127.0.0.1]:80", false},
		{"not-an-address", false},
		{"93.184.216.34:443", true},
		{"[2606:4700::1111]:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := checkPublicAddress(tt.address)
			if tt.public {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBlockedAddress)
			}
		})
	}
}
