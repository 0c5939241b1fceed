package feed

import (
	"time"

	"github.com/lysyi3m/orbit-news/app/article"
)

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	PageSize        int  `yaml:"page_size"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds, 0 disables background refresh
	Timeout         int  `yaml:"timeout"`          // seconds
}

func (c *Config) RefreshEvery() time.Duration {
	return time.Duration(c.Settings.RefreshInterval) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}

// State is a point-in-time snapshot of a FeedStore, the shape the
// presentation layer observes.
type State struct {
	Page         *article.Page `json:"page"`
	IsLoading    bool          `json:"is_loading"`
	ErrorMessage string        `json:"error_message,omitempty"`
	SearchQuery  string        `json:"search_query"`
}

// ResultCount is the number of articles currently loaded.
func (s State) ResultCount() int {
	if s.Page == nil {
		return 0
	}
	return len(s.Page.Results)
}

// Find returns the loaded article with the given id.
func (s State) Find(id int64) (article.Article, bool) {
	if s.Page == nil {
		return article.Article{}, false
	}
	for _, a := range s.Page.Results {
		if a.ID == id {
			return a, true
		}
	}
	return article.Article{}, false
}
