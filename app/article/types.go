package article

import (
	"time"
)

// Article is a single news item as served by the remote feed API or
// reconstructed from the favorites table.
// ID is the only identity key; two articles with the same ID are the same
// article even when their text differs.
type Article struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title,omitempty"`
	Authors     []Author   `json:"authors,omitempty"`
	URL         string     `json:"url,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	NewsSite    string     `json:"news_site,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   string     `json:"updated_at,omitempty"` // opaque, never parsed
	Featured    bool       `json:"featured"`
	Launches    []Launch   `json:"launches,omitempty"`
	Events      []Event    `json:"events,omitempty"`

	// IsFavorite is a local flag and is ignored when decoding remote payloads.
	IsFavorite bool `json:"is_favorite"`
}

type Author struct {
	Name    string   `json:"name,omitempty"`
	Socials *Socials `json:"socials,omitempty"`
}

type Socials struct {
	X         string `json:"x,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Mastodon  string `json:"mastodon,omitempty"`
	Bluesky   string `json:"bluesky,omitempty"`
}

type Launch struct {
	LaunchID string `json:"launch_id,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type Event struct {
	EventID  int64  `json:"event_id,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Page is one envelope of the paginated feed listing.
// An empty Next means the end of the feed.
type Page struct {
	Count    *int      `json:"count,omitempty"`
	Next     string    `json:"next,omitempty"`
	Previous string    `json:"previous,omitempty"`
	Results  []Article `json:"results"`
}

// FirstAuthorName returns the name of the first author or an empty string.
func (a Article) FirstAuthorName() string {
	if len(a.Authors) == 0 {
		return ""
	}
	return a.Authors[0].Name
}

// Clone returns a copy of the page that shares no slices with the original.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}

	clone := *p
	if p.Count != nil {
		count := *p.Count
		clone.Count = &count
	}
	clone.Results = make([]Article, len(p.Results))
	copy(clone.Results, p.Results)
	return &clone
}
