package article

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON decodes a remote article. A malformed published_at yields a
// nil PublishedAt instead of failing the whole article, and a missing id is
// replaced with a placeholder identity.
func (a *Article) UnmarshalJSON(data []byte) error {
	type alias Article
	aux := struct {
		*alias
		ID          *int64  `json:"id"`
		PublishedAt *string `json:"published_at"`
		IsFavorite  bool    `json:"is_favorite"`
	}{alias: (*alias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to decode article: %w", err)
	}

	a.PublishedAt = nil
	if aux.PublishedAt != nil {
		a.PublishedAt = ParseTime(*aux.PublishedAt)
	}

	a.IsFavorite = false
	if aux.ID != nil {
		a.ID = *aux.ID
	} else {
		a.ID = PlaceholderID(a.URL, a.Title)
	}

	return nil
}

// ParseTime parses an ISO-8601 timestamp, returning nil when it is empty or
// malformed.
func ParseTime(value string) *time.Time {
	if value == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// FormatTime renders a timestamp the way it is stored locally.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
