package article

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var controlRemover = runes.Remove(runes.Predicate(IsControl))

// IsControl reports whether r is in the C0 (0x00-0x1F) or C1 (0x7F-0x9F)
// control ranges.
func IsControl(r rune) bool {
	return r <= 0x1F || (r >= 0x7F && r <= 0x9F)
}

// Sanitize strips control characters from s.
func Sanitize(s string) string {
	if s == "" {
		return s
	}

	out, _, err := transform.String(controlRemover, s)
	if err != nil {
		return s
	}
	return out
}

// Sanitized returns a copy of a with every persisted text field stripped of
// control characters.
func (a Article) Sanitized() Article {
	a.Title = Sanitize(a.Title)
	a.URL = Sanitize(a.URL)
	a.ImageURL = Sanitize(a.ImageURL)
	a.NewsSite = Sanitize(a.NewsSite)
	a.Summary = Sanitize(a.Summary)
	a.UpdatedAt = Sanitize(a.UpdatedAt)

	if len(a.Authors) > 0 {
		authors := make([]Author, len(a.Authors))
		copy(authors, a.Authors)
		authors[0].Name = Sanitize(authors[0].Name)
		a.Authors = authors
	}

	return a
}
