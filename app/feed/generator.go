package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/lysyi3m/orbit-news/app/article"
)

// Generator renders articles as an RSS 2.0 channel.
type Generator struct {
	publicURL string
	version   string
}

func NewGenerator(publicURL, version string) *Generator {
	return &Generator{publicURL: publicURL, version: version}
}

// Run renders the favorites channel. path is the channel's own path under the
// public URL.
func (g *Generator) Run(title, path string, articles []article.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	selfLink := g.publicURL + path

	g.writeElement(&buf, "title", title, 4)
	g.writeElement(&buf, "link", g.publicURL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("%d favorite articles", len(articles)), 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if latest := latestPublished(articles); latest != nil {
		lastBuildDate = *latest
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("OrbitNews/%s", g.version), 4)

	for _, a := range articles {
		g.writeItem(&buf, a)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, a article.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString(`      <guid isPermaLink="false">`)
	buf.WriteString(strconv.FormatInt(a.ID, 10))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", a.Title, 6)
	g.writeElement(buf, "link", a.URL, 6)
	g.writeElement(buf, "description", cmp.Or(a.Summary, "No description available"), 6)

	if a.PublishedAt != nil {
		g.writeElement(buf, "pubDate", a.PublishedAt.In(time.Local).Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "author", a.FirstAuthorName(), 6)
	g.writeElement(buf, "category", a.NewsSite, 6)

	if a.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"image/jpeg\" />\n",
			html.EscapeString(a.ImageURL)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	_ = xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func latestPublished(articles []article.Article) *time.Time {
	var latest *time.Time
	for _, a := range articles {
		if a.PublishedAt != nil && (latest == nil || a.PublishedAt.After(*latest)) {
			latest = a.PublishedAt
		}
	}
	return latest
}
