// Package rss renders the stored articles back out as an RSS 2.0 document,
// so the aggregate itself can be followed from a feed reader.
package rss

import (
	"encoding/xml"
	"fmt"
	"time"

	"ainyheter/internal/feed"
)

// RSS is the root element of an RSS feed.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in an RSS feed.
type Channel struct {
	XMLName       xml.Name `xml:"channel"`
	Title         string   `xml:"title"`
	Link          string   `xml:"link"`
	Description   string   `xml:"description"`
	Language      string   `xml:"language,omitempty"`
	LastBuildDate string   `xml:"lastBuildDate,omitempty"`
	Items         []Item   `xml:"item"`
}

// Item represents an item element in an RSS feed.
type Item struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description,omitempty"`
	Category    string   `xml:"category,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid,omitempty"`
}

// Build assembles an RSS document from stored articles, newest first as
// given. Publish dates are calendar dates, so midnight UTC stands in for
// the missing time of day.
func Build(title, link string, articles []feed.Article, now time.Time) RSS {
	items := make([]Item, 0, len(articles))
	for _, a := range articles {
		item := Item{
			Title:       a.Title,
			Link:        a.URL,
			Description: a.Summary,
			Category:    a.Category,
			GUID:        a.ID,
		}
		if t, err := time.Parse("2006-01-02", a.PublishedDate); err == nil {
			item.PubDate = t.UTC().Format(time.RFC1123Z)
		}
		items = append(items, item)
	}
	return RSS{
		Version: "2.0",
		Channel: Channel{
			Title:         title,
			Link:          link,
			Description:   fmt.Sprintf("Senaste artiklarna från %s", title),
			Language:      "sv",
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Items:         items,
		},
	}
}

// Encode serializes the document with the XML header.
func Encode(doc RSS) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
