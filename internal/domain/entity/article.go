// Package entity defines the core domain entities for the application.
// It contains the article shape returned by the news endpoint, independent of
// which upstream feed produced it.
package entity

import "time"

// Article represents a single news article summary returned to clients.
// The fields mirror the subset of the DEV.to article payload the service
// re-exposes; the RSS provider maps into the same shape.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Tags        []string  `json:"tags"`
	Author      Author    `json:"user"`
}

// Author identifies the article's author as reported by the upstream feed.
type Author struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}
