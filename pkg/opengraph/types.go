package opengraph

import "time"

// Data represents OpenGraph metadata extracted from a webpage
type Data struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	SiteName    string    `json:"site_name"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Limits applied when cleaning up fetched metadata
const (
	DefaultTimeout       = 15 * time.Second
	DefaultMaxConcurrent = 5
	maxBodySize          = 1024 * 1024
	maxTitleLength       = 200
)
