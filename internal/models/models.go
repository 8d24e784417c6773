package models

import "time"

// ScrapeResponse is the JSON envelope served for a scrape
type ScrapeResponse struct {
	Records  []map[string]any `json:"records"`
	Partial  bool             `json:"partial,omitempty"`
	Error    string           `json:"error,omitempty"`
	Metadata Metadata         `json:"metadata"`
}

// ErrorResponse represents error responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Metadata contains request metadata
type Metadata struct {
	Platform   string    `json:"platform"`
	Operation  string    `json:"operation"`
	Target     string    `json:"target"`
	ScrapedAt  time.Time `json:"scrapedAt"`
	DurationMs int64     `json:"durationMs"`
}
