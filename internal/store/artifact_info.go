package store

import "time"

// ArtifactInfo describes a model file on local disk and where it came from.
type ArtifactInfo struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256,omitempty"`
	Downloaded bool      `json:"downloaded"`
	FetchedAt  time.Time `json:"fetched_at"`
}
