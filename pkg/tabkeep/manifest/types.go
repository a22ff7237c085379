// Package manifest keeps an on-disk journal of destructive operations on
// saved pages, so a user can see what a deletion or cleanup removed.
package manifest

import "time"

// OperationType represents the type of operation.
type OperationType string

const (
	// OpDelete is a user-requested deletion of saved pages.
	OpDelete OperationType = "delete"
	// OpCleanup is a reconciliation pass removing orphans.
	OpCleanup OperationType = "cleanup"
)

// Entry represents a single manifest entry.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Pages     []PageRecord  `json:"pages"`
	Summary   Summary       `json:"summary"`
}

// PageRecord is one saved page touched by an operation. Orphan files have
// no ID.
type PageRecord struct {
	ID         string    `json:"id,omitempty"`
	ProfileID  string    `json:"profile_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	FilePath   string    `json:"file_path"`
	Size       int64     `json:"size"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Summary contains operation summary.
type Summary struct {
	TotalPages int64 `json:"total_pages"`
	TotalBytes int64 `json:"total_bytes"`
	Failed     int64 `json:"failed"`
}
