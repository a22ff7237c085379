// Package types provides the core data types shared by the tabkeep registry:
// profiles and their live tabs, snapshot records, the joined profile views
// served to the browser extension, and the error taxonomy used across
// components.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy. Components wrap these with fmt.Errorf("%w: ...") so that
// callers (and the HTTP layer) can classify failures with errors.Is.
var (
	// ErrNotFound reports an unknown profile or record id.
	ErrNotFound = errors.New("not found")

	// ErrValidation reports a missing field, an invalid value or a capture
	// payload outside the accepted size range.
	ErrValidation = errors.New("validation error")

	// ErrConfig reports an unusable snapshot root path.
	ErrConfig = errors.New("config error")

	// ErrStorage reports a disk or database failure.
	ErrStorage = errors.New("storage error")
)

// NormalizeID lower-cases and trims an identifier. All profile ids are
// compared in this form.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// FilterMode selects which profiles a list view returns.
type FilterMode string

const (
	// FilterActive excludes hidden profiles.
	FilterActive FilterMode = "active"
	// FilterAll returns every profile.
	FilterAll FilterMode = "all"
)

// ParseFilterMode parses a filter name. An empty string yields def.
func ParseFilterMode(s string, def FilterMode) (FilterMode, error) {
	switch FilterMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case FilterActive:
		return FilterActive, nil
	case FilterAll:
		return FilterAll, nil
	default:
		return def, fmt.Errorf("%w: unknown filter %q (want active or all)", ErrValidation, s)
	}
}

// Tab is one open browser tab as reported by an extension instance.
// ID is assigned by the browser and is only unique within one profile.
type Tab struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Profile is a browser identity with its most recently reported tab set.
type Profile struct {
	ProfileID   string `json:"profileId"`
	ProfileName string `json:"profileName"`
	UserID      string `json:"userId,omitempty"`

	// ProfileDir is the browser's profile directory name, used by the
	// extension to open a URL in that profile.
	ProfileDir string `json:"profileDir,omitempty"`

	IsHidden   bool      `json:"isHidden"`
	Tabs       []Tab     `json:"tabs"`
	CreatedSeq uint64    `json:"createdSeq"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SnapshotRecord is one captured page archive in the page index.
type SnapshotRecord struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	FileName  string `json:"fileName"`

	// FilePath is the archive on local disk.
	FilePath string `json:"diskPath"`

	// FileURL is served as filePath: the extension opens it directly and
	// rejects anything that is not a file:// URL.
	FileURL string `json:"filePath"`

	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"`
}

// NewerThan reports whether r sorts before o in newest-first order.
func (r SnapshotRecord) NewerThan(o SnapshotRecord) bool {
	if r.Seq != o.Seq {
		return r.Seq > o.Seq
	}
	return r.Timestamp.After(o.Timestamp)
}

// TabView is a live tab annotated with the snapshot history of its URL.
type TabView struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	URL           string           `json:"url"`
	SavedVersions []SnapshotRecord `json:"savedVersions"`
}

// ProfileView is the shape returned by GET /profiles.
type ProfileView struct {
	ProfileID   string    `json:"profileId"`
	ProfileName string    `json:"profileName"`
	UserID      string    `json:"userId,omitempty"`
	ProfileDir  string    `json:"profileDir,omitempty"`
	IsHidden    bool      `json:"isHidden"`
	IsCurrent   bool      `json:"isCurrent"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Tabs        []TabView `json:"tabs"`
}

// ReconcileReport lists index records without files and files without
// index records.
type ReconcileReport struct {
	OrphanRecords []SnapshotRecord `json:"orphanRecords"`
	OrphanFiles   []string         `json:"orphanFiles"`
}

// DeleteResult reports the outcome of one item in a bulk deletion.
type DeleteResult struct {
	ID       string `json:"id,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}
