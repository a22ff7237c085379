// Package output provides formatters for displaying registry listings
// (profiles, saved pages and orphans) in various output formats
// (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// PageInfo is a saved page prepared for display.
type PageInfo struct {
	ID        string        `json:"id" yaml:"id"`
	ProfileID string        `json:"profile_id" yaml:"profile_id"`
	URL       string        `json:"url" yaml:"url"`
	Title     string        `json:"title" yaml:"title"`
	Path      string        `json:"path" yaml:"path"`
	Size      int64         `json:"size" yaml:"size"`
	SizeHuman string        `json:"size_human" yaml:"size_human"`
	SavedAt   time.Time     `json:"saved_at" yaml:"saved_at"`
	Age       time.Duration `json:"age" yaml:"age"`

	// Orphan is set for an index record whose file is gone or a file
	// with no index record.
	Orphan bool `json:"orphan,omitempty" yaml:"orphan,omitempty"`
}

// ProfileInfo is a profile prepared for display.
type ProfileInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Hidden    bool      `json:"hidden" yaml:"hidden"`
	Current   bool      `json:"current" yaml:"current"`
	Tabs      int       `json:"tabs" yaml:"tabs"`
	Saved     int       `json:"saved" yaml:"saved"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Result contains the complete output data for formatting.
type Result struct {
	Profiles []ProfileInfo `json:"profiles" yaml:"profiles"`
	Pages    []PageInfo    `json:"pages" yaml:"pages"`

	// Source is the daemon URL the data came from.
	Source string `json:"source" yaml:"source"`

	// SnapshotRoot is the daemon's current save path.
	SnapshotRoot string `json:"snapshot_root" yaml:"snapshot_root"`

	// DaemonUp indicates if the registry daemon answered.
	DaemonUp bool `json:"daemon_up" yaml:"daemon_up"`

	// Warnings contains any warning messages generated while listing.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// TotalSize returns the sum of all page sizes in the result.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, p := range r.Pages {
		total += p.Size
	}
	return total
}

// NewPageInfo converts a snapshot record.
func NewPageInfo(rec types.SnapshotRecord, now time.Time) PageInfo {
	var age time.Duration
	if !rec.Timestamp.IsZero() {
		age = now.Sub(rec.Timestamp)
	}
	return PageInfo{
		ID:        rec.ID,
		ProfileID: rec.ProfileID,
		URL:       rec.URL,
		Title:     rec.Title,
		Path:      rec.FilePath,
		Size:      rec.Size,
		SizeHuman: humanize.IBytes(uint64(max(rec.Size, 0))),
		SavedAt:   rec.Timestamp,
		Age:       age,
	}
}

// NewProfileInfo converts a profile view.
func NewProfileInfo(v types.ProfileView) ProfileInfo {
	saved := 0
	for _, t := range v.Tabs {
		saved += len(t.SavedVersions)
	}
	return ProfileInfo{
		ID:        v.ProfileID,
		Name:      v.ProfileName,
		Hidden:    v.IsHidden,
		Current:   v.IsCurrent,
		Tabs:      len(v.Tabs),
		Saved:     saved,
		UpdatedAt: v.UpdatedAt,
	}
}

// PagesResult builds a Result listing pages.
func PagesResult(recs []types.SnapshotRecord, now time.Time) *Result {
	r := &Result{Pages: make([]PageInfo, 0, len(recs))}
	for _, rec := range recs {
		r.Pages = append(r.Pages, NewPageInfo(rec, now))
	}
	return r
}

// ProfilesResult builds a Result listing profiles.
func ProfilesResult(views []types.ProfileView) *Result {
	r := &Result{Profiles: make([]ProfileInfo, 0, len(views))}
	for _, v := range views {
		r.Profiles = append(r.Profiles, NewProfileInfo(v))
	}
	return r
}

// OrphansResult builds a Result listing the orphans in a reconcile report.
// Orphan files carry only their path and size on disk.
func OrphansResult(report types.ReconcileReport, fileSize func(string) int64, now time.Time) *Result {
	r := &Result{Pages: make([]PageInfo, 0, len(report.OrphanRecords)+len(report.OrphanFiles))}
	for _, rec := range report.OrphanRecords {
		p := NewPageInfo(rec, now)
		p.Orphan = true
		r.Pages = append(r.Pages, p)
	}
	for _, path := range report.OrphanFiles {
		var size int64
		if fileSize != nil {
			size = fileSize(path)
		}
		r.Pages = append(r.Pages, PageInfo{
			Path:      path,
			Size:      size,
			SizeHuman: humanize.IBytes(uint64(max(size, 0))),
			Orphan:    true,
		})
	}
	return r
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// rows returns a header and one row per item for the tabular formatters.
// Pages win when a result carries both.
func rows(r *Result) ([]string, [][]string) {
	if len(r.Pages) > 0 || len(r.Profiles) == 0 {
		header := []string{"SIZE", "SAVED", "URL", "PATH"}
		out := make([][]string, 0, len(r.Pages))
		for _, p := range r.Pages {
			saved := ""
			if !p.SavedAt.IsZero() {
				saved = p.SavedAt.Local().Format("2006-01-02 15:04")
			}
			out = append(out, []string{p.SizeHuman, saved, p.URL, p.Path})
		}
		return header, out
	}

	header := []string{"ID", "NAME", "TABS", "SAVED", "FLAGS"}
	out := make([][]string, 0, len(r.Profiles))
	for _, p := range r.Profiles {
		out = append(out, []string{
			p.ID, p.Name, fmt.Sprint(p.Tabs), fmt.Sprint(p.Saved), profileFlags(p),
		})
	}
	return header, out
}

func profileFlags(p ProfileInfo) string {
	switch {
	case p.Current && p.Hidden:
		return "current,hidden"
	case p.Current:
		return "current"
	case p.Hidden:
		return "hidden"
	default:
		return ""
	}
}
