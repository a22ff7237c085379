package output

import (
	"bytes"
	"encoding/json"
	"time"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Profiles []jsonProfile `json:"profiles,omitempty"`
	Pages    []jsonPage    `json:"pages,omitempty"`
	Meta     jsonMeta      `json:"meta"`
}

type jsonProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Hidden    bool      `json:"hidden"`
	Current   bool      `json:"current"`
	Tabs      int       `json:"tabs"`
	Saved     int       `json:"saved"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type jsonPage struct {
	ID        string    `json:"id,omitempty"`
	ProfileID string    `json:"profile_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	SavedAt   time.Time `json:"saved_at,omitempty"`
	Age       string    `json:"age,omitempty"`
	Orphan    bool      `json:"orphan,omitempty"`
}

// jsonMeta represents metadata in JSON output.
type jsonMeta struct {
	Source        string   `json:"source,omitempty"`
	SnapshotRoot  string   `json:"snapshot_root,omitempty"`
	DaemonUp      bool     `json:"daemon_up"`
	TotalProfiles int      `json:"total_profiles"`
	TotalPages    int      `json:"total_pages"`
	TotalSize     int64    `json:"total_size"`
	Warnings      []string `json:"warnings,omitempty"`
}

// JSONFormatter formats output as a single indented JSON object with
// profiles, pages and meta sections.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildJSON(r))
}

func buildJSON(r *Result) jsonOutput {
	out := jsonOutput{
		Profiles: make([]jsonProfile, 0, len(r.Profiles)),
		Pages:    make([]jsonPage, 0, len(r.Pages)),
		Meta: jsonMeta{
			Source:        r.Source,
			SnapshotRoot:  r.SnapshotRoot,
			DaemonUp:      r.DaemonUp,
			TotalProfiles: len(r.Profiles),
			TotalPages:    len(r.Pages),
			TotalSize:     r.TotalSize(),
			Warnings:      r.Warnings,
		},
	}
	for _, p := range r.Profiles {
		out.Profiles = append(out.Profiles, toJSONProfile(p))
	}
	for _, p := range r.Pages {
		out.Pages = append(out.Pages, toJSONPage(p))
	}
	return out
}

func toJSONProfile(p ProfileInfo) jsonProfile {
	return jsonProfile{
		ID:        p.ID,
		Name:      p.Name,
		Hidden:    p.Hidden,
		Current:   p.Current,
		Tabs:      p.Tabs,
		Saved:     p.Saved,
		UpdatedAt: p.UpdatedAt,
	}
}

func toJSONPage(p PageInfo) jsonPage {
	return jsonPage{
		ID:        p.ID,
		ProfileID: p.ProfileID,
		URL:       p.URL,
		Title:     p.Title,
		Path:      p.Path,
		Size:      p.Size,
		SizeHuman: p.SizeHuman,
		SavedAt:   p.SavedAt,
		Age:       formatDurationString(p.Age),
		Orphan:    p.Orphan,
	}
}

// formatDurationString formats a duration as a string for JSON output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.Round(time.Second).String()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats output as newline-delimited JSON, one compact
// object per profile or page.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, p := range r.Profiles {
		if err := writeLine(w, toJSONProfile(p)); err != nil {
			return err
		}
	}
	for _, p := range r.Pages {
		if err := writeLine(w, toJSONPage(p)); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Write(data)
	w.WriteByte('\n')
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
