package output

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlOutput struct {
	Profiles []yamlProfile `yaml:"profiles,omitempty"`
	Pages    []yamlPage    `yaml:"pages,omitempty"`
	Meta     yamlMeta      `yaml:"meta"`
}

type yamlProfile struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Hidden  bool   `yaml:"hidden"`
	Current bool   `yaml:"current"`
	Tabs    int    `yaml:"tabs"`
	Saved   int    `yaml:"saved"`
}

type yamlPage struct {
	ID        string    `yaml:"id,omitempty"`
	ProfileID string    `yaml:"profile_id,omitempty"`
	URL       string    `yaml:"url,omitempty"`
	Title     string    `yaml:"title,omitempty"`
	Path      string    `yaml:"path"`
	Size      int64     `yaml:"size"`
	SizeHuman string    `yaml:"size_human"`
	SavedAt   time.Time `yaml:"saved_at,omitempty"`
	Orphan    bool      `yaml:"orphan,omitempty"`
}

type yamlMeta struct {
	Source        string   `yaml:"source,omitempty"`
	SnapshotRoot  string   `yaml:"snapshot_root,omitempty"`
	DaemonUp      bool     `yaml:"daemon_up"`
	TotalProfiles int      `yaml:"total_profiles"`
	TotalPages    int      `yaml:"total_pages"`
	TotalSize     int64    `yaml:"total_size"`
	Warnings      []string `yaml:"warnings,omitempty"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(f.buildOutput(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func (f *YAMLFormatter) buildOutput(r *Result) yamlOutput {
	out := yamlOutput{
		Meta: yamlMeta{
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
		out.Profiles = append(out.Profiles, yamlProfile{
			ID: p.ID, Name: p.Name, Hidden: p.Hidden, Current: p.Current, Tabs: p.Tabs, Saved: p.Saved,
		})
	}
	for _, p := range r.Pages {
		out.Pages = append(out.Pages, yamlPage{
			ID:        p.ID,
			ProfileID: p.ProfileID,
			URL:       p.URL,
			Title:     p.Title,
			Path:      p.Path,
			Size:      p.Size,
			SizeHuman: p.SizeHuman,
			SavedAt:   p.SavedAt,
			Orphan:    p.Orphan,
		})
	}
	return out
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var _ Formatter = (*YAMLFormatter)(nil)
