// Package view joins profiles with their snapshot history into the shape
// the extension renders.
package view

import (
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Profiles lists profiles.
type Profiles interface {
	List(filter types.FilterMode, currentID string) ([]*types.Profile, error)
}

// Pages lists snapshot history.
type Pages interface {
	ListByProfile(profileID string) (map[string][]types.SnapshotRecord, error)
}

// Assembler builds profile views. It only reads.
type Assembler struct {
	profiles Profiles
	pages    Pages
}

// NewAssembler creates an Assembler.
func NewAssembler(profiles Profiles, pages Pages) *Assembler {
	return &Assembler{profiles: profiles, pages: pages}
}

// BuildProfilesView returns the profiles matching filter, current profile
// first, with each tab annotated by the captures of its exact URL.
// Trailing slashes and query order are not normalized.
func (a *Assembler) BuildProfilesView(currentID string, filter types.FilterMode) ([]types.ProfileView, error) {
	profiles, err := a.profiles.List(filter, currentID)
	if err != nil {
		return nil, err
	}

	currentID = types.NormalizeID(currentID)
	views := make([]types.ProfileView, 0, len(profiles))
	for _, p := range profiles {
		history, err := a.pages.ListByProfile(p.ProfileID)
		if err != nil {
			return nil, err
		}

		tabs := make([]types.TabView, 0, len(p.Tabs))
		for _, t := range p.Tabs {
			versions := history[t.URL]
			if versions == nil {
				versions = []types.SnapshotRecord{}
			}
			tabs = append(tabs, types.TabView{
				ID:            t.ID,
				Title:         t.Title,
				URL:           t.URL,
				SavedVersions: versions,
			})
		}

		views = append(views, types.ProfileView{
			ProfileID:   p.ProfileID,
			ProfileName: p.ProfileName,
			UserID:      p.UserID,
			ProfileDir:  p.ProfileDir,
			IsHidden:    p.IsHidden,
			IsCurrent:   currentID != "" && p.ProfileID == currentID,
			UpdatedAt:   p.UpdatedAt,
			Tabs:        tabs,
		})
	}
	return views, nil
}
