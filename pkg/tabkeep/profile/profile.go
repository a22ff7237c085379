// Package profile maintains the set of known browser profiles and the tabs
// each one most recently reported.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Backend persists profiles.
type Backend interface {
	PutProfile(p *types.Profile) error
	GetProfile(id string) (*types.Profile, error)
	DeleteProfile(id string) error
	ListProfiles() ([]*types.Profile, error)
	NextSeq(name string) (uint64, error)
}

// UpsertRequest is one tab report from an extension instance.
type UpsertRequest struct {
	ProfileID   string      `json:"profileId"`
	ProfileName string      `json:"profileName"`
	UserID      string      `json:"userId,omitempty"`
	ProfileDir  string      `json:"profileDir,omitempty"`
	Tabs        []types.Tab `json:"tabs"`
}

// Registry serializes writes per profile id. Writes to different ids never
// wait on each other.
type Registry struct {
	backend Backend
	log     *logging.Logger
	now     func() time.Time

	locksMu sync.Mutex
	locks   map[string]*idLock
}

// idLock is dropped from the map once nobody holds or waits on it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates a Registry over backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		log:     logging.Get("profile"),
		now:     time.Now,
		locks:   make(map[string]*idLock),
	}
}

func (r *Registry) lock(id string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &idLock{}
		r.locks[id] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.locksMu.Unlock()
	}
}

// Upsert creates or replaces a profile's name and tabs. The hidden flag of
// an existing profile is kept. On error the stored profile is unchanged.
func (r *Registry) Upsert(req UpsertRequest) (*types.Profile, error) {
	id := types.NormalizeID(req.ProfileID)
	if id == "" {
		return nil, fmt.Errorf("%w: profileId is required", types.ErrValidation)
	}
	name := strings.TrimSpace(req.ProfileName)
	if name == "" {
		return nil, fmt.Errorf("%w: profileName is required", types.ErrValidation)
	}
	for i, tab := range req.Tabs {
		if tab.URL == "" {
			return nil, fmt.Errorf("%w: tabs[%d] has no url", types.ErrValidation, i)
		}
	}

	unlock := r.lock(id)
	defer unlock()

	p, err := r.backend.GetProfile(id)
	created := false
	switch {
	case err == nil:
	case isNotFound(err):
		seq, seqErr := r.backend.NextSeq("profile")
		if seqErr != nil {
			return nil, seqErr
		}
		p = &types.Profile{ProfileID: id, CreatedSeq: seq}
		created = true
	default:
		return nil, err
	}

	p.ProfileName = name
	if req.UserID != "" {
		p.UserID = req.UserID
	}
	if req.ProfileDir != "" {
		p.ProfileDir = req.ProfileDir
	}
	p.Tabs = append([]types.Tab{}, req.Tabs...)
	p.UpdatedAt = r.now().UTC()

	if err := r.backend.PutProfile(p); err != nil {
		return nil, err
	}

	if created {
		r.log.Info("profile registered", "profile", id, "name", name)
	}
	r.log.Debug("tabs reported", "profile", id, "tabs", len(p.Tabs))
	return p, nil
}

// Get returns one profile.
func (r *Registry) Get(id string) (*types.Profile, error) {
	id = types.NormalizeID(id)
	if id == "" {
		return nil, fmt.Errorf("%w: profileId is required", types.ErrValidation)
	}
	return r.backend.GetProfile(id)
}

// List returns the profiles matching filter. The profile whose id equals
// currentID comes first; the rest keep insertion order.
func (r *Registry) List(filter types.FilterMode, currentID string) ([]*types.Profile, error) {
	all, err := r.backend.ListProfiles()
	if err != nil {
		return nil, err
	}

	currentID = types.NormalizeID(currentID)
	out := make([]*types.Profile, 0, len(all))
	var current *types.Profile

	for _, p := range all {
		if filter != types.FilterAll && p.IsHidden {
			continue
		}
		if currentID != "" && p.ProfileID == currentID {
			current = p
			continue
		}
		out = append(out, p)
	}

	if current != nil {
		out = append([]*types.Profile{current}, out...)
	}
	return out, nil
}

// SetVisibility hides or shows a profile.
func (r *Registry) SetVisibility(id string, hidden bool) error {
	id = types.NormalizeID(id)
	if id == "" {
		return fmt.Errorf("%w: profileId is required", types.ErrValidation)
	}

	unlock := r.lock(id)
	defer unlock()

	p, err := r.backend.GetProfile(id)
	if err != nil {
		return err
	}
	if p.IsHidden == hidden {
		return nil
	}
	p.IsHidden = hidden
	p.UpdatedAt = r.now().UTC()

	if err := r.backend.PutProfile(p); err != nil {
		return err
	}
	r.log.Info("profile visibility changed", "profile", id, "hidden", hidden)
	return nil
}

// Delete removes a profile. Its snapshot records are kept.
func (r *Registry) Delete(id string) error {
	id = types.NormalizeID(id)
	if id == "" {
		return fmt.Errorf("%w: profileId is required", types.ErrValidation)
	}

	unlock := r.lock(id)
	defer unlock()

	if err := r.backend.DeleteProfile(id); err != nil {
		return err
	}

	r.log.Info("profile deleted", "profile", id)
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
