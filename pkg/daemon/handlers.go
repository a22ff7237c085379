package daemon

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/pageindex"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/profile"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/settings"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

type profileIDRequest struct {
	ProfileID string `json:"profileId"`
}

type visibilityRequest struct {
	ProfileID string `json:"profileId"`
	IsHidden  bool   `json:"isHidden"`
}

type profileNameResponse struct {
	ProfileName string `json:"profileName"`
}

// BulkDeleteRequest names saved pages by id and orphan files by path.
type BulkDeleteRequest struct {
	IDs       []string                  `json:"ids,omitempty"`
	FilePaths []string                  `json:"filePaths,omitempty"`
	Items     []pageindex.DeleteRequest `json:"items,omitempty"`
}

// BulkDeleteResponse reports each deletion.
type BulkDeleteResponse struct {
	Results []types.DeleteResult `json:"results"`
}

// CleanupResponse is the reconcile report plus what was removed.
type CleanupResponse struct {
	types.ReconcileReport
	Results []types.DeleteResult `json:"results"`
}

type savePathRequest struct {
	Path string `json:"path"`
}

type savePathResponse struct {
	Path string `json:"path"`
}

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Service) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	def, err := s.settings.ProfileFilter()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := types.ParseFilterMode(r.URL.Query().Get("filter"), def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views, err := s.views.BuildProfilesView(r.URL.Query().Get("currentProfileId"), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, views)
}

func (s *Service) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req profile.UpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.profiles.Upsert(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.upserts.Inc()
	okJSON(w, p)
}

func (s *Service) handleProfileName(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.URL.Query().Get("profileId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, profileNameResponse{ProfileName: p.ProfileName})
}

func (s *Service) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	req := profileIDRequest{ProfileID: r.URL.Query().Get("profileId")}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.profiles.Delete(req.ProfileID); err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, ok)
}

func (s *Service) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.profiles.SetVisibility(req.ProfileID, req.IsHidden); err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, ok)
}

func (s *Service) handleSavePage(w http.ResponseWriter, r *http.Request) {
	var req pageindex.CaptureRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.observeCapture("rejected", 0)
		s.writeError(w, r, err)
		return
	}

	rec, err := s.pages.Capture(r.Context(), req)
	if err != nil {
		result := "failed"
		if errors.Is(err, types.ErrValidation) {
			result = "rejected"
		}
		s.metrics.observeCapture(result, 0)
		s.writeError(w, r, err)
		return
	}
	s.metrics.observeCapture("ok", rec.Size)
	okJSON(w, rec)
}

func (s *Service) handleListSavedPages(w http.ResponseWriter, r *http.Request) {
	recs, err := s.pages.ListAll()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, recs)
}

func (s *Service) handleDeleteSavedPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pageindex.DeleteRequest{ID: q.Get("id"), URL: q.Get("url"), FilePath: q.Get("filePath")}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.pages.Delete(r.Context(), req)
	s.metrics.observeDelete(err == nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, ok)
}

func (s *Service) handleDeleteSavedPages(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]pageindex.DeleteRequest, 0, len(req.Items)+len(req.IDs)+len(req.FilePaths))
	items = append(items, req.Items...)
	for _, id := range req.IDs {
		items = append(items, pageindex.DeleteRequest{ID: id})
	}
	for _, p := range req.FilePaths {
		items = append(items, pageindex.DeleteRequest{FilePath: p})
	}
	if len(items) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: nothing to delete", types.ErrValidation))
		return
	}

	results := s.pages.DeleteMany(r.Context(), items)
	for _, res := range results {
		s.metrics.observeDelete(res.Success)
	}
	okJSON(w, BulkDeleteResponse{Results: results})
}

func (s *Service) handleGetSavePath(w http.ResponseWriter, r *http.Request) {
	root, err := s.snapshots.Root()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, savePathResponse{Path: root})
}

func (s *Service) handleSetSavePath(w http.ResponseWriter, r *http.Request) {
	var req savePathRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.setRoot(req.Path); err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, ok)
}

func (s *Service) setRoot(path string) error {
	if err := s.snapshots.SetRoot(path); err != nil {
		return err
	}
	if s.onRootChange != nil {
		root, err := s.snapshots.Root()
		if err != nil {
			return err
		}
		s.onRootChange(root)
	}
	return nil
}

func (s *Service) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.settings.All()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, all)
}

func (s *Service) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var err error
	if req.Key == settings.KeySnapshotRoot {
		// The root is validated as a directory before it is stored.
		err = s.setRoot(req.Value)
	} else {
		err = s.settings.Set(req.Key, req.Value)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	okJSON(w, ok)
}

func (s *Service) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.pages.Reconcile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.setOrphans(len(report.OrphanRecords), len(report.OrphanFiles))
	okJSON(w, report)
}

func (s *Service) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var opts pageindex.CleanupOptions
	if err := decodeJSON(r, &opts); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, results, err := s.pages.Cleanup(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, files := len(report.OrphanRecords), len(report.OrphanFiles)
	for _, res := range results {
		s.metrics.observeDelete(res.Success)
		switch {
		case !res.Success:
		case res.ID != "":
			records--
		default:
			files--
		}
	}
	s.metrics.setOrphans(records, files)

	okJSON(w, CleanupResponse{ReconcileReport: report, Results: results})
}
