// Package pageindex maintains the history of captured pages per profile and
// URL, and reconciles it against the files in the snapshot directory.
package pageindex

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/manifest"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/snapshot"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// Backend persists snapshot records.
type Backend interface {
	PutSnapshot(rec *types.SnapshotRecord) error
	GetSnapshot(id string) (*types.SnapshotRecord, error)
	SnapshotByFilePath(path string) (*types.SnapshotRecord, error)
	DeleteSnapshot(id string) (*types.SnapshotRecord, error)
	ListSnapshots() ([]*types.SnapshotRecord, error)
	ListSnapshotsByProfile(profileID string) ([]*types.SnapshotRecord, error)
	NextSeq(name string) (uint64, error)
}

// Files is the snapshot directory.
type Files interface {
	Root() (string, error)
	Write(data []byte, suggestedName string) (snapshot.FileRef, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]string, error)
}

// Journal records destructive operations. It is optional.
type Journal interface {
	LogDelete(pages []manifest.PageRecord) (*manifest.Entry, error)
	LogCleanup(pages []manifest.PageRecord) (*manifest.Entry, error)
}

// Options configures an Index.
type Options struct {
	// MinSize rejects captures smaller than this many decoded bytes.
	MinSize int64
	// MaxSize rejects captures larger than this many decoded bytes.
	MaxSize int64
	// Journal, when set, receives every deletion and cleanup.
	Journal Journal
}

// CaptureRequest is a page capture sent by the extension.
type CaptureRequest struct {
	ProfileID string `json:"profileId"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	// MHTMLData is the base64 archive, optionally as a data: URL.
	MHTMLData string `json:"mhtmlData"`
}

// DeleteRequest identifies one saved page by id, or by file path for
// orphans that have no id.
type DeleteRequest struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

// Index is the page index.
type Index struct {
	backend Backend
	files   Files
	opts    Options
	log     *logging.Logger
	now     func() time.Time

	// mu is held shared by a capture from file write to record insert and
	// exclusively while orphan files are removed, so a capture's file is
	// never mistaken for an orphan.
	mu sync.RWMutex

	// afterWrite runs between the file write and the record insert.
	afterWrite func(ref snapshot.FileRef) error
}

// New creates an Index.
func New(backend Backend, files Files, opts Options) *Index {
	return &Index{
		backend: backend,
		files:   files,
		opts:    opts,
		log:     logging.Get("pageindex"),
		now:     time.Now,
	}
}

// Capture validates and stores a page capture, then records it. The record
// is inserted only after the file is fully written; if the insert fails the
// file is removed again.
func (ix *Index) Capture(ctx context.Context, req CaptureRequest) (*types.SnapshotRecord, error) {
	profileID := types.NormalizeID(req.ProfileID)
	switch {
	case profileID == "":
		return nil, fmt.Errorf("%w: profileId is required", types.ErrValidation)
	case strings.TrimSpace(req.URL) == "":
		return nil, fmt.Errorf("%w: url is required", types.ErrValidation)
	case req.MHTMLData == "":
		return nil, fmt.Errorf("%w: mhtmlData is required", types.ErrValidation)
	}

	data, err := ix.decode(req.MHTMLData)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ref, err := ix.files.Write(data, title)
	if err != nil {
		return nil, err
	}

	if ix.afterWrite != nil {
		if err := ix.afterWrite(ref); err != nil {
			ix.discard(ctx, ref.Path)
			return nil, err
		}
	}

	rec, err := ix.RecordSnapshot(profileID, req.URL, title, ref)
	if err != nil {
		ix.discard(ctx, ref.Path)
		return nil, err
	}

	ix.log.Info("page captured", "id", rec.ID, "profile", profileID, "url", rec.URL, "bytes", rec.Size)
	return rec, nil
}

// decode checks the encoded length against MaxSize before decoding, then
// checks the exact decoded size.
func (ix *Index) decode(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	payload = strings.TrimSpace(payload)

	// The decoder skips line breaks, so MIME-wrapped payloads are bounded
	// by their data characters only.
	n := len(payload) - strings.Count(payload, "\n") - strings.Count(payload, "\r")

	enc := base64.StdEncoding
	if ix.opts.MaxSize > 0 && int64(enc.DecodedLen(n))-2 > ix.opts.MaxSize {
		return nil, fmt.Errorf("%w: capture exceeds %d bytes", types.ErrValidation, ix.opts.MaxSize)
	}

	data, err := enc.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: mhtmlData is not valid base64: %v", types.ErrValidation, err)
	}

	size := int64(len(data))
	if ix.opts.MaxSize > 0 && size > ix.opts.MaxSize {
		return nil, fmt.Errorf("%w: capture of %d bytes exceeds %d bytes", types.ErrValidation, size, ix.opts.MaxSize)
	}
	if size < ix.opts.MinSize || size == 0 {
		return nil, fmt.Errorf("%w: capture of %d bytes is too small, the page is empty or not loaded",
			types.ErrValidation, size)
	}
	return data, nil
}

func (ix *Index) discard(ctx context.Context, path string) {
	if err := ix.files.Delete(ctx, path); err != nil {
		ix.log.Warn("failed to remove unrecorded capture", "path", path, "error", err)
	}
}

// RecordSnapshot appends a record for an already stored file. Earlier
// records for the same URL are kept.
func (ix *Index) RecordSnapshot(profileID, pageURL, title string, ref snapshot.FileRef) (*types.SnapshotRecord, error) {
	profileID = types.NormalizeID(profileID)
	if profileID == "" || pageURL == "" || ref.Path == "" {
		return nil, fmt.Errorf("%w: profileId, url and file are required", types.ErrValidation)
	}
	return ix.record(profileID, pageURL, title, ref)
}

func (ix *Index) record(profileID, pageURL, title string, ref snapshot.FileRef) (*types.SnapshotRecord, error) {
	seq, err := ix.backend.NextSeq("snapshot")
	if err != nil {
		return nil, err
	}

	name := ref.Name
	if name == "" {
		name = filepath.Base(ref.Path)
	}

	rec := &types.SnapshotRecord{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		URL:       pageURL,
		Title:     title,
		FileName:  name,
		FilePath:  ref.Path,
		FileURL:   FileURL(ref.Path),
		Size:      ref.Size,
		Timestamp: ix.now().UTC(),
		Seq:       seq,
	}
	if err := ix.backend.PutSnapshot(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByProfile maps each URL to its records, newest first.
func (ix *Index) ListByProfile(profileID string) (map[string][]types.SnapshotRecord, error) {
	recs, err := ix.backend.ListSnapshotsByProfile(types.NormalizeID(profileID))
	if err != nil {
		return nil, err
	}

	byURL := make(map[string][]types.SnapshotRecord)
	for _, r := range recs {
		byURL[r.URL] = append(byURL[r.URL], *r)
	}
	return byURL, nil
}

// ListAll returns every record, newest first.
func (ix *Index) ListAll() ([]types.SnapshotRecord, error) {
	recs, err := ix.backend.ListSnapshots()
	if err != nil {
		return nil, err
	}
	out := make([]types.SnapshotRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r)
	}
	return out, nil
}

// Get returns one record.
func (ix *Index) Get(id string) (*types.SnapshotRecord, error) {
	return ix.backend.GetSnapshot(types.NormalizeID(id))
}

// ByFilePath returns the record that owns path.
func (ix *Index) ByFilePath(path string) (*types.SnapshotRecord, error) {
	return ix.backend.SnapshotByFilePath(filepath.Clean(path))
}

// DeleteByID removes a record and its file. An unknown id is not an error.
func (ix *Index) DeleteByID(ctx context.Context, id string) error {
	id = types.NormalizeID(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", types.ErrValidation)
	}
	rec, err := ix.deleteByID(ctx, id)
	if err != nil {
		return err
	}
	if rec != nil {
		ix.journalDelete([]types.DeleteResult{{ID: rec.ID, FilePath: rec.FilePath, Success: true}},
			map[string]*types.SnapshotRecord{rec.ID: rec})
	}
	return nil
}

// deleteByID removes the file first so a failed file removal leaves the
// record in place for a retry.
func (ix *Index) deleteByID(ctx context.Context, id string) (*types.SnapshotRecord, error) {
	id = types.NormalizeID(id)
	rec, err := ix.backend.GetSnapshot(id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := ix.files.Delete(ctx, rec.FilePath); err != nil {
		return nil, err
	}
	if _, err := ix.backend.DeleteSnapshot(id); err != nil {
		return nil, err
	}

	ix.log.Info("saved page deleted", "id", id, "path", rec.FilePath)
	return rec, nil
}

// DeleteByFilePath removes the file at path and any record that owns it.
// It serves orphans known only by path.
func (ix *Index) DeleteByFilePath(ctx context.Context, path string) error {
	rec, err := ix.deleteByFilePath(ctx, path)
	if err != nil {
		return err
	}
	result := types.DeleteResult{FilePath: path, Success: true}
	recs := map[string]*types.SnapshotRecord{}
	if rec != nil {
		result.ID = rec.ID
		recs[rec.ID] = rec
	}
	ix.journalDelete([]types.DeleteResult{result}, recs)
	return nil
}

func (ix *Index) deleteByFilePath(ctx context.Context, path string) (*types.SnapshotRecord, error) {
	path, err := DiskPath(path)
	if err != nil {
		return nil, err
	}

	rec, err := ix.backend.SnapshotByFilePath(path)
	switch {
	case err == nil:
		return ix.deleteByID(ctx, rec.ID)
	case errors.Is(err, types.ErrNotFound):
	default:
		return nil, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.checkCaptureFile(path); err != nil {
		return nil, err
	}
	if !ix.orphanFile(path) {
		// Recorded by a capture that finished after the lookup above.
		return nil, fmt.Errorf("%w: %s was just recorded, delete it by id", types.ErrValidation, path)
	}
	if err := ix.files.Delete(ctx, path); err != nil {
		return nil, err
	}
	ix.log.Info("orphan file deleted", "path", path)
	return nil, nil
}

// DiskPath turns a filePath from a request into a clean local path. It
// accepts a plain path or a file:// URL, whose escapes are decoded.
func DiskPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "file:") {
		u, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("%w: invalid file URL %q: %v", types.ErrValidation, path, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("%w: file URL %q is not local", types.ErrValidation, path)
		}
		path = filepath.FromSlash(u.Path)
	}
	if path == "" {
		return "", fmt.Errorf("%w: filePath is required", types.ErrValidation)
	}
	return filepath.Clean(path), nil
}

// checkCaptureFile refuses to delete an unrecorded file unless it is a
// capture file directly under the snapshot root.
func (ix *Index) checkCaptureFile(path string) error {
	root, err := ix.files.Root()
	if err != nil {
		return err
	}
	if filepath.Dir(path) != filepath.Clean(root) || !snapshot.IsCaptureName(filepath.Base(path)) {
		return fmt.Errorf("%w: %s is not a capture file in the snapshot root", types.ErrValidation, path)
	}
	return nil
}

// orphanFile reports whether path still has no record.
func (ix *Index) orphanFile(path string) bool {
	_, err := ix.backend.SnapshotByFilePath(path)
	return errors.Is(err, types.ErrNotFound)
}

// orphanRecord reports whether r still exists and its file is still gone.
func (ix *Index) orphanRecord(r types.SnapshotRecord) bool {
	if !fileGone(r.FilePath) {
		return false
	}
	_, err := ix.backend.GetSnapshot(r.ID)
	return err == nil
}

// fileGone reports whether path is known to be missing. Other stat errors
// count as present, so nothing is reported or removed on a transient
// failure.
func fileGone(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// Delete removes one saved page by id, falling back to the file path.
func (ix *Index) Delete(ctx context.Context, req DeleteRequest) error {
	switch {
	case req.ID != "":
		return ix.DeleteByID(ctx, req.ID)
	case req.FilePath != "":
		return ix.DeleteByFilePath(ctx, req.FilePath)
	default:
		return fmt.Errorf("%w: id or filePath is required", types.ErrValidation)
	}
}

// DeleteMany attempts every deletion independently and reports each outcome.
// A failure never undoes deletions that already succeeded.
func (ix *Index) DeleteMany(ctx context.Context, reqs []DeleteRequest) []types.DeleteResult {
	results := make([]types.DeleteResult, 0, len(reqs))
	removed := make(map[string]*types.SnapshotRecord)

	for _, req := range reqs {
		res := types.DeleteResult{ID: req.ID, FilePath: req.FilePath}
		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		var (
			rec *types.SnapshotRecord
			err error
		)
		switch {
		case req.ID != "":
			rec, err = ix.deleteByID(ctx, req.ID)
		case req.FilePath != "":
			rec, err = ix.deleteByFilePath(ctx, req.FilePath)
		default:
			err = fmt.Errorf("%w: id or filePath is required", types.ErrValidation)
		}

		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		if rec != nil {
			res.ID = rec.ID
			res.FilePath = rec.FilePath
			removed[rec.ID] = rec
		}
		results = append(results, res)
	}

	ix.journalDelete(results, removed)
	return results
}

// Reconcile cross-references records with the capture files under the
// root. A record whose file List did not see is confirmed with a stat, which
// covers records under an older root and captures that landed after List.
func (ix *Index) Reconcile(ctx context.Context) (types.ReconcileReport, error) {
	report := types.ReconcileReport{
		OrphanRecords: []types.SnapshotRecord{},
		OrphanFiles:   []string{},
	}

	files, err := ix.files.List(ctx)
	if err != nil {
		return report, err
	}

	recs, err := ix.backend.ListSnapshots()
	if err != nil {
		return report, err
	}

	onDisk := make(map[string]struct{}, len(files))
	for _, f := range files {
		onDisk[filepath.Clean(f)] = struct{}{}
	}

	recorded := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		path := filepath.Clean(r.FilePath)
		recorded[path] = struct{}{}

		if _, ok := onDisk[path]; ok || !fileGone(path) {
			continue
		}
		report.OrphanRecords = append(report.OrphanRecords, *r)
	}

	for _, f := range files {
		if _, ok := recorded[filepath.Clean(f)]; !ok {
			report.OrphanFiles = append(report.OrphanFiles, f)
		}
	}

	if n := len(report.OrphanRecords) + len(report.OrphanFiles); n > 0 {
		ix.log.Info("reconcile found orphans",
			"records", len(report.OrphanRecords), "files", len(report.OrphanFiles))
	}
	return report, nil
}

// CleanupOptions selects which orphans Cleanup removes. The zero value
// removes both kinds.
type CleanupOptions struct {
	Records bool `json:"records"`
	Files   bool `json:"files"`
}

// Cleanup reconciles and then removes the selected orphan records and
// orphan files. Each orphan is checked again right before removal; one that
// a concurrent capture or deletion resolved is left alone and dropped from
// the returned report. Kinds that were not selected stay in the report.
func (ix *Index) Cleanup(ctx context.Context, opts CleanupOptions) (types.ReconcileReport, []types.DeleteResult, error) {
	report, err := ix.Reconcile(ctx)
	if err != nil {
		return report, nil, err
	}
	if !opts.Records && !opts.Files {
		opts.Records, opts.Files = true, true
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	results := make([]types.DeleteResult, 0, len(report.OrphanRecords)+len(report.OrphanFiles))
	pages := make([]manifest.PageRecord, 0, cap(results))

	if opts.Records {
		report.OrphanRecords = slices.DeleteFunc(report.OrphanRecords, func(r types.SnapshotRecord) bool {
			return !ix.orphanRecord(r)
		})
	}
	if opts.Files {
		report.OrphanFiles = slices.DeleteFunc(report.OrphanFiles, func(f string) bool {
			return !ix.orphanFile(f)
		})
	}

	for _, r := range report.OrphanRecords {
		if !opts.Records {
			break
		}
		res := types.DeleteResult{ID: r.ID, FilePath: r.FilePath, Success: true}
		if _, err := ix.backend.DeleteSnapshot(r.ID); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		results = append(results, res)
		pages = append(pages, pageRecord(res, &r))
	}

	for _, f := range report.OrphanFiles {
		if !opts.Files {
			break
		}
		res := types.DeleteResult{FilePath: f, Success: true}
		var size int64
		if info, err := os.Stat(f); err == nil {
			size = info.Size()
		}
		if err := ix.files.Delete(ctx, f); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		results = append(results, res)
		p := pageRecord(res, nil)
		p.Size = size
		pages = append(pages, p)
	}

	if ix.opts.Journal != nil && len(pages) > 0 {
		if _, err := ix.opts.Journal.LogCleanup(pages); err != nil {
			ix.log.Warn("failed to write cleanup manifest", "error", err)
		}
	}
	ix.log.Info("cleanup finished", "removed", len(results),
		"records", len(report.OrphanRecords), "files", len(report.OrphanFiles))
	return report, results, nil
}

func (ix *Index) journalDelete(results []types.DeleteResult, recs map[string]*types.SnapshotRecord) {
	if ix.opts.Journal == nil {
		return
	}
	pages := make([]manifest.PageRecord, 0, len(results))
	for _, res := range results {
		pages = append(pages, pageRecord(res, recs[res.ID]))
	}
	if len(pages) == 0 {
		return
	}
	if _, err := ix.opts.Journal.LogDelete(pages); err != nil {
		ix.log.Warn("failed to write delete manifest", "error", err)
	}
}

func pageRecord(res types.DeleteResult, rec *types.SnapshotRecord) manifest.PageRecord {
	p := manifest.PageRecord{ID: res.ID, FilePath: res.FilePath, Error: res.Error}
	if rec != nil {
		p.ProfileID = rec.ProfileID
		p.URL = rec.URL
		p.Title = rec.Title
		p.Size = rec.Size
		p.CapturedAt = rec.Timestamp
	}
	return p
}

// FileURL returns the file:// URL the extension opens a capture with.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
