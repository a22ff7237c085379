// Package client talks to the tabkeepd registry over its local HTTP API and
// starts or stops the daemon process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// ErrUnavailable means the daemon could not be reached.
var ErrUnavailable = errors.New("daemon unavailable")

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// Unwrap maps the status code back onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return types.ErrValidation
	case http.StatusUnprocessableEntity:
		return types.ErrConfig
	default:
		return types.ErrStorage
	}
}

// Health is the daemon's /health report.
type Health struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	SnapshotRoot  string  `json:"snapshotRoot"`
	Profiles      int     `json:"profiles"`
	Snapshots     int     `json:"snapshots"`
	SnapshotBytes int64   `json:"snapshotBytes"`
	MemoryBytes   uint64  `json:"memoryBytes"`
}

// Uptime returns the uptime as a duration.
func (h *Health) Uptime() time.Duration {
	return time.Duration(h.UptimeSeconds * float64(time.Second))
}

// CleanupResult is the reconcile report plus per-item deletion results.
type CleanupResult struct {
	types.ReconcileReport
	Results []types.DeleteResult `json:"results"`
}

// Client is a registry API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at baseURL, e.g. http://127.0.0.1:3000.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// BaseURL returns the daemon URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health returns the daemon's health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Ping reports whether the daemon answers /health.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Health(ctx)
	return err == nil
}

// ListProfiles returns the profile views. Empty arguments use server
// defaults.
func (c *Client) ListProfiles(ctx context.Context, currentID string, filter types.FilterMode) ([]types.ProfileView, error) {
	q := url.Values{}
	if currentID != "" {
		q.Set("currentProfileId", currentID)
	}
	if filter != "" {
		q.Set("filter", string(filter))
	}
	var views []types.ProfileView
	if err := c.do(ctx, http.MethodGet, "/profiles", q, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// UpsertProfile reports a profile's name and tabs.
func (c *Client) UpsertProfile(ctx context.Context, id, name string, tabs []types.Tab) (*types.Profile, error) {
	if tabs == nil {
		tabs = []types.Tab{}
	}
	body := map[string]any{"profileId": id, "profileName": name, "tabs": tabs}
	var p types.Profile
	if err := c.do(ctx, http.MethodPost, "/profiles", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileName returns a profile's display name.
func (c *Client) ProfileName(ctx context.Context, id string) (string, error) {
	var resp struct {
		ProfileName string `json:"profileName"`
	}
	if err := c.do(ctx, http.MethodGet, "/profile-name", url.Values{"profileId": {id}}, nil, &resp); err != nil {
		return "", err
	}
	return resp.ProfileName, nil
}

// DeleteProfile removes a profile.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/profile", nil, map[string]string{"profileId": id}, nil)
}

// SetVisibility hides or shows a profile.
func (c *Client) SetVisibility(ctx context.Context, id string, hidden bool) error {
	body := map[string]any{"profileId": id, "isHidden": hidden}
	return c.do(ctx, http.MethodPost, "/profile/visibility", nil, body, nil)
}

// SavePage uploads a base64 capture.
func (c *Client) SavePage(ctx context.Context, profileID, pageURL, title, mhtmlBase64 string) (*types.SnapshotRecord, error) {
	body := map[string]string{
		"profileId": profileID,
		"url":       pageURL,
		"title":     title,
		"mhtmlData": mhtmlBase64,
	}
	var rec types.SnapshotRecord
	if err := c.do(ctx, http.MethodPost, "/save-page", nil, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSavedPages returns every snapshot record, newest first.
func (c *Client) ListSavedPages(ctx context.Context) ([]types.SnapshotRecord, error) {
	var recs []types.SnapshotRecord
	if err := c.do(ctx, http.MethodGet, "/saved-pages", nil, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteSavedPage removes one snapshot by id.
func (c *Client) DeleteSavedPage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/saved-page", nil, map[string]string{"id": id}, nil)
}

// DeleteSavedPages removes snapshots by id and orphan files by path.
func (c *Client) DeleteSavedPages(ctx context.Context, ids, filePaths []string) ([]types.DeleteResult, error) {
	body := map[string][]string{"ids": ids, "filePaths": filePaths}
	var resp struct {
		Results []types.DeleteResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/saved-pages/delete", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SavePath returns the snapshot root.
func (c *Client) SavePath(ctx context.Context) (string, error) {
	var resp struct {
		Path string `json:"path"`
	}
	if err := c.do(ctx, http.MethodGet, "/save-path", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// SetSavePath changes the snapshot root.
func (c *Client) SetSavePath(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, "/save-path", nil, map[string]string{"path": path}, nil)
}

// Settings returns every setting.
func (c *Client) Settings(ctx context.Context) (map[string]string, error) {
	var all map[string]string
	if err := c.do(ctx, http.MethodGet, "/settings", nil, nil, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// SetSetting stores one setting.
func (c *Client) SetSetting(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPost, "/settings", nil, map[string]string{"key": key, "value": value}, nil)
}

// Reconcile lists orphan records and orphan files.
func (c *Client) Reconcile(ctx context.Context) (*types.ReconcileReport, error) {
	var report types.ReconcileReport
	if err := c.do(ctx, http.MethodGet, "/reconcile", nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Cleanup removes orphans. With both flags false the daemon removes both
// kinds.
func (c *Client) Cleanup(ctx context.Context, records, files bool) (*CleanupResult, error) {
	body := map[string]bool{"records": records, "files": files}
	var res CleanupResult
	if err := c.do(ctx, http.MethodPost, "/cleanup", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/shutdown", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Code: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Code = resp.StatusCode
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
