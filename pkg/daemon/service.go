package daemon

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jamesainslie/tabkeep/pkg/daemon/store"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/pageindex"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/profile"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/settings"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/snapshot"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/view"
)

// captureBodySlack covers the JSON envelope around the base64 payload.
const captureBodySlack = 64 * 1024

// defaultBodyLimit caps every request other than /save-page.
const defaultBodyLimit = 4 << 20

// ServiceDeps are the components behind the HTTP surface.
type ServiceDeps struct {
	Store     *store.Store
	Profiles  *profile.Registry
	Pages     *pageindex.Index
	Snapshots *snapshot.Store
	Settings  *settings.Settings
	Version   string
	// MaxCaptureSize is the decoded size cap; the /save-page body limit
	// is derived from it.
	MaxCaptureSize int64
	// OnRootChange runs after the snapshot root was changed.
	OnRootChange func(root string)
	// OnShutdown runs once after a /shutdown request was answered.
	OnShutdown func()
}

// Service implements the registry's HTTP API.
type Service struct {
	store     *store.Store
	profiles  *profile.Registry
	pages     *pageindex.Index
	snapshots *snapshot.Store
	settings  *settings.Settings
	views     *view.Assembler
	metrics   *Metrics

	version      string
	captureLimit int64
	onRootChange func(root string)
	onShutdown   func()
	startTime    time.Time

	log     *logging.Logger
	httpLog *logging.Logger
}

// NewService creates the HTTP service.
func NewService(deps ServiceDeps) *Service {
	return &Service{
		store:        deps.Store,
		profiles:     deps.Profiles,
		pages:        deps.Pages,
		snapshots:    deps.Snapshots,
		settings:     deps.Settings,
		views:        view.NewAssembler(deps.Profiles, deps.Pages),
		metrics:      NewMetrics(deps.Store),
		version:      deps.Version,
		captureLimit: deps.MaxCaptureSize*4/3 + captureBodySlack,
		onRootChange: deps.OnRootChange,
		onShutdown:   deps.OnShutdown,
		startTime:    time.Now(),
		log:          logging.Get("daemon"),
		httpLog:      logging.Get("http"),
	}
}

// Metrics returns the service's collectors.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the router.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)
	r.Use(s.metrics.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(bodyLimit(defaultBodyLimit))

		r.Get("/profiles", s.handleListProfiles)
		r.Post("/profiles", s.handleUpsertProfile)
		r.Get("/profile-name", s.handleProfileName)
		r.Delete("/profile", s.handleDeleteProfile)
		r.Post("/profile/visibility", s.handleSetVisibility)

		r.Get("/saved-pages", s.handleListSavedPages)
		r.Delete("/saved-page", s.handleDeleteSavedPage)
		r.Post("/saved-pages/delete", s.handleDeleteSavedPages)

		r.Get("/save-path", s.handleGetSavePath)
		r.Post("/save-path", s.handleSetSavePath)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleSetSetting)

		r.Get("/reconcile", s.handleReconcile)
		r.Post("/cleanup", s.handleCleanup)

		r.Get("/health", s.handleHealth)
		r.Post("/shutdown", s.handleShutdown)
	})

	r.With(bodyLimit(s.captureLimit)).Post("/save-page", s.handleSavePage)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs each request through the http component logger;
// server errors are raised to warn.
func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		l := s.httpLog.With(
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
		)
		args := []interface{}{"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start)}
		if ww.Status() >= http.StatusInternalServerError {
			l.Warn("request failed", args...)
			return
		}
		l.Debug("request", args...)
	})
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	SnapshotRoot  string  `json:"snapshotRoot"`
	Profiles      int     `json:"profiles"`
	Snapshots     int     `json:"snapshots"`
	SnapshotBytes int64   `json:"snapshotBytes"`
	MemoryBytes   uint64  `json:"memoryBytes"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	root, err := s.snapshots.Root()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	okJSON(w, HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		SnapshotRoot:  root,
		Profiles:      stats.Profiles,
		Snapshots:     stats.Snapshots,
		SnapshotBytes: stats.SnapshotBytes,
		MemoryBytes:   mem.Alloc,
	})
}

func (s *Service) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	okJSON(w, ok)
	if f, isFlusher := w.(http.Flusher); isFlusher {
		f.Flush()
	}
	if s.onShutdown != nil {
		s.log.Info("shutdown requested")
		go s.onShutdown()
	}
}
