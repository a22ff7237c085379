package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jamesainslie/tabkeep/pkg/daemon/store"
	"github.com/jamesainslie/tabkeep/pkg/daemon/watcher"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/logging"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/manifest"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/pageindex"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/profile"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/settings"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/snapshot"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

// removalGrace is how long a removed file's record may linger before the
// removal counts as external. The daemon's own deletes remove the file
// first and the record right after.
const removalGrace = 500 * time.Millisecond

const shutdownTimeout = 10 * time.Second

// Daemon owns every registry component and the HTTP server.
type Daemon struct {
	cfg       *config.Config
	store     *store.Store
	settings  *settings.Settings
	snapshots *snapshot.Store
	pages     *pageindex.Index
	watcher   *watcher.Watcher
	service   *Service
	server    *Server

	stopOnce sync.Once
	stop     chan struct{}

	log *logging.Logger
}

// Open builds the daemon from cfg: it opens and migrates the database,
// resolves the snapshot root and binds the listen address.
func Open(ctx context.Context, cfg *config.Config, version string) (*Daemon, error) {
	log := logging.Get("daemon")

	minSize, maxSize, err := cfg.SizeLimits()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	filter, err := types.ParseFilterMode(cfg.Profiles.DefaultFilter, types.FilterActive)
	if err != nil {
		return nil, fmt.Errorf("%w: profiles.default_filter: %v", types.ErrConfig, err)
	}

	dbPath := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	d := &Daemon{cfg: cfg, store: st, stop: make(chan struct{}), log: log}
	if err := d.init(ctx, minSize, maxSize, filter, version); err != nil {
		d.closeComponents()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) init(ctx context.Context, minSize, maxSize int64, filter types.FilterMode, version string) error {
	migrated, err := d.store.Migrate(ctx, func(p store.MigrationProgress) {
		d.log.Info("migrating registry", "from", p.FromVersion, "to", p.ToVersion,
			"done", p.RecordsDone, "total", p.RecordsTotal)
	})
	if err != nil {
		return err
	}
	if migrated > 0 {
		d.log.Info("registry migrated", "migrations", migrated)
	}

	d.settings = settings.New(d.store, settings.Defaults{
		SnapshotRoot:  d.cfg.Snapshots.Root,
		ProfileFilter: filter,
	})
	d.snapshots = snapshot.New(d.settings, snapshot.Options{
		MaxSize:  maxSize,
		UseTrash: d.cfg.Snapshots.UseTrash,
	})

	root, rootErr := d.snapshots.ResolveRoot()
	if rootErr != nil {
		// Captures fail until a usable root is set; everything else works.
		d.log.Warn("snapshot root unusable", "error", rootErr)
	}

	opts := pageindex.Options{MinSize: minSize, MaxSize: maxSize}
	if d.cfg.Manifest.Enabled {
		m, err := manifest.New(d.cfg.Manifest.Path)
		if err != nil {
			return err
		}
		if n, err := m.Cleanup(d.cfg.Manifest.RetentionDays); err != nil {
			d.log.Warn("manifest cleanup failed", "error", err)
		} else if n > 0 {
			d.log.Info("expired manifest entries removed", "count", n)
		}
		opts.Journal = m
	}
	d.pages = pageindex.New(d.store, d.snapshots, opts)

	d.watcher, err = watcher.New()
	if err != nil {
		return err
	}
	if rootErr == nil {
		if err := d.watcher.Watch(root); err != nil {
			d.log.Warn("cannot watch snapshot root", "path", root, "error", err)
		}
	}

	d.service = NewService(ServiceDeps{
		Store:          d.store,
		Profiles:       profile.NewRegistry(d.store),
		Pages:          d.pages,
		Snapshots:      d.snapshots,
		Settings:       d.settings,
		Version:        version,
		MaxCaptureSize: maxSize,
		OnRootChange:   d.retarget,
		OnShutdown:     d.Stop,
	})

	d.server, err = Listen(d.cfg.ListenAddr, d.service.Handler())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.ListenAddr, err)
	}
	return nil
}

// Addr returns the address the daemon is serving on.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Service returns the HTTP service.
func (d *Daemon) Service() *Service {
	return d.service
}

// Run serves until ctx is cancelled or Stop is called, then shuts the
// server down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go d.watcher.Run(ctx, d.onFileEvent)

	serveErr := make(chan error, 1)
	go func() { serveErr <- d.server.Serve() }()

	d.log.Info("tabkeepd serving", "addr", d.Addr())

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	case <-d.stop:
	}

	d.log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}

// Stop asks Run to return. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Close releases the watcher and the database.
func (d *Daemon) Close() error {
	return d.closeComponents()
}

func (d *Daemon) closeComponents() error {
	var errs []error
	if d.watcher != nil {
		errs = append(errs, d.watcher.Close())
	}
	if d.server != nil {
		_ = d.server.listener.Close()
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

func (d *Daemon) retarget(root string) {
	if err := d.watcher.Watch(root); err != nil {
		d.log.Warn("cannot watch snapshot root", "path", root, "error", err)
	}
}

func (d *Daemon) onFileEvent(ev watcher.Event) {
	switch ev.Op {
	case watcher.Removed:
		time.AfterFunc(removalGrace, func() { d.checkExternalRemoval(ev.Path) })
	case watcher.Created:
		d.log.Debug("file appeared in snapshot root", "path", ev.Path)
	}
}

func (d *Daemon) checkExternalRemoval(path string) {
	rec, err := d.pages.ByFilePath(path)
	if err != nil {
		return
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return
	}
	d.service.metrics.externalRemoves.Inc()
	d.log.Warn("recorded snapshot removed outside tabkeep",
		"id", rec.ID, "url", rec.URL, "path", path)
}
