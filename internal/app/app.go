// Package app wires configuration, object storage and the index store into
// the resources the lookup binaries share.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arkilian/rangelookup/internal/config"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/observability"
	"github.com/arkilian/rangelookup/internal/storage"
	"github.com/arkilian/rangelookup/internal/store"
)

// Mode selects how the index store is opened.
type Mode int

const (
	// ModeRead opens the configured snapshot when one is set, otherwise the
	// store at Store.Path.
	ModeRead Mode = iota
	// ModeWrite always opens the store at Store.Path for writing.
	ModeWrite
)

// App manages the shared resources of a lookup process.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	// Shared resources
	storage storage.ObjectStorage
	store   store.Store
	writer  store.Writer
	closer  io.Closer
	factory *store.Factory
	stats   *observability.LookupStats

	mu   sync.Mutex
	open bool
}

// New resolves and validates cfg and creates the directories it names.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{
		cfg:    cfg,
		logger: logging.OrNoop(logger),
		stats:  observability.NewLookupStats(time.Hour),
	}, nil
}

// Open initializes object storage and the index store.
func (a *App) Open(ctx context.Context, mode Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return fmt.Errorf("app is already open")
	}

	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := a.initStore(ctx, mode); err != nil {
		return fmt.Errorf("failed to initialize index store: %w", err)
	}

	a.factory = store.NewFactory(a.store, int64(a.cfg.Lookup.MaxConcurrentSessions))
	a.open = true
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	var err error
	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.storage, err = storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:       a.cfg.Storage.S3.Bucket,
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return err
	}
	a.logger.Info("app: storage initialized", "type", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		a.logger.Debug("app: s3 storage", "bucket", a.cfg.Storage.S3.Bucket,
			"region", a.cfg.Storage.S3.Region, "endpoint", a.cfg.Storage.S3.Endpoint)
	}
	return nil
}

func (a *App) initStore(ctx context.Context, mode Mode) error {
	switch {
	case a.cfg.Store.Type == "memory":
		m := store.NewMemoryStore()
		a.store, a.writer = m, m
	case mode == ModeRead && a.cfg.Store.SnapshotObject != "":
		s, err := store.OpenSnapshot(ctx, a.storage, a.cfg.Store.SnapshotObject, a.cfg.Store.CacheDir)
		if err != nil {
			return err
		}
		a.store, a.closer = s, s
		a.logger.Info("app: index snapshot opened", "object", a.cfg.Store.SnapshotObject)
		return nil
	case mode == ModeRead:
		s, err := store.OpenSQLiteStoreReadOnly(a.cfg.Store.Path)
		if err != nil {
			return err
		}
		a.store, a.closer = s, s
	default:
		s, err := store.OpenSQLiteStore(a.cfg.Store.Path)
		if err != nil {
			return err
		}
		a.store, a.writer, a.closer = s, s, s
	}
	a.logger.Info("app: index store opened", "type", a.cfg.Store.Type, "path", a.cfg.Store.Path)
	return nil
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the process logger.
func (a *App) Logger() *logging.Logger { return a.logger }

// Stats returns the lookup statistics shared by every lookup of the process.
func (a *App) Stats() *observability.LookupStats { return a.stats }

// Factory returns the session factory over the index store.
func (a *App) Factory() *store.Factory { return a.factory }

// Writer returns the index store for writing. Stores opened with ModeRead
// are not writable, except the in-memory store.
func (a *App) Writer() (store.Writer, error) {
	if a.writer == nil {
		return nil, fmt.Errorf("index store is read-only")
	}
	return a.writer, nil
}

// Publish closes the index store and uploads it as the configured snapshot
// object. The app is closed afterwards.
func (a *App) Publish(ctx context.Context) error {
	if a.cfg.Store.SnapshotObject == "" {
		return fmt.Errorf("store.snapshot_object is not set")
	}
	if a.cfg.Store.Type != "sqlite" || a.writer == nil {
		return fmt.Errorf("only a writable sqlite store can be published")
	}
	if err := a.Close(); err != nil {
		return fmt.Errorf("failed to close index store before publishing: %w", err)
	}
	if err := a.storage.Upload(ctx, a.cfg.Store.Path, a.cfg.Store.SnapshotObject); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	a.logger.Info("app: snapshot published", "object", a.cfg.Store.SnapshotObject)
	return nil
}

// Close closes every open session and the index store. It is safe to call
// more than once.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return nil
	}
	a.open = false

	var firstErr error
	if err := a.factory.CloseAll(); err != nil {
		firstErr = err
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
