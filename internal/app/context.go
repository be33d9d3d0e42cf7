// Package app assembles the composition root: config, logger, store,
// aggregator and manager, in the shape of the teacher's own app.Context.
package app

import (
	"time"

	"github.com/playkit/dtg/internal/download"
	"github.com/playkit/dtg/internal/infra/config"
	"github.com/playkit/dtg/internal/infra/logger"
	"github.com/playkit/dtg/internal/manager"
	"github.com/playkit/dtg/internal/progress"
	"github.com/playkit/dtg/internal/store"
)

// Context hold the core environment and shared resources for dtg. It
// acts as the single source of truth the CLI commands drive.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Store  *store.Store
	Agg    *progress.Aggregator
	Mgr    *manager.Manager
}

// New wires every component from cfg: opens the store, builds the HTTP
// client, aggregator and manager, and loads any items left over from a
// prior run.
func New(cfg *config.Config) (*Context, error) {
	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}

	agg := progress.NewAggregator(st)

	client := download.NewClient(time.Duration(cfg.Download.RequestTimeoutMS)*time.Millisecond, cfg.Download.UserAgentSuffix)

	mgr := manager.New(manager.Options{
		RootDir:              cfg.Download.RootDir,
		Concurrency:          cfg.Download.Concurrency,
		MaxRetries:           cfg.Download.MaxRetries,
		AudioBitrateFallback: cfg.Download.AudioBitrateKbps * 1000,
		Selection:            cfg.SelectionOptions(),
		Device:               cfg.DeviceCapabilities(),
	}, st, agg, client, log)

	if err := mgr.LoadExisting(); err != nil {
		log.Warn("could not load existing items: %v", err)
	}

	return &Context{Config: cfg, Logger: log, Store: st, Agg: agg, Mgr: mgr}, nil
}

// Close releases the store and stops the aggregator's delivery goroutine.
func (c *Context) Close() {
	c.Agg.Stop()
	c.Store.Close()
}
