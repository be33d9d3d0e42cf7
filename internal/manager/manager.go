// Package manager is the content-manager facade (spec's "external
// collaborators" section): a thin composition root wiring the Playlist
// Parser/Selector/Planner/Rewriter, the Download Worker, the Task Store
// and the Progress Aggregator into Add/Start/Pause/Cancel/Remove entry
// points, in the shape of the teacher's internal/engine.QueueManager.
package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/playkit/dtg/internal/domain"
	"github.com/playkit/dtg/internal/download"
	"github.com/playkit/dtg/internal/hls"
	"github.com/playkit/dtg/internal/infra/logger"
	"github.com/playkit/dtg/internal/progress"
	"github.com/playkit/dtg/internal/store"
)

// Options configures how every item is localized and fetched.
type Options struct {
	RootDir              string
	Concurrency          int
	MaxRetries           int
	AudioBitrateFallback int // bits/sec
	Selection            domain.SelectionOptions
	Device               domain.DeviceCapabilities
}

// Manager is the facade the CLI (or any other host) drives.
type Manager struct {
	opts   Options
	store  *store.Store
	agg    *progress.Aggregator
	client *download.Client
	log    *logger.Logger

	mu       sync.Mutex
	sessions map[string]*download.Session
	cancels  map[string]context.CancelFunc
}

func New(opts Options, st *store.Store, agg *progress.Aggregator, client *download.Client, log *logger.Logger) *Manager {
	return &Manager{
		opts:     opts,
		store:    st,
		agg:      agg,
		client:   client,
		log:      log,
		sessions: make(map[string]*download.Session),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// LoadExisting restores every non-terminal item from the store into the
// aggregator on startup, the way the teacher's NewQueueManager does with
// GetActiveQueueItems.
func (m *Manager) LoadExisting() error {
	items, err := m.store.ListItemsByState(
		domain.StateNew, domain.StateMetadataLoaded, domain.StateInProgress,
		domain.StatePaused, domain.StateInterrupted,
	)
	if err != nil {
		return err
	}
	for _, item := range items {
		tasks, err := m.store.ListTasks(item.ID)
		if err != nil {
			return err
		}
		var downloaded uint64
		for _, t := range tasks {
			downloaded += t.BytesDone
		}
		item.DownloadedSize.Store(downloaded)
		m.agg.Track(item)
	}
	return nil
}

// Add parses and localizes sourceURL, plans every fetch task, writes the
// rewritten playlists to disk, and persists the item in metadataLoaded
// state (spec §4.1–§4.4 composed).
func (m *Manager) Add(sourceURL string) (*domain.Item, error) {
	id := ksuid.New().String()
	root := filepath.Join(m.opts.RootDir, "items", domain.SafeItemID(id))

	item := domain.NewItem(id, sourceURL, root)
	m.agg.Track(item)
	if err := m.store.UpsertItem(item); err != nil {
		return nil, err
	}

	masterText, err := m.client.FetchText(sourceURL)
	if err != nil {
		m.agg.Transition(id, domain.StateFailed, err.Error())
		return item, err
	}

	result, err := hls.Localize(masterText, sourceURL, m.opts.Selection, m.opts.Device, m.client, root, m.opts.AudioBitrateFallback)
	if err != nil {
		m.agg.Transition(id, domain.StateFailed, err.Error())
		return item, err
	}

	for _, dir := range hls.Subdirs(root) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			wrapped := domain.NewInvalidInternalState("could not create item directories: " + err.Error())
			m.agg.Transition(id, domain.StateFailed, wrapped.Error())
			return item, wrapped
		}
	}

	if err := writePlaylists(root, result); err != nil {
		m.agg.Transition(id, domain.StateFailed, err.Error())
		return item, err
	}

	if err := m.store.SaveTasks(id, result.Plan.Tasks); err != nil {
		m.agg.Transition(id, domain.StateFailed, err.Error())
		return item, err
	}

	item.EstimatedSize = result.Plan.EstimatedSize
	if err := m.agg.Transition(id, domain.StateMetadataLoaded, ""); err != nil {
		return item, err
	}
	item.State = domain.StateMetadataLoaded

	return item, nil
}

func writePlaylists(root string, result *hls.LocalizeResult) error {
	if err := os.WriteFile(filepath.Join(root, "master.m3u8"), []byte(result.MasterText), 0644); err != nil {
		return domain.NewInvalidInternalState("could not write master playlist: " + err.Error())
	}
	if err := os.WriteFile(filepath.Join(root, string(domain.TaskVideo), result.VideoRelPath), []byte(result.VideoText), 0644); err != nil {
		return domain.NewInvalidInternalState("could not write video playlist: " + err.Error())
	}
	for name, text := range result.AudioText {
		if err := os.WriteFile(filepath.Join(root, string(domain.TaskAudio), name), []byte(text), 0644); err != nil {
			return domain.NewInvalidInternalState("could not write audio playlist: " + err.Error())
		}
	}
	for name, text := range result.TextText {
		if err := os.WriteFile(filepath.Join(root, string(domain.TaskText), name), []byte(text), 0644); err != nil {
			return domain.NewInvalidInternalState("could not write text playlist: " + err.Error())
		}
	}
	return nil
}
