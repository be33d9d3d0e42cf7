package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/playkit/dtg/internal/domain"
	"github.com/playkit/dtg/internal/download"
)

// Start begins (or resumes) fetching an item's tasks (spec §4.6). It
// returns once the session has been launched; completion is reported
// asynchronously through the aggregator's observers.
func (m *Manager) Start(itemID string) error {
	item, ok := m.agg.Get(itemID)
	if !ok {
		return domain.NewItemNotFound(itemID)
	}

	if err := m.agg.Transition(itemID, domain.StateInProgress, ""); err != nil {
		return err
	}

	tasks, err := m.store.ListTasks(itemID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	session := download.NewSession(m.client, m.opts.Concurrency, m.opts.MaxRetries)
	session.OnProgress = func(task domain.DownloadTask, bytesDone uint64, resumeToken []byte) {
		if err := m.agg.RecordTaskProgress(itemID, task, bytesDone, resumeToken); err != nil {
			m.log.Warn("progress update failed for %s/%s: %v", itemID, task.SourceURL, err)
		}
	}
	session.OnTaskDone = func(task domain.DownloadTask, err error) {
		if err != nil {
			if !errIsCancellation(err) {
				m.log.Warn("task failed %s/%s: %v", itemID, task.SourceURL, err)
			}
			return
		}
		// A completed item has zero outstanding tasks (spec §4.5/§4.7): drop
		// the row as soon as its bytes have landed on disk, rather than
		// waiting for the whole item to finish.
		if err := m.store.DeleteTask(itemID, task.SourceURL); err != nil {
			m.log.Warn("could not clear completed task %s/%s: %v", itemID, task.SourceURL, err)
		}
	}

	m.mu.Lock()
	m.sessions[itemID] = session
	m.cancels[itemID] = cancel
	m.mu.Unlock()

	go m.runSession(ctx, itemID, item, session, tasks)

	return nil
}

func (m *Manager) runSession(ctx context.Context, itemID string, item *domain.Item, session *download.Session, tasks []domain.DownloadTask) {
	err := session.Run(ctx, tasks)

	m.mu.Lock()
	delete(m.sessions, itemID)
	delete(m.cancels, itemID)
	m.mu.Unlock()

	if err != nil {
		if errIsCancellation(err) {
			// Pause/Cancel already drove the transition; nothing more to do.
			return
		}
		// A retry-exhausted transient failure (5xx/408/429/timeout) can
		// still succeed on a later Start, so it lands in interrupted; a
		// terminal failure (4xx, malformed playlist) goes straight to
		// failed (spec §4.6/§7).
		if download.IsRetryable(err) {
			m.agg.Transition(itemID, domain.StateInterrupted, err.Error())
		} else {
			m.agg.Transition(itemID, domain.StateFailed, err.Error())
		}
		return
	}

	m.agg.Transition(itemID, domain.StateCompleted, "")
}

func errIsCancellation(err error) bool {
	return err == context.Canceled
}

// Pause stops dispatching new I/O for an in-progress item without
// discarding downloaded bytes or the running session (spec §4.6/§4.7).
func (m *Manager) Pause(itemID string) error {
	m.mu.Lock()
	session, ok := m.sessions[itemID]
	m.mu.Unlock()
	if !ok {
		return domain.NewInvalidInternalState(fmt.Sprintf("item %s has no active session to pause", itemID))
	}
	session.Pause()
	return m.agg.Transition(itemID, domain.StatePaused, "")
}

// Resume unblocks a paused item's in-flight session.
func (m *Manager) Resume(itemID string) error {
	m.mu.Lock()
	session, ok := m.sessions[itemID]
	m.mu.Unlock()
	if !ok {
		// No live session (e.g. after a restart): re-launch it.
		return m.Start(itemID)
	}
	session.Resume()
	return m.agg.Transition(itemID, domain.StateInProgress, "")
}

// Cancel aborts an item's in-flight fetches without persisting resume
// tokens and deletes all of its task rows (spec §4.5/§4.6); the on-disk
// partial files are left for the caller to clean up via Remove.
func (m *Manager) Cancel(itemID string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[itemID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	if err := m.store.DeleteTasksForItem(itemID); err != nil {
		return err
	}
	return m.agg.Transition(itemID, domain.StateFailed, "cancelled")
}

// Remove cancels any active session, deletes the item and its tasks from
// the store, and removes its on-disk directory tree.
func (m *Manager) Remove(itemID string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[itemID]
	m.mu.Unlock()
	if ok {
		cancel()
	}

	item, found := m.agg.Get(itemID)
	if !found {
		return domain.NewItemNotFound(itemID)
	}

	if err := m.agg.Transition(itemID, domain.StateRemoved, ""); err != nil {
		return err
	}
	if err := m.store.DeleteItem(itemID); err != nil {
		return err
	}
	m.agg.Untrack(itemID)

	if err := os.RemoveAll(item.RootDir); err != nil {
		m.log.Warn("could not remove item directory %s: %v", item.RootDir, err)
	}
	return nil
}

// GetItem returns the in-memory item, falling back to the store.
func (m *Manager) GetItem(itemID string) (*domain.Item, error) {
	if item, ok := m.agg.Get(itemID); ok {
		return item, nil
	}
	return m.store.GetItem(itemID)
}

// ListItems returns every item the aggregator currently tracks.
func (m *Manager) ListItems() []*domain.Item {
	return m.agg.All()
}
