// Package progress implements the Progress Aggregator and Item state
// machine (spec §4.7): every state transition and byte-progress update is
// persisted before observers are notified, and notifications are always
// delivered on a single dedicated goroutine so a slow or reentrant
// observer never blocks the download path.
package progress

import (
	"sync"
	"time"

	"github.com/playkit/dtg/internal/domain"
)

// Notification is one delivered event: either a state change, a byte
// count update, or both.
type Notification struct {
	ItemID         string
	State          domain.State
	DownloadedSize uint64
	EstimatedSize  uint64
	Error          string
}

// Observer receives notifications. Implementations must not block for
// long — they run on the aggregator's single delivery goroutine.
type Observer interface {
	OnProgress(Notification)
}

// itemStore is the subset of store.Store the aggregator needs; kept as an
// interface so tests can substitute an in-memory fake.
type itemStore interface {
	UpsertItem(item *domain.Item) error
	UpdateTaskProgress(itemID, sourceURL string, resumeToken []byte, bytesDone uint64) error
	ListTasks(itemID string) ([]domain.DownloadTask, error)
}

// Aggregator owns every Item's in-memory state and is the sole writer of
// transitions and progress into the Task Store.
type Aggregator struct {
	store itemStore

	mu    sync.Mutex
	items map[string]*domain.Item

	notifyCh  chan Notification
	observers []Observer
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewAggregator(store itemStore) *Aggregator {
	a := &Aggregator{
		store:    store,
		items:    make(map[string]*domain.Item),
		notifyCh: make(chan Notification, 256),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go a.deliverLoop()
	return a
}

// Subscribe registers an observer. Not safe to call concurrently with
// Stop.
func (a *Aggregator) Subscribe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Stop drains and closes the delivery goroutine.
func (a *Aggregator) Stop() {
	close(a.stopCh)
	<-a.doneCh
}

func (a *Aggregator) deliverLoop() {
	defer close(a.doneCh)
	for {
		select {
		case n := <-a.notifyCh:
			a.deliver(n)
		case <-a.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case n := <-a.notifyCh:
					a.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (a *Aggregator) deliver(n Notification) {
	a.mu.Lock()
	observers := make([]Observer, len(a.observers))
	copy(observers, a.observers)
	a.mu.Unlock()

	for _, o := range observers {
		o.OnProgress(n)
	}
}

// Track registers an item the aggregator now owns (after Add/load-from-store).
func (a *Aggregator) Track(item *domain.Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[item.ID] = item
}

// Get returns the in-memory item, if tracked.
func (a *Aggregator) Get(id string) (*domain.Item, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item, ok := a.items[id]
	return item, ok
}

// All returns a snapshot of every tracked item.
func (a *Aggregator) All() []*domain.Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.Item, 0, len(a.items))
	for _, item := range a.items {
		out = append(out, item)
	}
	return out
}

// Untrack drops an item from memory (spec §4.7: removal is terminal).
func (a *Aggregator) Untrack(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, id)
}

// Transition moves item to a new state, persisting before notifying (spec
// §4.7). An illegal transition is rejected without touching the store.
func (a *Aggregator) Transition(itemID string, to domain.State, failureReason string) error {
	a.mu.Lock()
	item, ok := a.items[itemID]
	a.mu.Unlock()
	if !ok {
		return domain.NewItemNotFound(itemID)
	}

	a.mu.Lock()
	from := item.State
	if !domain.CanTransition(from, to) {
		a.mu.Unlock()
		return domain.NewInvalidState(itemID, from, to)
	}
	item.State = to
	if failureReason != "" {
		item.Error = failureReason
	}
	item.UpdatedAt = time.Now()
	snapshot := *item
	a.mu.Unlock()

	if err := a.store.UpsertItem(&snapshot); err != nil {
		return err
	}

	a.notifyCh <- Notification{
		ItemID:         itemID,
		State:          to,
		DownloadedSize: snapshot.DownloadedSize.Load(),
		EstimatedSize:  snapshot.EstimatedSize,
		Error:          snapshot.Error,
	}
	return nil
}

// RecordTaskProgress persists one task's new byte count and resume token,
// then recomputes the item's in-memory aggregate downloadedSize (spec §9:
// per-task tracking avoids double-counting a re-fetched task); the items
// row picks the new total up on the next Transition. Late
// progress arriving while the item is paused still persists but is
// reported with the item's current (paused) state, never silently
// resurrecting it to in-progress (spec §4.7: "late progress while paused
// stamps item as paused").
func (a *Aggregator) RecordTaskProgress(itemID string, task domain.DownloadTask, bytesDone uint64, resumeToken []byte) error {
	if err := a.store.UpdateTaskProgress(itemID, task.SourceURL, resumeToken, bytesDone); err != nil {
		return err
	}

	tasks, err := a.store.ListTasks(itemID)
	if err != nil {
		return err
	}
	var total uint64
	for _, t := range tasks {
		total += t.BytesDone
	}

	a.mu.Lock()
	item, ok := a.items[itemID]
	if !ok {
		a.mu.Unlock()
		return domain.NewItemNotFound(itemID)
	}
	// Monotonic per spec §4.7: never let a resumed task's smaller partial
	// count regress the item's reported total mid-flight.
	if total < item.DownloadedSize.Load() {
		total = item.DownloadedSize.Load()
	}
	item.DownloadedSize.Store(total)
	state := item.State
	estimated := item.EstimatedSize
	a.mu.Unlock()

	a.notifyCh <- Notification{
		ItemID:         itemID,
		State:          state,
		DownloadedSize: total,
		EstimatedSize:  estimated,
	}
	return nil
}
