package domain

import (
	"sync/atomic"
	"time"
)

// State is a lifecycle stage of an Item. See the transition table in
// AllowedTransitions.
type State string

const (
	StateNew            State = "new"
	StateMetadataLoaded State = "metadataLoaded"
	StateInProgress     State = "inProgress"
	StatePaused         State = "paused"
	StateInterrupted    State = "interrupted"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateRemoved        State = "removed"
	StateDBFailure      State = "dbFailure"
)

// AllowedTransitions encodes the state machine from spec §4.7. A transition
// not present here is rejected with an invalid-state error (NewInvalidState).
var AllowedTransitions = map[State][]State{
	StateNew:            {StateMetadataLoaded, StateFailed, StateRemoved, StateDBFailure},
	StateMetadataLoaded: {StateInProgress, StateFailed, StateRemoved, StateDBFailure},
	StateInProgress:     {StatePaused, StateInterrupted, StateCompleted, StateFailed, StateRemoved, StateDBFailure},
	StatePaused:         {StateInProgress, StateFailed, StateRemoved, StateDBFailure},
	StateInterrupted:    {StateInProgress, StatePaused, StateFailed, StateRemoved, StateDBFailure},
	StateCompleted:      {StateRemoved},
	StateFailed:         {StateRemoved},
	StateDBFailure:      {StateRemoved},
	StateRemoved:        {},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to State) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Item is the unit of offline content (spec §3).
type Item struct {
	ID        string
	SourceURL string
	State     State
	RootDir   string

	EstimatedSize  uint64
	DownloadedSize atomic.Uint64

	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem constructs an item in its initial state. The caller supplies both
// the id and the root directory, which is stored as given (manager.Add
// derives it from the id via SafeItemID).
func NewItem(id, sourceURL, root string) *Item {
	now := time.Now()
	return &Item{
		ID:        id,
		SourceURL: sourceURL,
		State:     StateNew,
		RootDir:   root,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
