package domain

// TaskType is the logical type of a single fetch task (spec §3).
type TaskType string

const (
	TaskVideo TaskType = "video"
	TaskAudio TaskType = "audio"
	TaskText  TaskType = "text"
	TaskKey   TaskType = "key"
)

// DownloadTask is a single byte-range-less HTTP GET (spec §3). Its primary
// identity within an item is SourceURL.
type DownloadTask struct {
	ItemID      string
	SourceURL   string
	Type        TaskType
	Destination string // absolute filesystem path
	Order       int    // FIFO dispatch hint assigned by the planner

	ResumeToken []byte // opaque; persisted with every progress update so a pause or restart can resume
	BytesDone   uint64 // per-task progress, see Progress Aggregator (spec §9 open question)

	EstimatedSize uint64 // stored per task; the planner leaves it 0 and puts the estimate on the item
}
