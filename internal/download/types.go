package download

import "github.com/playkit/dtg/internal/domain"

// ProgressFunc reports a task's incremental byte progress. It must never
// be called while the worker holds an internal lock (spec §4.6).
type ProgressFunc func(task domain.DownloadTask, bytesDone uint64, resumeToken []byte)
