package download

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/playkit/dtg/internal/domain"
)

// Session drives one item's fetch tasks to completion: bounded concurrent
// GETs, pause/resume/cancel, retry with backoff, write-temp-then-rename
// (spec §4.6). It replaces the teacher's channel-fed worker pool
// (internal/engine/worker.go) with golang.org/x/sync/semaphore now that
// the work is a fixed, already-known task list rather than an open-ended
// dispatch loop.
type Session struct {
	client     *Client
	sem        *semaphore.Weighted
	maxRetries int

	mu   sync.Mutex
	gate chan struct{} // non-nil while paused; closed on Resume

	attemptMu      sync.Mutex
	nextAttemptID  int
	attemptCancels map[int]context.CancelFunc

	resultsMu sync.Mutex
	results   []taskOutcome

	OnProgress ProgressFunc                                 // called after every chunk and on completion
	OnTaskDone func(task domain.DownloadTask, err error)     // called once per task, final outcome
}

// taskOutcome is one task's final result once its retry budget is
// exhausted or it succeeds.
type taskOutcome struct {
	task domain.DownloadTask
	err  error
}

func NewSession(client *Client, concurrency, maxRetries int) *Session {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Session{
		client:     client,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		maxRetries: maxRetries,
	}
}

// Pause stops scheduling new fetches and asks every fetch already in
// flight to surrender its resume token immediately, rather than letting it
// run to completion (spec §4.6). It cancels each attempt's own context —
// derived from, but independent of, the session's parent context — which
// unblocks the in-flight CopyFrom with an error; runTask persists the
// resume token that error carries and blocks the task for Resume.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
	s.mu.Unlock()

	s.attemptMu.Lock()
	for _, cancel := range s.attemptCancels {
		cancel()
	}
	s.attemptMu.Unlock()
}

func (s *Session) registerAttempt(cancel context.CancelFunc) int {
	s.attemptMu.Lock()
	defer s.attemptMu.Unlock()
	s.nextAttemptID++
	id := s.nextAttemptID
	if s.attemptCancels == nil {
		s.attemptCancels = make(map[int]context.CancelFunc)
	}
	s.attemptCancels[id] = cancel
	return id
}

func (s *Session) unregisterAttempt(id int) {
	s.attemptMu.Lock()
	defer s.attemptMu.Unlock()
	delete(s.attemptCancels, id)
}

// Resume releases any task blocked in Pause.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

func (s *Session) waitIfPaused(ctx context.Context) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches every task in order (spec §4.6: "dispatch in planner
// order with insertion-order tiebreak"), bounded by the session's
// concurrency limit, and blocks until all have reached a final outcome or
// ctx is cancelled.
func (s *Session) Run(ctx context.Context, tasks []domain.DownloadTask) error {
	var wg sync.WaitGroup

	for _, task := range tasks {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return ctx.Err()
		}
		wg.Add(1)
		go func(t domain.DownloadTask) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.runTask(ctx, t)
		}(task)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.outcomeError()
}

// outcomeError summarizes every task's final result into a single error
// reflecting the worst outcome (spec §4.6/§7): a terminal (non-retryable)
// failure takes priority over one whose retries were merely exhausted,
// since the caller maps the former to failed and the latter to
// interrupted (retryable on a later Start).
func (s *Session) outcomeError() error {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()

	var retryableErr error
	for _, o := range s.results {
		if o.err == nil {
			continue
		}
		if !IsRetryable(o.err) {
			return o.err
		}
		if retryableErr == nil {
			retryableErr = o.err
		}
	}
	return retryableErr
}

// runTask retries a single task up to maxRetries times with exponential
// backoff, resuming from its last known offset via Range when possible.
// It never invokes OnProgress or OnTaskDone while holding s.mu.
func (s *Session) runTask(ctx context.Context, task domain.DownloadTask) {
	resume := decodeResume(task.ResumeToken)

	var lastErr error
	skipBackoff := false
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 && !skipBackoff {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				lastErr = ctx.Err()
				goto done
			}
		}
		skipBackoff = false

		if err := s.waitIfPaused(ctx); err != nil {
			lastErr = err
			goto done
		}

		newResume, err, pausedMidFetch := s.attemptOnce(ctx, task, resume)
		resume = newResume

		if err == nil {
			if s.OnProgress != nil {
				s.OnProgress(task, uint64(resume.Offset), nil)
			}
			lastErr = nil
			goto done
		}

		lastErr = err
		if s.OnProgress != nil {
			s.OnProgress(task, uint64(resume.Offset), encodeResume(resume))
		}

		if pausedMidFetch {
			// Surrendered to Pause rather than failed: the resume token
			// above already reflects the bytes flushed before the
			// interrupt. Block for Resume and retry the same attempt
			// without spending retry budget or backoff.
			attempt--
			skipBackoff = true
			if perr := s.waitIfPaused(ctx); perr != nil {
				lastErr = perr
				goto done
			}
			continue
		}

		if !IsRetryable(err) {
			break
		}
	}

done:
	s.resultsMu.Lock()
	s.results = append(s.results, taskOutcome{task: task, err: lastErr})
	s.resultsMu.Unlock()

	if s.OnTaskDone != nil {
		s.OnTaskDone(task, lastErr)
	}
}

// attemptOnce runs a single attempt on a context derived from ctx that
// Pause can cancel independently of it, then reports whether the failure
// (if any) was that cancellation rather than a real error.
func (s *Session) attemptOnce(ctx context.Context, task domain.DownloadTask, resume resumeState) (newResume resumeState, err error, pausedMidFetch bool) {
	attemptCtx, cancel := context.WithCancel(ctx)
	id := s.registerAttempt(cancel)
	defer s.unregisterAttempt(id)
	defer cancel()

	newResume, err = s.attempt(attemptCtx, task, resume)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() == context.Canceled {
		pausedMidFetch = true
	}
	return newResume, err, pausedMidFetch
}

// attempt performs a single GET (resuming at resume.Offset when set),
// streams the body into a temp file, and renames it into place on
// success. It returns the resume state reached even on failure, so the
// caller can persist partial progress.
func (s *Session) attempt(ctx context.Context, task domain.DownloadTask, resume resumeState) (resumeState, error) {
	body, ranged, err := s.client.FetchBody(ctx, task.SourceURL, resume.Offset)
	if err != nil {
		return resume, err
	}
	defer body.Close()

	startOffset := resume.Offset
	if !ranged {
		startOffset = 0
	}

	w, offset, err := openOrResumeAtomicWriter(task.Destination, resumeState{TmpPath: resume.TmpPath, Offset: startOffset})
	if err != nil {
		return resume, domain.NewInvalidInternalState("could not open temp file: " + err.Error())
	}

	var final resumeState
	final.TmpPath = w.tmpPath
	copyErr := w.CopyFrom(body, func(total uint64) {
		final.Offset = offset + int64(total)
		if s.OnProgress != nil {
			s.OnProgress(task, uint64(final.Offset), encodeResume(final))
		}
	})
	if copyErr != nil {
		if err := w.Close(); err != nil {
			w.Abort()
		}
		return final, domain.NewNetworkTimeout(task.SourceURL, copyErr)
	}

	if err := w.Commit(); err != nil {
		return final, domain.NewInvalidInternalState("commit failed: " + err.Error())
	}

	return final, nil
}

// backoffDelay implements spec §4.6's bounded exponential backoff: 1s,
// 2s, 4s, ... capped at 30s.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
