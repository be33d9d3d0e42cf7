package store

import (
	"fmt"

	"github.com/playkit/dtg/internal/domain"
)

// SaveTasks implements spec §4.5's "batch insert (overwrite)": every task
// for itemID is replaced with tasks, in one transaction.
func (s *Store) SaveTasks(itemID string, tasks []domain.DownloadTask) error {
	tx, err := s.db.Begin()
	if err != nil {
		return domain.NewDBFailure(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks WHERE item_id = ?`, itemID); err != nil {
		return domain.NewDBFailure(fmt.Errorf("clear tasks for %s: %w", itemID, err))
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tasks (item_id, source_url, type, destination, order_num, resume_token, bytes_done, estimated_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return domain.NewDBFailure(err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		if _, err := stmt.Exec(itemID, t.SourceURL, string(t.Type), t.Destination, t.Order, t.ResumeToken, t.BytesDone, t.EstimatedSize); err != nil {
			return domain.NewDBFailure(fmt.Errorf("insert task %s: %w", t.SourceURL, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewDBFailure(err)
	}
	return nil
}

// ListTasks implements spec §4.5's "ordered list": every task for itemID,
// in planner dispatch order.
func (s *Store) ListTasks(itemID string) ([]domain.DownloadTask, error) {
	rows, err := s.db.Query(`
		SELECT item_id, source_url, type, destination, order_num, resume_token, bytes_done, estimated_size
		FROM tasks WHERE item_id = ? ORDER BY order_num ASC`, itemID)
	if err != nil {
		return nil, domain.NewDBFailure(fmt.Errorf("list tasks for %s: %w", itemID, err))
	}
	defer rows.Close()

	var out []domain.DownloadTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, domain.NewDBFailure(err)
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateTaskProgress implements spec §4.5's "single update (resume
// token)": it persists the resume token and the per-task byte count in one
// statement, so a re-fetched task's contribution replaces rather than adds
// to the item's downloadedSize (spec §9, resolved in DESIGN.md).
func (s *Store) UpdateTaskProgress(itemID, sourceURL string, resumeToken []byte, bytesDone uint64) error {
	res, err := s.db.Exec(`
		UPDATE tasks SET resume_token = ?, bytes_done = ?
		WHERE item_id = ? AND source_url = ?`, resumeToken, bytesDone, itemID, sourceURL)
	if err != nil {
		return domain.NewDBFailure(fmt.Errorf("update task progress %s: %w", sourceURL, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewItemNotFound(itemID)
	}
	return nil
}

// DeleteTask implements spec §4.5's "single delete".
func (s *Store) DeleteTask(itemID, sourceURL string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE item_id = ? AND source_url = ?`, itemID, sourceURL); err != nil {
		return domain.NewDBFailure(fmt.Errorf("delete task %s: %w", sourceURL, err))
	}
	return nil
}

// DeleteTasksForItem implements spec §4.5's "delete all tasks for an item
// (on cancel/remove)": unlike DeleteItem it leaves the item row itself (and
// its on-disk partial files) in place, since a cancelled item is not
// removed, only cleared of outstanding work.
func (s *Store) DeleteTasksForItem(itemID string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE item_id = ?`, itemID); err != nil {
		return domain.NewDBFailure(fmt.Errorf("delete tasks for %s: %w", itemID, err))
	}
	return nil
}

func scanTask(row rowScanner) (domain.DownloadTask, error) {
	var t domain.DownloadTask
	var taskType string
	var resumeBytes []byte

	err := row.Scan(&t.ItemID, &t.SourceURL, &taskType, &t.Destination, &t.Order, &resumeBytes, &t.BytesDone, &t.EstimatedSize)
	if err != nil {
		return t, err
	}
	t.Type = domain.TaskType(taskType)
	t.ResumeToken = resumeBytes
	return t, nil
}
