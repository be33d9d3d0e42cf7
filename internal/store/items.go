package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/playkit/dtg/internal/domain"
)

// UpsertItem implements spec §4.5's "item upsert": insert or overwrite by
// id.
func (s *Store) UpsertItem(item *domain.Item) error {
	_, err := s.db.Exec(`
		INSERT INTO items (id, source_url, state, root_dir, estimated_size, downloaded_size, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_url=excluded.source_url, state=excluded.state, root_dir=excluded.root_dir,
			estimated_size=excluded.estimated_size, downloaded_size=excluded.downloaded_size,
			error=excluded.error, updated_at=excluded.updated_at`,
		item.ID, item.SourceURL, string(item.State), item.RootDir,
		item.EstimatedSize, item.DownloadedSize.Load(), item.Error,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return domain.NewDBFailure(fmt.Errorf("upsert item %s: %w", item.ID, err))
	}
	return nil
}

// GetItem fetches a single item by id. Returns domain.ErrKindItemNotFound
// when absent.
func (s *Store) GetItem(id string) (*domain.Item, error) {
	row := s.db.QueryRow(`
		SELECT id, source_url, state, root_dir, estimated_size, downloaded_size, error, created_at, updated_at
		FROM items WHERE id = ?`, id)

	item, downloaded, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewItemNotFound(id)
		}
		return nil, domain.NewDBFailure(fmt.Errorf("get item %s: %w", id, err))
	}
	item.DownloadedSize.Store(downloaded)
	return item, nil
}

// ListItemsByState implements spec §4.5's "query by state".
func (s *Store) ListItemsByState(states ...domain.State) ([]*domain.Item, error) {
	query := `SELECT id, source_url, state, root_dir, estimated_size, downloaded_size, error, created_at, updated_at FROM items`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += " WHERE state IN (" + placeholders(len(states)) + ")"
		for _, st := range states {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, domain.NewDBFailure(fmt.Errorf("list items: %w", err))
	}
	defer rows.Close()

	var out []*domain.Item
	for rows.Next() {
		item, downloaded, err := scanItem(rows)
		if err != nil {
			return nil, domain.NewDBFailure(fmt.Errorf("scan item: %w", err))
		}
		item.DownloadedSize.Store(downloaded)
		out = append(out, item)
	}
	return out, nil
}

// DeleteItem removes the item row and every task belonging to it (spec
// §4.5's "delete-all-for-item" folded into item removal).
func (s *Store) DeleteItem(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return domain.NewDBFailure(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks WHERE item_id = ?`, id); err != nil {
		return domain.NewDBFailure(fmt.Errorf("delete tasks for %s: %w", id, err))
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return domain.NewDBFailure(fmt.Errorf("delete item %s: %w", id, err))
	}
	if err := tx.Commit(); err != nil {
		return domain.NewDBFailure(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, uint64, error) {
	item := &domain.Item{}
	var state string
	var downloaded uint64
	err := row.Scan(&item.ID, &item.SourceURL, &state, &item.RootDir,
		&item.EstimatedSize, &downloaded, &item.Error, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, 0, err
	}
	item.State = domain.State(state)
	return item, downloaded, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
