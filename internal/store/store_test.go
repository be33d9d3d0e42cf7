package store

import (
	"path/filepath"
	"testing"

	"github.com/playkit/dtg/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "dtg.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGetItem(t *testing.T) {
	s := openTestStore(t)

	item := domain.NewItem("item-1", "https://cdn.example.com/master.m3u8", "/items/item-1")
	item.EstimatedSize = 12345
	item.DownloadedSize.Store(100)

	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	got, err := s.GetItem("item-1")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.SourceURL != item.SourceURL {
		t.Errorf("SourceURL = %q, want %q", got.SourceURL, item.SourceURL)
	}
	if got.EstimatedSize != 12345 {
		t.Errorf("EstimatedSize = %d, want 12345", got.EstimatedSize)
	}
	if got.DownloadedSize.Load() != 100 {
		t.Errorf("DownloadedSize = %d, want 100", got.DownloadedSize.Load())
	}
	if got.State != domain.StateNew {
		t.Errorf("State = %s, want %s", got.State, domain.StateNew)
	}
}

func TestUpsertItemOverwritesOnConflict(t *testing.T) {
	s := openTestStore(t)

	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	item.State = domain.StateInProgress
	item.DownloadedSize.Store(500)
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem (update): %v", err)
	}

	got, err := s.GetItem("item-1")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.State != domain.StateInProgress {
		t.Errorf("State = %s, want %s", got.State, domain.StateInProgress)
	}
	if got.DownloadedSize.Load() != 500 {
		t.Errorf("DownloadedSize = %d, want 500", got.DownloadedSize.Load())
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetItem("missing")
	derr, ok := err.(*domain.Error)
	if !ok || derr.Kind != domain.ErrKindItemNotFound {
		t.Fatalf("expected item-not-found error, got %v", err)
	}
}

func TestListItemsByState(t *testing.T) {
	s := openTestStore(t)

	a := domain.NewItem("a", "https://x/a.m3u8", "/items/a")
	a.State = domain.StateInProgress
	b := domain.NewItem("b", "https://x/b.m3u8", "/items/b")
	b.State = domain.StateCompleted
	c := domain.NewItem("c", "https://x/c.m3u8", "/items/c")
	c.State = domain.StatePaused

	for _, it := range []*domain.Item{a, b, c} {
		if err := s.UpsertItem(it); err != nil {
			t.Fatalf("UpsertItem: %v", err)
		}
	}

	active, err := s.ListItemsByState(domain.StateInProgress, domain.StatePaused)
	if err != nil {
		t.Fatalf("ListItemsByState: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active items, got %d", len(active))
	}
	for _, it := range active {
		if it.ID == "b" {
			t.Error("completed item should not be listed as active")
		}
	}
}

func TestDeleteItemCascadesToTasks(t *testing.T) {
	s := openTestStore(t)

	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	tasks := []domain.DownloadTask{
		{SourceURL: "https://x/seg0.ts", Type: domain.TaskVideo, Destination: "/items/item-1/video/seg0.ts", Order: 0},
	}
	if err := s.SaveTasks("item-1", tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	if err := s.DeleteItem("item-1"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	if _, err := s.GetItem("item-1"); err == nil {
		t.Error("expected item to be gone")
	}
	remaining, err := s.ListTasks("item-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no tasks left after item deletion, got %d", len(remaining))
	}
}

func TestSaveTasksReplacesPreviousSet(t *testing.T) {
	s := openTestStore(t)
	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	first := []domain.DownloadTask{
		{SourceURL: "https://x/a.ts", Type: domain.TaskVideo, Destination: "/a", Order: 0},
		{SourceURL: "https://x/b.ts", Type: domain.TaskVideo, Destination: "/b", Order: 1},
	}
	if err := s.SaveTasks("item-1", first); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	second := []domain.DownloadTask{
		{SourceURL: "https://x/c.ts", Type: domain.TaskVideo, Destination: "/c", Order: 0},
	}
	if err := s.SaveTasks("item-1", second); err != nil {
		t.Fatalf("SaveTasks (replace): %v", err)
	}

	got, err := s.ListTasks("item-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 1 || got[0].SourceURL != "https://x/c.ts" {
		t.Fatalf("expected only the second batch to remain, got %+v", got)
	}
}

func TestListTasksOrderedByOrderNum(t *testing.T) {
	s := openTestStore(t)
	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	tasks := []domain.DownloadTask{
		{SourceURL: "https://x/c.ts", Type: domain.TaskVideo, Destination: "/c", Order: 2},
		{SourceURL: "https://x/a.ts", Type: domain.TaskVideo, Destination: "/a", Order: 0},
		{SourceURL: "https://x/b.ts", Type: domain.TaskVideo, Destination: "/b", Order: 1},
	}
	if err := s.SaveTasks("item-1", tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	got, err := s.ListTasks("item-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for i, task := range got {
		if task.Order != i {
			t.Errorf("task[%d].Order = %d, want %d", i, task.Order, i)
		}
	}
}

func TestUpdateTaskProgress(t *testing.T) {
	s := openTestStore(t)
	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	tasks := []domain.DownloadTask{
		{SourceURL: "https://x/a.ts", Type: domain.TaskVideo, Destination: "/a", Order: 0},
	}
	if err := s.SaveTasks("item-1", tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	if err := s.UpdateTaskProgress("item-1", "https://x/a.ts", []byte("resume-token"), 4096); err != nil {
		t.Fatalf("UpdateTaskProgress: %v", err)
	}

	got, err := s.ListTasks("item-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if got[0].BytesDone != 4096 {
		t.Errorf("BytesDone = %d, want 4096", got[0].BytesDone)
	}
	if string(got[0].ResumeToken) != "resume-token" {
		t.Errorf("ResumeToken = %q, want %q", got[0].ResumeToken, "resume-token")
	}
}

func TestDeleteTasksForItemLeavesItemRow(t *testing.T) {
	s := openTestStore(t)
	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	tasks := []domain.DownloadTask{
		{SourceURL: "https://x/a.ts", Type: domain.TaskVideo, Destination: "/a", Order: 0},
		{SourceURL: "https://x/b.ts", Type: domain.TaskVideo, Destination: "/b", Order: 1},
	}
	if err := s.SaveTasks("item-1", tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	if err := s.DeleteTasksForItem("item-1"); err != nil {
		t.Fatalf("DeleteTasksForItem: %v", err)
	}

	remaining, err := s.ListTasks("item-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no tasks left, got %d", len(remaining))
	}
	if _, err := s.GetItem("item-1"); err != nil {
		t.Errorf("expected the item row to survive DeleteTasksForItem: %v", err)
	}
}

func TestUpdateTaskProgressUnknownTask(t *testing.T) {
	s := openTestStore(t)
	item := domain.NewItem("item-1", "https://x/master.m3u8", "/items/item-1")
	if err := s.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	err := s.UpdateTaskProgress("item-1", "https://x/missing.ts", nil, 1)
	if err == nil {
		t.Fatal("expected an error for an unknown task")
	}
}
