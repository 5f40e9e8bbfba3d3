package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, root string) <-chan []Event {
	t.Helper()
	batches := make(chan []Event, 10)
	w := New(root, 50*time.Millisecond, func(_ context.Context, events []Event) {
		batches <- events
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return batches
}

func waitFor(t *testing.T, batches <-chan []Event) []Event {
	t.Helper()
	select {
	case events := <-batches:
		return events
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for change batch")
		return nil
	}
}

func TestWatcher_CreateEvent(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	if err := os.MkdirAll(filepath.Join(root, "Series"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Series", "new.cbz"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	events := waitFor(t, batches)
	if len(events) != 1 || events[0].Type != EventCreate || events[0].Path != "Series/new.cbz" {
		t.Errorf("events = %+v", events)
	}
}

func TestWatcher_ModifyAndDelete(t *testing.T) {
	root := t.TempDir()
	modified := filepath.Join(root, "a.cbr")
	deleted := filepath.Join(root, "b.pdf")
	os.WriteFile(modified, []byte("1"), 0644)
	os.WriteFile(deleted, []byte("1"), 0644)

	batches := startWatcher(t, root)

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(modified, later, later); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(deleted); err != nil {
		t.Fatal(err)
	}

	got := make(map[string]string)
	for len(got) < 2 {
		for _, e := range waitFor(t, batches) {
			got[e.Path] = e.Type
		}
	}
	if got["a.cbr"] != EventModify {
		t.Errorf("a.cbr event = %q, want modify", got["a.cbr"])
	}
	if got["b.pdf"] != EventDelete {
		t.Errorf("b.pdf event = %q, want delete", got["b.pdf"])
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	w := New(root, time.Hour, func(context.Context, []Event) {})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, ".hidden.cbz"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(root, ".trash"), 0755)
	os.WriteFile(filepath.Join(root, ".trash", "gone.cbz"), []byte("x"), 0644)

	if events := w.checkChanges(); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), 0, nil)
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing root")
	}
	if w.interval != DefaultInterval {
		t.Errorf("interval = %s, want default", w.interval)
	}
}
