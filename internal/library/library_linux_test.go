package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/huggablesquare/deputy/internal/archive/archivetest"
	"github.com/huggablesquare/deputy/internal/catalog"
)

func TestStuckArchiveDoesNotBlockOtherPages(t *testing.T) {
	root := t.TempDir()
	stuck := filepath.Join(root, "S", "a.cbz")
	archivetest.WritePages(t, stuck, 1)
	archivetest.WritePages(t, filepath.Join(root, "S", "b.cbz"), 1)
	l := openLibrary(t, root, Options{RenderWorkers: 2})

	// Opening a fifo with no writer blocks the reader.
	if err := os.Remove(stuck); err != nil {
		t.Fatal(err)
	}
	if err := unix.Mkfifo(stuck, 0644); err != nil {
		t.Skipf("mkfifo: %v", err)
	}

	done := make(chan struct{}, 2)
	for range 2 {
		go func() {
			l.Page(context.Background(), catalog.PathID("S/a.cbz"), 0)
			done <- struct{}{}
		}()
	}
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := l.Page(ctx, catalog.PathID("S/b.cbz"), 0); err != nil {
		t.Errorf("Page(b) while a is stuck: %v", err)
	}

	// A read-write open never blocks and releases the stuck readers.
	w, err := os.OpenFile(stuck, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	for range 2 {
		<-done
	}
}
