// Package archivetest builds small comic archives for tests.
package archivetest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/zip"
)

// PNG returns a w×h single-colour PNG.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Entry is one member of a generated archive. A Name ending in "/" is a
// directory entry.
type Entry struct {
	Name string
	Data []byte
}

// WriteCBZ writes a zip archive at path, creating parent directories.
func WriteCBZ(t testing.TB, path string, entries ...Entry) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.Name, err)
		}
		if len(e.Data) > 0 {
			if _, err := w.Write(e.Data); err != nil {
				t.Fatalf("zip write %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

// WritePages writes a CBZ with n PNG pages named 1.png .. n.png.
func WritePages(t testing.TB, path string, n int) {
	t.Helper()
	entries := make([]Entry, 0, n)
	for i := range n {
		entries = append(entries, Entry{
			Name: pageName(i + 1),
			Data: PNG(t, 4, 4, color.Gray{Y: uint8(i * 20)}),
		})
	}
	WriteCBZ(t, path, entries...)
}

// WriteGarbage writes bytes that no archive reader accepts.
func WriteGarbage(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("this is not an archive"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func pageName(n int) string {
	return strconv.Itoa(n) + ".png"
}
