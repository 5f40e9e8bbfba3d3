package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huggablesquare/deputy/internal/archive/archivetest"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("deputy %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	archivetest.WritePages(t, filepath.Join(root, "Foo (2020)", "Foo Vol 1 (2020).cbz"), 2)
	archivetest.WritePages(t, filepath.Join(root, "Foo (2020)", "Foo Vol 10 (2020).cbz"), 1)
	archivetest.WriteGarbage(t, filepath.Join(root, "Foo (2020)", "Foo Vol 2 (2020).cbz"))
	return root
}

func TestScanPrintsTable(t *testing.T) {
	root := writeLibrary(t)
	out := runCommand(t, "scan", root, "--log-level", "error", "--broken", "keep")

	for _, want := range []string{"Foo (2020)", "Vol 1", "Vol 10", "zip-archive (broken)", "1 directories, 3 files, 1 broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Vol 1 ") > strings.Index(out, "Vol 10") {
		t.Errorf("Vol 1 should be listed before Vol 10:\n%s", out)
	}
}

func TestScanJSON(t *testing.T) {
	root := writeLibrary(t)
	out := runCommand(t, "scan", "--json", "--log-level", "error", "--library", root)

	var tree struct {
		ID       string `json:"id"`
		Children []struct {
			Name      string `json:"name"`
			Kind      string `json:"kind"`
			FileCount int    `json:"file_count"`
			Children  []struct {
				Name   string `json:"name"`
				Format string `json:"format"`
			} `json:"children"`
		} `json:"children"`
	}
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if tree.ID != "index" || len(tree.Children) != 1 {
		t.Fatalf("tree = %+v", tree)
	}
	dir := tree.Children[0]
	if dir.Kind != "directory" || dir.FileCount != 2 || len(dir.Children) != 2 {
		t.Fatalf("directory = %+v", dir)
	}
	if dir.Children[0].Name != "Vol 1" || dir.Children[0].Format != "zip-archive" {
		t.Errorf("first child = %+v", dir.Children[0])
	}
}

func TestScanRejectsBadFlags(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"scan", t.TempDir(), "--id-scheme", "random"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown id scheme")
	}
}
