package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huggablesquare/deputy/internal/archive/archivetest"
	"github.com/huggablesquare/deputy/internal/catalog"
	"github.com/huggablesquare/deputy/internal/library"
	"github.com/huggablesquare/deputy/internal/opds"
)

type fixture struct {
	root    string
	handler http.Handler
}

// newFixture builds a library with one series holding a good and a broken
// archive, keeping broken files so their failure path is reachable.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	archivetest.WritePages(t, filepath.Join(root, "Series (2021)", "Series Vol 1 (2021).cbz"), 3)
	archivetest.WriteGarbage(t, filepath.Join(root, "Series (2021)", "Series Vol 2 (2021).cbz"))

	lib, err := library.Open(context.Background(), library.Options{
		Root:    root,
		Catalog: catalog.Options{BrokenPolicy: catalog.BrokenKeep},
	})
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	return &fixture{root: root, handler: NewServer(lib, "Comics").Handler()}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

var (
	seriesID = catalog.PathID("Series (2021)")
	vol1ID   = catalog.PathID("Series (2021)/Series Vol 1 (2021).cbz")
	vol2ID   = catalog.PathID("Series (2021)/Series Vol 2 (2021).cbz")
)

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Entries int    `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Entries != 4 {
		t.Errorf("health = %+v", body)
	}
}

func TestCatalogRedirectsToRoot(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/catalog")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/catalog/directory/index" {
		t.Errorf("Location = %q", loc)
	}
}

func TestDirectoryFeed(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/catalog/directory/index")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != opds.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Comics</title>",
		"<title>Series (2021)</title>",
		"/catalog/directory/" + seriesID,
		"1 issues",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("root feed missing %q", want)
		}
	}

	body = f.get(t, "/catalog/directory/"+seriesID).Body.String()
	for _, want := range []string{
		"<title>Vol 1</title>",
		`pse:count="3"`,
		"/catalog/file/" + vol1ID + "/{pageNumber}",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("series feed missing %q", want)
		}
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{
		"/catalog/directory/nope",
		"/catalog/directory/" + vol1ID,
		"/catalog/file/nope",
		"/catalog/file/" + seriesID,
		"/catalog/file/" + vol1ID + "/3",
		"/catalog/file/" + vol1ID + "/-1",
		"/catalog/file/" + vol1ID + "/first",
		"/catalog/thumbnail/nope",
		"/elsewhere",
	} {
		rec := f.get(t, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
			continue
		}
		var resp ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Code != http.StatusNotFound {
			t.Errorf("GET %s body = %+v, %v", path, resp, err)
		}
	}
}

func TestPages(t *testing.T) {
	f := newFixture(t)
	for i := range 3 {
		rec := f.get(t, "/catalog/file/"+vol1ID+"/"+string(rune('0'+i)))
		if rec.Code != http.StatusOK {
			t.Fatalf("page %d status = %d", i, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("page %d Content-Type = %q", i, ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("page %d is not a PNG", i)
		}
	}
}

func TestThumbnail(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{catalog.RootID, seriesID, vol1ID} {
		rec := f.get(t, "/catalog/thumbnail/"+id)
		if rec.Code != http.StatusOK {
			t.Errorf("thumbnail %s status = %d", id, rec.Code)
		}
	}
}

func TestFileDownload(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/catalog/file/"+vol1ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.comicbook+zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	want, err := os.ReadFile(filepath.Join(f.root, "Series (2021)", "Series Vol 1 (2021).cbz"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Body.Bytes(), want) {
		t.Error("downloaded bytes differ from the file on disk")
	}
}

func TestServerErrorsHidePaths(t *testing.T) {
	f := newFixture(t)

	// The broken archive is listed under the keep policy but cannot be read.
	rec := f.get(t, "/catalog/file/"+vol2ID+"/0")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("broken page status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), f.root) {
		t.Errorf("response leaks filesystem path: %s", rec.Body.String())
	}

	// A file removed after the build.
	if err := os.Remove(filepath.Join(f.root, "Series (2021)", "Series Vol 1 (2021).cbz")); err != nil {
		t.Fatal(err)
	}
	rec = f.get(t, "/catalog/file/"+vol1ID+"/1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("missing file page status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), f.root) {
		t.Errorf("response leaks filesystem path: %s", rec.Body.String())
	}
	rec = f.get(t, "/catalog/file/"+vol1ID)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("missing file download status = %d, want 500", rec.Code)
	}
}

func TestFileDownloadNonASCIIName(t *testing.T) {
	root := t.TempDir()
	name := "Café Vol 1 (2020).cbz"
	archivetest.WritePages(t, filepath.Join(root, "Café (2020)", name), 1)
	lib, err := library.Open(context.Background(), library.Options{Root: root})
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	f := &fixture{root: root, handler: NewServer(lib, "Comics").Handler()}

	rec := f.get(t, "/catalog/file/"+catalog.PathID("Café (2020)/"+name))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("parse Content-Disposition %q: %v", rec.Header().Get("Content-Disposition"), err)
	}
	if disposition != "attachment" || params["filename"] != name {
		t.Errorf("Content-Disposition = %s %v, want attachment with filename %q", disposition, params, name)
	}
}

func TestScaledThumbnailMatchesFeedType(t *testing.T) {
	root := t.TempDir()
	archivetest.WriteCBZ(t, filepath.Join(root, "Big (2020)", "Big Vol 1 (2020).cbz"),
		archivetest.Entry{Name: "1.png", Data: archivetest.PNG(t, 40, 20, color.Black)})
	lib, err := library.Open(context.Background(), library.Options{Root: root, ThumbnailMaxSize: 10})
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	f := &fixture{root: root, handler: NewServer(lib, "Comics").Handler()}

	feed := f.get(t, "/catalog/directory/"+catalog.RootID).Body.String()
	dirID := catalog.PathID("Big (2020)")
	want := `href="/catalog/thumbnail/` + dirID + `" type="image/png"`
	if !strings.Contains(feed, want) {
		t.Fatalf("feed missing %s:\n%s", want, feed)
	}

	rec := f.get(t, "/catalog/thumbnail/"+dirID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("thumbnail Content-Type = %q, want image/png as advertised", ct)
	}
}
