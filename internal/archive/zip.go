package archive

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zip"

	"github.com/huggablesquare/deputy/internal/natsort"
)

// zipArchive reads .cbz files.
type zipArchive struct {
	path string
}

type zipEntry struct {
	image Image
	file  *zip.File
}

// open returns the reader and its image entries in reading order. The caller
// closes the reader.
func (z *zipArchive) open() (*zip.ReadCloser, []zipEntry, error) {
	rc, err := zip.OpenReader(z.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	entries := make([]zipEntry, 0, len(rc.File))
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || hidden(f.Name) || !isImage(f.Name) {
			continue
		}
		entries = append(entries, zipEntry{
			image: Image{Name: f.Name, MediaType: MediaTypeOf(f.Name)},
			file:  f,
		})
	}

	s := natsort.New()
	sort.SliceStable(entries, func(i, j int) bool {
		return s.Less(entries[i].image.Name, entries[j].image.Name)
	})
	return rc, entries, nil
}

func (z *zipArchive) ListImages(ctx context.Context) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, entries, err := z.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	images := make([]Image, len(entries))
	for i, e := range entries {
		images[i] = e.image
	}
	return images, nil
}

func (z *zipArchive) ExtractImage(ctx context.Context, index int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, entries, err := z.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := checkIndex(index, len(entries)); err != nil {
		return nil, err
	}
	e := entries[index]

	r, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCorrupt, e.image.Name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCorrupt, e.image.Name, err)
	}
	return &Page{MediaType: e.image.MediaType, Data: data}, nil
}
