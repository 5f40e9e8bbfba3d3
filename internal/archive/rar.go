package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarArchive reads .cbr files. Entries are decoded on demand: extraction
// streams through the archive headers until it reaches the requested file.
type rarArchive struct {
	path string
}

func (a *rarArchive) ListImages(ctx context.Context) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := rardecode.OpenReader(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer rc.Close()

	var images []Image
	for {
		h, err := rc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if h.IsDir || hidden(h.Name) || !isImage(h.Name) {
			continue
		}
		images = append(images, Image{Name: h.Name, MediaType: MediaTypeOf(h.Name)})
	}

	sortImages(images)
	return images, nil
}

func (a *rarArchive) ExtractImage(ctx context.Context, index int) (*Page, error) {
	images, err := a.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(images)); err != nil {
		return nil, err
	}
	want := images[index]

	rc, err := rardecode.OpenReader(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer rc.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := rc.Next()
		if errors.Is(err, io.EOF) {
			// The file changed between listing and extraction.
			return nil, fmt.Errorf("%w: %s vanished", ErrCorrupt, want.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if h.IsDir || h.Name != want.Name {
			continue
		}
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrCorrupt, want.Name, err)
		}
		return &Page{MediaType: want.MediaType, Data: data}, nil
	}
}
