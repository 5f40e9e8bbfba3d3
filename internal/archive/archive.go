// Package archive gives every supported comic container (zip, rar and
// rendered PDF documents) the same two operations: list the page images in
// reading order and extract one page by position.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/huggablesquare/deputy/internal/natsort"
)

var (
	// ErrPageNotFound is returned when a page index is outside [0, pageCount).
	ErrPageNotFound = errors.New("page not found")
	// ErrCorrupt is returned when a container cannot be opened or enumerated.
	ErrCorrupt = errors.New("corrupt or unreadable archive")
	// ErrRender is returned when a document page cannot be rasterised.
	ErrRender = errors.New("page render failed")
	// ErrUnsupported is returned for paths with no known archive format.
	ErrUnsupported = errors.New("unsupported archive format")
)

// Format identifies the container kind of a catalog file.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatRar
	FormatPDF
)

var extFormats = map[string]Format{
	".cbz": FormatZip,
	".cbr": FormatRar,
	".pdf": FormatPDF,
}

// FormatFromPath derives the format from a file extension (case-insensitive).
func FormatFromPath(p string) Format {
	return extFormats[strings.ToLower(filepath.Ext(p))]
}

// String returns the format's catalog name.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip-archive"
	case FormatRar:
		return "rar-archive"
	case FormatPDF:
		return "paginated-document"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// MediaType is the MIME type served for the whole file.
func (f Format) MediaType() string {
	switch f {
	case FormatZip:
		return "application/vnd.comicbook+zip"
	case FormatRar:
		return "application/vnd.comicbook-rar"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Image describes one page inside an archive.
type Image struct {
	Name      string
	MediaType string
}

// Page is an extracted page image.
type Page struct {
	MediaType string
	Data      []byte
}

// Archive is the capability every format implements. Implementations hold
// only the file path and options; each call opens the file afresh, so an
// Archive is safe for concurrent use.
type Archive interface {
	// ListImages returns the page images in reading order.
	ListImages(ctx context.Context) ([]Image, error)
	// ExtractImage returns the page at the given zero-based position of the
	// ListImages ordering.
	ExtractImage(ctx context.Context, index int) (*Page, error)
}

// DefaultDPI is the resolution documents are rasterised at.
const DefaultDPI = 240

// DefaultJPEGQuality is the encoder quality for rendered document pages.
const DefaultJPEGQuality = 85

type options struct {
	dpi     float64
	quality int
}

// Option configures an Archive.
type Option func(*options)

// WithDPI sets the document render resolution.
func WithDPI(dpi float64) Option {
	return func(o *options) {
		if dpi > 0 {
			o.dpi = dpi
		}
	}
}

// WithJPEGQuality sets the encoder quality for rendered document pages.
func WithJPEGQuality(q int) Option {
	return func(o *options) {
		if q > 0 && q <= 100 {
			o.quality = q
		}
	}
}

// Open returns the adapter for a file of the given format.
func Open(p string, format Format, opts ...Option) (Archive, error) {
	o := options{dpi: DefaultDPI, quality: DefaultJPEGQuality}
	for _, opt := range opts {
		opt(&o)
	}

	switch format {
	case FormatZip:
		return &zipArchive{path: p}, nil
	case FormatRar:
		return &rarArchive{path: p}, nil
	case FormatPDF:
		return &pdfArchive{path: p, dpi: o.dpi, quality: o.quality}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(p))
	}
}

// Metadata is what the catalog records about a file at build time.
type Metadata struct {
	PageCount int
	ImageType string
}

// Probe lists the archive once and reports its page count and the MIME type
// of page 0. An archive without pages is reported as corrupt.
func Probe(ctx context.Context, a Archive) (Metadata, error) {
	images, err := a.ListImages(ctx)
	if err != nil {
		return Metadata{}, err
	}
	if len(images) == 0 {
		return Metadata{}, fmt.Errorf("%w: no images", ErrCorrupt)
	}
	return Metadata{PageCount: len(images), ImageType: images[0].MediaType}, nil
}

// checkIndex validates a page position against the page count.
func checkIndex(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: index %d of %d", ErrPageNotFound, index, count)
	}
	return nil
}

// hidden reports dot-files such as macOS "._" resource forks.
func hidden(name string) bool {
	return strings.HasPrefix(path.Base(name), ".")
}

// sortImages orders entries by natural comparison of their internal path.
func sortImages(images []Image) {
	s := natsort.New()
	sort.SliceStable(images, func(i, j int) bool { return s.Less(images[i].Name, images[j].Name) })
}
