// Package library serves pages, thumbnails and files out of the current
// catalog. It owns the catalog index, swaps in a fresh one on rebuild and
// bounds the number of concurrent document renders.
package library

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	// Decoders for page formats imaging does not register itself.
	_ "golang.org/x/image/webp"

	"github.com/huggablesquare/deputy/internal/archive"
	"github.com/huggablesquare/deputy/internal/catalog"
	"github.com/huggablesquare/deputy/internal/logging"
	"github.com/huggablesquare/deputy/internal/metrics"
	"github.com/huggablesquare/deputy/internal/pagecache"
)

// ThumbnailQuality is the JPEG quality of scaled JPEG thumbnails.
const ThumbnailQuality = 80

// Options configures a Library.
type Options struct {
	// Root is the library directory.
	Root    string
	Catalog catalog.Options
	// RenderWorkers bounds concurrent document page renders. Archive
	// reads are not gated. Defaults to 1.
	RenderWorkers int
	// ThumbnailMaxSize scales thumbnails to fit a square of this many
	// pixels. Zero serves page 0 unchanged.
	ThumbnailMaxSize int
	// Cache is optional.
	Cache *pagecache.Cache
}

// Library is safe for concurrent use.
type Library struct {
	root     string
	builder  *catalog.Builder
	archOpts []archive.Option
	cache    *pagecache.Cache
	renders  *semaphore.Weighted
	thumbMax int

	index     atomic.Pointer[catalog.Index]
	rebuildMu sync.Mutex
}

// Open builds the initial catalog and returns the library.
func Open(ctx context.Context, opts Options) (*Library, error) {
	workers := opts.RenderWorkers
	if workers <= 0 {
		workers = 1
	}
	l := &Library{
		root:     opts.Root,
		builder:  catalog.NewBuilder(opts.Catalog),
		archOpts: opts.Catalog.ArchiveOptions,
		cache:    opts.Cache,
		renders:  semaphore.NewWeighted(int64(workers)),
		thumbMax: opts.ThumbnailMaxSize,
	}
	if _, err := l.Rebuild(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Index returns the current catalog.
func (l *Library) Index() *catalog.Index {
	return l.index.Load()
}

// Rebuild scans the library again and atomically replaces the catalog.
// Requests in flight keep the index they started with. On failure the
// previous catalog stays in place.
func (l *Library) Rebuild(ctx context.Context) (*catalog.Index, error) {
	l.rebuildMu.Lock()
	defer l.rebuildMu.Unlock()

	start := time.Now()
	idx, err := l.builder.Build(ctx, l.root)
	if err != nil {
		return nil, err
	}
	metrics.RecordCatalogBuild(idx.Len(), idx.Stats().Broken, time.Since(start))

	l.index.Store(idx)
	if l.cache != nil {
		if n := l.cache.Purge(); n > 0 {
			logging.Debug("page cache purged", zap.Int("pages", n))
		}
	}
	return idx, nil
}

// File returns the file entry for id.
func (l *Library) File(id string) (*catalog.Entry, error) {
	return l.Index().File(id)
}

// Page extracts one page of the file id.
func (l *Library) Page(ctx context.Context, id string, page int) (*archive.Page, error) {
	f, err := l.Index().File(id)
	if err != nil {
		return nil, err
	}
	return l.page(ctx, f, page)
}

// Thumbnail returns page 0 of the file that represents entry id, scaled
// down when a thumbnail size is configured. The result keeps the media type
// of page 0, which is the entry's ImageType.
func (l *Library) Thumbnail(ctx context.Context, id string) (*archive.Page, error) {
	e, err := l.Index().Lookup(id)
	if err != nil {
		return nil, err
	}
	f, err := catalog.ResolveThumbnail(e)
	if err != nil {
		return nil, err
	}

	if l.thumbMax <= 0 {
		return l.page(ctx, f, 0)
	}

	key := pagecache.ThumbnailKey(f.ID, l.thumbMax)
	if p, ok := l.cached(key); ok {
		return p, nil
	}

	p, err := l.page(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	thumb, err := scale(p, l.thumbMax)
	if err != nil {
		logging.WithContext(ctx).Debug("thumbnail not scaled, serving page as is",
			zap.String("id", f.ID), zap.Error(err))
		return p, nil
	}
	l.store(ctx, key, thumb)
	return thumb, nil
}

func (l *Library) page(ctx context.Context, f *catalog.Entry, page int) (*archive.Page, error) {
	if f.Broken {
		return nil, fmt.Errorf("%w: %s failed to initialize", archive.ErrCorrupt, f.ID)
	}
	if page < 0 || page >= f.PageCount {
		return nil, fmt.Errorf("%w: index %d of %d", archive.ErrPageNotFound, page, f.PageCount)
	}

	key := pagecache.Key(f.ID, page)
	if p, ok := l.cached(key); ok {
		return p, nil
	}

	if f.Format == archive.FormatPDF {
		if err := l.renders.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer l.renders.Release(1)
	}

	start := time.Now()
	p, err := l.extract(ctx, f, page)
	metrics.RecordPageExtraction(f.Format.String(), time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	l.store(ctx, key, p)
	return p, nil
}

func (l *Library) extract(ctx context.Context, f *catalog.Entry, page int) (*archive.Page, error) {
	a, err := f.Archive(l.archOpts...)
	if err != nil {
		return nil, err
	}
	return a.ExtractImage(ctx, page)
}

func (l *Library) cached(key string) (*archive.Page, bool) {
	if l.cache == nil {
		return nil, false
	}
	data, mediaType, ok := l.cache.Get(key)
	metrics.RecordPageCache(ok)
	if !ok {
		return nil, false
	}
	return &archive.Page{MediaType: mediaType, Data: data}, true
}

func (l *Library) store(ctx context.Context, key string, p *archive.Page) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Put(key, p.MediaType, p.Data); err != nil {
		logging.WithContext(ctx).Warn("page cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// encodeFormats are the page types a thumbnail can be re-encoded as. Pages
// of other types are served unscaled so the type advertised in feeds holds.
var encodeFormats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
	"image/bmp":  imaging.BMP,
	"image/tiff": imaging.TIFF,
}

// scale fits a page inside a maxSize square and re-encodes it in its own
// format. Pages already small enough are returned unchanged.
func scale(p *archive.Page, maxSize int) (*archive.Page, error) {
	format, ok := encodeFormats[p.MediaType]
	if !ok {
		return p, nil
	}
	img, err := imaging.Decode(bytes.NewReader(p.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return p, nil
	}

	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(ThumbnailQuality)); err != nil {
		return nil, err
	}
	return &archive.Page{MediaType: p.MediaType, Data: buf.Bytes()}, nil
}
