package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huggablesquare/deputy/internal/archive"
	"github.com/huggablesquare/deputy/internal/logging"
)

// BrokenPolicy decides what happens to files whose metadata cannot be read.
type BrokenPolicy int

const (
	// BrokenExclude drops broken files from the catalog.
	BrokenExclude BrokenPolicy = iota
	// BrokenKeep lists broken files, flagged, so they stay visible for
	// debugging. They never count towards FileCount or act as thumbnails.
	BrokenKeep
)

// ParseBrokenPolicy maps a config value to a BrokenPolicy.
func ParseBrokenPolicy(s string) (BrokenPolicy, error) {
	switch strings.ToLower(s) {
	case "", "exclude":
		return BrokenExclude, nil
	case "keep":
		return BrokenKeep, nil
	default:
		return BrokenExclude, fmt.Errorf("unknown broken policy %q", s)
	}
}

func (p BrokenPolicy) String() string {
	if p == BrokenKeep {
		return "keep"
	}
	return "exclude"
}

// DefaultWorkers bounds concurrent child scans within one directory.
const DefaultWorkers = 8

// Options configures a Builder.
type Options struct {
	Workers        int
	IDScheme       IDScheme
	BrokenPolicy   BrokenPolicy
	ArchiveOptions []archive.Option
}

// Builder walks a library root and produces an Index.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Builder{opts: opts}
}

// scan is the state of one Build call.
type scan struct {
	opts   Options
	root   string
	broken atomic.Int64
}

// Build scans rootPath and returns the finished, immutable Index. It fails
// when the root itself cannot be read or ctx is cancelled; errors below the
// root are logged and the affected entries left out.
func (b *Builder) Build(ctx context.Context, rootPath string) (*Index, error) {
	start := time.Now()

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve library path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root is not a directory: %s", abs)
	}

	s := &scan{opts: b.opts, root: abs}
	root := &Entry{
		ID:        RootID,
		Name:      filepath.Base(abs),
		Path:      abs,
		UpdatedAt: info.ModTime(),
		Kind:      KindDirectory,
	}
	if err := s.scanDir(ctx, root); err != nil {
		return nil, fmt.Errorf("scan library root: %w", err)
	}
	// Children cancelled mid-probe are dropped without an error.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := newIndex(root, int(s.broken.Load()))
	logging.Info("catalog built",
		zap.String("root", abs),
		zap.Int("entries", idx.Len()),
		zap.Int("broken", idx.Stats().Broken),
		zap.Duration("duration", time.Since(start)))
	return idx, nil
}

// scanDir reads dir's children in parallel, then sorts and aggregates them.
// Children are collected into fixed slots so the result is independent of
// completion order.
func (s *scan) scanDir(ctx context.Context, dir *Entry) error {
	des, err := os.ReadDir(dir.Path)
	if err != nil {
		return err
	}

	slots := make([]*Entry, len(des))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, de := range des {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = s.scanChild(gctx, dir, de)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	children := make([]*Entry, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			children = append(children, c)
		}
	}
	SortEntries(children)
	dir.Children = children
	finalizeDir(dir)
	return nil
}

// scanChild returns the entry for de, or nil when it is ignored, unreadable,
// pruned or excluded as broken.
func (s *scan) scanChild(ctx context.Context, parent *Entry, de fs.DirEntry) *Entry {
	name := de.Name()
	if strings.HasPrefix(name, ".") {
		return nil
	}
	p := filepath.Join(parent.Path, name)

	if de.IsDir() {
		return s.scanSubdir(ctx, parent, p, name)
	}

	format := archive.FormatFromPath(name)
	if format == archive.FormatUnknown {
		return nil
	}

	// Stat follows symlinks so linked archives are served like regular ones.
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		logging.Debug("skipping unreadable file", zap.String("path", p), zap.Error(err))
		return nil
	}

	f := &Entry{
		ID:        s.identify(p),
		ParentID:  parent.ID,
		Name:      DisplayName(name, parent.Name),
		Path:      p,
		UpdatedAt: info.ModTime(),
		Kind:      KindFile,
		Format:    format,
		Size:      info.Size(),
	}

	meta, err := s.probe(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.broken.Add(1)
		logging.Debug("file failed to initialize", zap.String("path", p), zap.Error(err))
		if s.opts.BrokenPolicy == BrokenExclude {
			return nil
		}
		f.Broken = true
		return f
	}
	f.PageCount = meta.PageCount
	f.ImageType = meta.ImageType
	return f
}

func (s *scan) scanSubdir(ctx context.Context, parent *Entry, p, name string) *Entry {
	info, err := os.Stat(p)
	if err != nil {
		logging.Debug("skipping unreadable directory", zap.String("path", p), zap.Error(err))
		return nil
	}

	d := &Entry{
		ID:        s.identify(p),
		ParentID:  parent.ID,
		Name:      name,
		Path:      p,
		UpdatedAt: info.ModTime(),
		Kind:      KindDirectory,
	}
	if err := s.scanDir(ctx, d); err != nil {
		if ctx.Err() == nil {
			logging.Debug("skipping unreadable directory", zap.String("path", p), zap.Error(err))
		}
		return nil
	}
	if CountFiles(d) == 0 {
		return nil
	}
	return d
}

func (s *scan) probe(ctx context.Context, f *Entry) (archive.Metadata, error) {
	a, err := f.Archive(s.opts.ArchiveOptions...)
	if err != nil {
		return archive.Metadata{}, err
	}
	return archive.Probe(ctx, a)
}

func (s *scan) identify(p string) string {
	if s.opts.IDScheme == IDByInode {
		id, err := inodeID(p)
		if err == nil {
			return id
		}
		logging.Debug("inode identity unavailable, using path", zap.String("path", p), zap.Error(err))
	}
	return PathID(relPath(s.root, p))
}

// finalizeDir computes the aggregate attributes of a sorted directory.
func finalizeDir(d *Entry) {
	d.FileCount = 0
	var latest time.Time
	for _, c := range d.Children {
		if !c.IsDir() && !c.Broken {
			d.FileCount++
		}
		if c.UpdatedAt.After(latest) {
			latest = c.UpdatedAt
		}
	}
	if !latest.IsZero() {
		d.UpdatedAt = latest
	}
	if f, err := ResolveThumbnail(d); err == nil {
		d.ImageType = f.ImageType
	}
}
