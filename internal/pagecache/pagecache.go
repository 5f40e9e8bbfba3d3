// Package pagecache keeps extracted page images on disk so repeated requests
// skip decompression and rendering. The cache is size-bounded with
// least-recently-used eviction and is owned by one process at a time.
package pagecache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the cache directory.
var ErrLocked = errors.New("cache directory is in use by another process")

const (
	lockName   = ".deputy.lock"
	pageSuffix = ".page"
	tempSuffix = ".tmp"
)

type entry struct {
	path       string
	mediaType  string
	size       int64
	lastAccess time.Time
}

// Cache stores page images keyed by file ID and page index.
type Cache struct {
	dir     string
	maxSize int64
	lock    *flock.Flock

	mu      sync.Mutex
	entries map[string]*entry
	size    int64
}

// Open takes ownership of dir and returns an empty cache bounded to maxSize
// bytes. Pages left over from an earlier run are removed since the files
// they came from may have changed.
func Open(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		lock:    lock,
		entries: make(map[string]*entry),
	}
	if err := c.removeStale(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return c, nil
}

// Key builds the cache key for a page of a file.
func Key(fileID string, page int) string {
	return fileID + "-" + strconv.Itoa(page)
}

// ThumbnailKey builds the cache key for the scaled thumbnail of an entry.
func ThumbnailKey(entryID string, maxSize int) string {
	return "thumb-" + entryID + "-" + strconv.Itoa(maxSize)
}

// Get returns the cached bytes and media type for key.
func (c *Cache) Get(key string) ([]byte, string, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.lastAccess = time.Now()
	}
	c.mu.Unlock()
	if !ok {
		return nil, "", false
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		// Evicted between the lookup and the read.
		return nil, "", false
	}
	return data, e.mediaType, true
}

// Put stores data under key, evicting least recently used pages to make
// room. Pages larger than the whole cache are not stored.
func (c *Cache) Put(key, mediaType string, data []byte) error {
	size := int64(len(data))
	if size > c.maxSize {
		return nil
	}

	localPath := filepath.Join(c.dir, key+pageSuffix)
	tempPath, err := writeTemp(c.dir, key, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.size -= old.size
		delete(c.entries, key)
	}
	for c.size+size > c.maxSize {
		if !c.evictOldest() {
			break
		}
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.entries[key] = &entry{
		path:       localPath,
		mediaType:  mediaType,
		size:       size,
		lastAccess: time.Now(),
	}
	c.size += size
	return nil
}

// writeTemp writes data to a temp file of its own so concurrent writers of
// the same key never share a partially written file.
func writeTemp(dir, key string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, key+pageSuffix+"-*"+tempSuffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write page: %w", err)
	}
	return f.Name(), nil
}

// evictOldest removes the least recently used page.
// Must be called with lock held.
func (c *Cache) evictOldest() bool {
	var oldest *entry
	var oldestKey string

	for key, e := range c.entries {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldest = e
			oldestKey = key
		}
	}
	if oldest == nil {
		return false
	}

	os.Remove(oldest.path)
	c.size -= oldest.size
	delete(c.entries, oldestKey)
	return true
}

// Purge drops every cached page. The catalog calls it after a rebuild.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	for key, e := range c.entries {
		os.Remove(e.path)
		delete(c.entries, key)
	}
	c.size = 0
	return n
}

// Stats returns cache statistics.
func (c *Cache) Stats() (size, maxSize int64, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size, c.maxSize, len(c.entries)
}

// Close releases the directory lock. Cached pages stay on disk until the
// next Open.
func (c *Cache) Close() error {
	return c.lock.Unlock()
}

func (c *Cache) removeStale() error {
	des, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || name == lockName {
			continue
		}
		if strings.HasSuffix(name, pageSuffix) || strings.HasSuffix(name, tempSuffix) {
			os.Remove(filepath.Join(c.dir, name))
		}
	}
	return nil
}
