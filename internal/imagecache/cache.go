package imagecache

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/image/draw"

	"cardvault/internal/cards"
	"cardvault/internal/fileutil"
	"cardvault/internal/logging"
)

// Result is delivered to a Fetch callback exactly once. On success Path
// points at the cached PNG; on failure Err explains why and Path is empty.
type Result struct {
	URL  string
	Size Size
	Path string
	Err  error
}

// Config carries the knobs for an image cache instance.
type Config struct {
	// Dir is the flat directory holding every cached PNG.
	Dir string
	// HTTPClient downloads images. Defaults to a 30s-timeout client.
	HTTPClient *http.Client
	// MemoryTTL bounds how long decoded file bytes stay in the in-process
	// layer. Zero disables the memory layer.
	MemoryTTL time.Duration
	// PreloadPause is the delay between sequential preload downloads.
	PreloadPause time.Duration
	Logger       *slog.Logger
}

// Cache stores card images on disk under deterministic names derived from
// the source URL, with an optional in-process byte layer in front. Concurrent
// fetches of the same (url, size) pair share one download: every caller's
// callback fires exactly once when the shared transfer settles.
type Cache struct {
	dir          string
	http         *http.Client
	logger       *slog.Logger
	memory       *gocache.Cache
	preloadPause time.Duration

	mu       sync.Mutex
	inflight map[string][]func(Result)
}

// New creates a cache rooted at cfg.Dir, creating the directory if needed.
func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("image cache directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache directory: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var memory *gocache.Cache
	if cfg.MemoryTTL > 0 {
		memory = gocache.New(cfg.MemoryTTL, 2*cfg.MemoryTTL)
	}

	pause := cfg.PreloadPause
	if pause <= 0 {
		pause = 100 * time.Millisecond
	}

	return &Cache{
		dir:          cfg.Dir,
		http:         client,
		logger:       logging.NewComponentLogger(cfg.Logger, "imagecache"),
		memory:       memory,
		preloadPause: pause,
		inflight:     make(map[string][]func(Result)),
	}, nil
}

// pathFor derives the deterministic on-disk location for a (url, size) pair.
// The same inputs always map to the same file, so restarts find prior
// downloads without any index.
func (c *Cache) pathFor(url string, size Size) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+"_"+string(size)+".png")
}

// CachedPath reports whether the pair is already on disk and where.
func (c *Cache) CachedPath(url string, size Size) (string, bool) {
	path := c.pathFor(url, size)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Fetch delivers the cached path for the pair, downloading on a miss. The
// callback fires exactly once: synchronously for a disk hit, otherwise from
// the goroutine finishing the download. Concurrent callers for the same pair
// are coalesced onto a single transfer.
func (c *Cache) Fetch(ctx context.Context, url string, size Size, done func(Result)) {
	if done == nil {
		done = func(Result) {}
	}
	if url == "" || !size.Valid() {
		done(Result{URL: url, Size: size, Err: fmt.Errorf("invalid image request %q/%s", url, size)})
		return
	}

	if path, ok := c.CachedPath(url, size); ok {
		done(Result{URL: url, Size: size, Path: path})
		return
	}

	key := url + "|" + string(size)
	c.mu.Lock()
	waiters, active := c.inflight[key]
	c.inflight[key] = append(waiters, done)
	c.mu.Unlock()
	if active {
		return
	}

	go func() {
		path, err := c.download(ctx, url, size)
		result := Result{URL: url, Size: size, Path: path, Err: err}
		if err != nil {
			result.Path = ""
		}
		c.settle(key, result)
	}()
}

// FetchSync is Fetch with channel-based completion for callers that want to
// block.
func (c *Cache) FetchSync(ctx context.Context, url string, size Size) (string, error) {
	ch := make(chan Result, 1)
	c.Fetch(ctx, url, size, func(r Result) { ch <- r })
	select {
	case r := <-ch:
		return r.Path, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Cache) settle(key string, result Result) {
	c.mu.Lock()
	waiters := c.inflight[key]
	delete(c.inflight, key)
	c.mu.Unlock()

	for _, done := range waiters {
		done(result)
	}
}

func (c *Cache) download(ctx context.Context, url string, size Size) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", cards.Wrap(cards.ErrTransient, "imagecache", "download", "build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", cards.Wrap(cards.ErrTransient, "imagecache", "download", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", cards.Wrap(cards.ErrNotFound, "imagecache", "download", url, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", cards.Wrap(cards.ErrTransient, "imagecache", "download",
			fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", cards.Wrap(cards.ErrTransient, "imagecache", "download", "read body", err)
	}

	encoded, err := c.render(raw, size)
	if err != nil {
		return "", err
	}

	path := c.pathFor(url, size)
	if err := writeAtomic(path, encoded); err != nil {
		return "", err
	}

	c.logger.Debug("cached image",
		logging.String(logging.FieldURL, url),
		logging.String("size", string(size)),
		logging.Int("bytes", len(encoded)))
	return path, nil
}

// render decodes the downloaded bytes, scales them into the tier's box, and
// re-encodes as PNG. SizeOriginal skips the scale but still normalizes the
// container to PNG so every cached file shares one format.
func (c *Cache) render(raw []byte, size Size) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, cards.Wrap(cards.ErrTransient, "imagecache", "render", "decode image", err)
	}

	width, height, resize := size.Dimensions()
	var out image.Image = src
	if resize {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, cards.Wrap(cards.ErrTransient, "imagecache", "render", "encode png", err)
	}
	return buf.Bytes(), nil
}

// Bytes returns the cached file contents for the pair, going through the
// in-process layer when one is configured. Misses are not downloaded.
func (c *Cache) Bytes(url string, size Size) ([]byte, error) {
	path := c.pathFor(url, size)

	if c.memory != nil {
		if cached, found := c.memory.Get(path); found {
			return cached.([]byte), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if c.memory != nil {
		c.memory.Set(path, data, gocache.DefaultExpiration)
	}
	return data, nil
}

// Preload walks the urls sequentially, downloading any pair not yet on disk
// and pausing between transfers to stay polite to the image host. progress,
// when non-nil, observes (completed, total) after each url.
func (c *Cache) Preload(ctx context.Context, urls []string, size Size, progress func(completed, total int)) error {
	total := len(urls)
	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, cached := c.CachedPath(url, size); !cached {
			if _, err := c.FetchSync(ctx, url, size); err != nil {
				c.logger.Warn("preload skipped image",
					logging.String(logging.FieldURL, url),
					logging.Error(err),
					logging.String(logging.FieldEventType, "imagecache_preload_miss"),
					logging.String(logging.FieldImpact, "image fetched on demand later"))
			}
			if i < total-1 {
				select {
				case <-time.After(c.preloadPause):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}

// EvictOlderThan removes cached files whose modification time is strictly
// older than the cutoff. Files modified exactly at the cutoff survive.
// Per-file failures are logged and skipped so one bad file cannot stall the
// sweep.
func (c *Cache) EvictOlderThan(age time.Duration) (int, error) {
	return c.evictBefore(time.Now().Add(-age))
}

func (c *Cache) evictBefore(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("read image cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			c.logger.Warn("skipping unreadable cache file",
				logging.String("file", entry.Name()),
				logging.Error(err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.Warn("failed to evict cache file",
				logging.String("file", entry.Name()),
				logging.Error(err))
			continue
		}
		if c.memory != nil {
			c.memory.Delete(path)
		}
		removed++
	}

	if removed > 0 {
		c.logger.Info("evicted aged images", logging.Int("removed", removed))
	}
	return removed, nil
}

// Stats summarizes the on-disk cache for CLI display.
type Stats struct {
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
	Dir   string `json:"dir"`
}

// Snapshot scans the cache directory and returns its composition.
func (c *Cache) Snapshot() (Stats, error) {
	stats := Stats{Dir: c.dir}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats, fmt.Errorf("read image cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.Bytes += info.Size()
	}
	return stats, nil
}

func writeAtomic(path string, data []byte) error {
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return cards.Wrap(cards.ErrCachePersistence, "imagecache", "write", "replace cache file", err)
	}
	return nil
}
