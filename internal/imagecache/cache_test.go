package imagecache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestCache(t *testing.T, opts ...func(*Config)) *Cache {
	t.Helper()
	cfg := Config{Dir: t.TempDir(), PreloadPause: time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	cache, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

func TestFetchDownloadsAndResizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(testPNG(t, 500, 700))
	}))
	defer server.Close()

	cache := newTestCache(t)
	path, err := cache.FetchSync(context.Background(), server.URL+"/card.png", SizeThumbnail)
	if err != nil {
		t.Fatalf("FetchSync failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("cached file is not a PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 146 || bounds.Dy() != 204 {
		t.Errorf("thumbnail dimensions = %dx%d, want 146x204", bounds.Dx(), bounds.Dy())
	}
}

func TestFetchOriginalKeepsNativeSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(testPNG(t, 321, 456))
	}))
	defer server.Close()

	cache := newTestCache(t)
	path, err := cache.FetchSync(context.Background(), server.URL+"/card.png", SizeOriginal)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 321 || img.Bounds().Dy() != 456 {
		t.Errorf("original tier was resized: %v", img.Bounds())
	}
}

func TestDeterministicPaths(t *testing.T) {
	cache := newTestCache(t)
	first := cache.pathFor("https://example.com/a.jpg", SizeMedium)
	second := cache.pathFor("https://example.com/a.jpg", SizeMedium)
	if first != second {
		t.Errorf("same inputs produced different paths: %s vs %s", first, second)
	}
	other := cache.pathFor("https://example.com/a.jpg", SizeLarge)
	if first == other {
		t.Error("different sizes share a path")
	}
	if filepath.Dir(first) != cache.dir {
		t.Errorf("path escapes the flat cache directory: %s", first)
	}
}

func TestConcurrentFetchesShareOneDownload(t *testing.T) {
	var transfers atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transfers.Add(1)
		<-release
		w.Write(testPNG(t, 100, 140))
	}))
	defer server.Close()

	cache := newTestCache(t)
	url := server.URL + "/shared.png"

	const callers = 8
	var callbacks atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		cache.Fetch(context.Background(), url, SizeMedium, func(r Result) {
			callbacks.Add(1)
			wg.Done()
		})
	}
	close(release)
	wg.Wait()

	if got := transfers.Load(); got != 1 {
		t.Errorf("transfers = %d, want 1 shared download", got)
	}
	if got := callbacks.Load(); got != callers {
		t.Errorf("callbacks fired %d times, want %d (exactly once per caller)", got, callers)
	}
}

func TestFetchHitSkipsNetwork(t *testing.T) {
	var transfers atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transfers.Add(1)
		w.Write(testPNG(t, 100, 140))
	}))
	defer server.Close()

	cache := newTestCache(t)
	url := server.URL + "/hit.png"
	if _, err := cache.FetchSync(context.Background(), url, SizeThumbnail); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.FetchSync(context.Background(), url, SizeThumbnail); err != nil {
		t.Fatal(err)
	}
	if got := transfers.Load(); got != 1 {
		t.Errorf("transfers = %d, want 1 (second fetch should hit disk)", got)
	}
}

func TestFetchFailureReportsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	cache := newTestCache(t)
	path, err := cache.FetchSync(context.Background(), server.URL+"/missing.png", SizeThumbnail)
	if err == nil {
		t.Fatal("expected an error for a 404 image")
	}
	if path != "" {
		t.Errorf("failed fetch returned a path: %s", path)
	}
}

func TestPlaceholderRendersOnce(t *testing.T) {
	cache := newTestCache(t)

	first, err := cache.Placeholder("Lightning Bolt", SizeMedium)
	if err != nil {
		t.Fatalf("Placeholder failed: %v", err)
	}
	info, err := os.Stat(first)
	if err != nil {
		t.Fatal(err)
	}

	second, err := cache.Placeholder("Lightning Bolt", SizeMedium)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("placeholder path not stable: %s vs %s", first, second)
	}
	again, err := os.Stat(second)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(again.ModTime()) {
		t.Error("placeholder re-rendered on second request")
	}

	file, err := os.Open(first)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("placeholder is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 223 || img.Bounds().Dy() != 311 {
		t.Errorf("placeholder dimensions = %v, want medium tier box", img.Bounds())
	}
}

func TestPreloadReportsProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(testPNG(t, 100, 140))
	}))
	defer server.Close()

	cache := newTestCache(t)
	urls := []string{server.URL + "/1.png", server.URL + "/2.png", server.URL + "/3.png"}

	var reports [][2]int
	err := cache.Preload(context.Background(), urls, SizeThumbnail, func(completed, total int) {
		reports = append(reports, [2]int{completed, total})
	})
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("progress reports = %v, want 3", reports)
	}
	for i, report := range reports {
		if report[0] != i+1 || report[1] != 3 {
			t.Errorf("report %d = %v, want (%d, 3)", i, report, i+1)
		}
	}
	for _, url := range urls {
		if _, ok := cache.CachedPath(url, SizeThumbnail); !ok {
			t.Errorf("preloaded url not cached: %s", url)
		}
	}
}

func TestPreloadToleratesBadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.png" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(testPNG(t, 100, 140))
	}))
	defer server.Close()

	cache := newTestCache(t)
	urls := []string{server.URL + "/bad.png", server.URL + "/good.png"}
	if err := cache.Preload(context.Background(), urls, SizeThumbnail, nil); err != nil {
		t.Fatalf("Preload should skip failures, got: %v", err)
	}
	if _, ok := cache.CachedPath(urls[1], SizeThumbnail); !ok {
		t.Error("good url not cached after a preceding failure")
	}
}

func TestEvictOlderThanBoundary(t *testing.T) {
	cache := newTestCache(t)

	old := filepath.Join(cache.dir, "old_thumbnail.png")
	boundary := filepath.Join(cache.dir, "boundary_thumbnail.png")
	fresh := filepath.Join(cache.dir, "fresh_thumbnail.png")
	for _, path := range []string{old, boundary, fresh} {
		if err := os.WriteFile(path, testPNG(t, 10, 14), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := time.Now().Add(-720 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(old, cutoff.Add(-time.Hour), cutoff.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	// A file aged exactly to the cutoff is not strictly older and survives.
	if err := os.Chtimes(boundary, cutoff, cutoff); err != nil {
		t.Fatal(err)
	}

	removed, err := cache.evictBefore(cutoff)
	if err != nil {
		t.Fatalf("evictBefore failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("strictly older file survived eviction")
	}
	if _, err := os.Stat(boundary); err != nil {
		t.Error("boundary file should survive eviction")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file should survive eviction")
	}
}

func TestSnapshotCountsFiles(t *testing.T) {
	cache := newTestCache(t)
	for _, name := range []string{"a_thumbnail.png", "b_medium.png"} {
		if err := os.WriteFile(filepath.Join(cache.dir, name), testPNG(t, 10, 14), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-png clutter must not count.
	if err := os.WriteFile(filepath.Join(cache.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := cache.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 2 {
		t.Errorf("files = %d, want 2", stats.Files)
	}
	if stats.Bytes <= 0 {
		t.Errorf("bytes = %d, want > 0", stats.Bytes)
	}
}

func TestBytesUsesMemoryLayer(t *testing.T) {
	cache := newTestCache(t, func(cfg *Config) { cfg.MemoryTTL = time.Minute })

	url := "https://example.com/mem.png"
	payload := testPNG(t, 10, 14)
	path := cache.pathFor(url, SizeThumbnail)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := cache.Bytes(url, SizeThumbnail)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, payload) {
		t.Error("bytes differ from the on-disk file")
	}

	// Remove the backing file; the memory layer must still serve it.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := cache.Bytes(url, SizeThumbnail)
	if err != nil {
		t.Fatalf("memory layer missed after file removal: %v", err)
	}
	if !bytes.Equal(second, payload) {
		t.Error("memory layer returned different bytes")
	}
}
