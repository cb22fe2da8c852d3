package cardcache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"cardvault/internal/cards"
	"cardvault/internal/fileutil"
	"cardvault/internal/logging"
)

// Resolver fetches a card by name from the remote source. The cache calls it
// only on a name-lookup miss; every other key scheme is cache-only.
type Resolver interface {
	ResolveName(ctx context.Context, name string, exact bool) (cards.Card, error)
}

// Cache is the multi-index card store. One record may be reachable under up
// to four keys (name, id, oracle, print); a write to a key fully replaces the
// prior mapping. The whole index persists as a single JSON document, written
// through on every mutation except during bulk loads, which defer to one
// flush at the end.
type Cache struct {
	path     string
	logger   *slog.Logger
	resolver Resolver
	fileLock *flock.Flock

	mu        sync.Mutex
	entries   map[cards.Key]cards.Card
	nameOrder []cards.Key
	bulkLoad  bool
}

// New creates a cache instance backed by the JSON document at path. If path
// is empty the cache is memory-only. A missing or corrupt document is logged
// and replaced by an empty index, never treated as fatal.
func New(path string, resolver Resolver, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "cardcache")

	c := &Cache{
		path:     path,
		logger:   logger,
		resolver: resolver,
		entries:  make(map[cards.Key]cards.Card),
	}

	if path == "" {
		return c
	}

	c.fileLock = flock.New(path + ".lock")
	if locked, err := c.fileLock.TryLock(); err != nil || !locked {
		logger.Warn("card cache file appears to be in use",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "cardcache_lock_unavailable"),
			logging.String(logging.FieldImpact, "concurrent writers may clobber each other"))
		c.fileLock = nil
	}

	if err := c.load(); err != nil {
		logger.Warn("failed to load card cache",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldEventType, "cardcache_load_failed"),
			logging.String(logging.FieldErrorHint, "cache starts empty"),
			logging.String(logging.FieldImpact, "previously cached cards need re-fetching"))
	}

	return c
}

// Close releases the cache file lock.
func (c *Cache) Close() {
	if c.fileLock != nil {
		_ = c.fileLock.Unlock()
	}
}

// LookupName returns the record cached under the (case-folded) name,
// falling through to the resolver on a miss. Resolver failures, including
// not-found, surface as a plain miss; they never propagate to the caller.
func (c *Cache) LookupName(ctx context.Context, name string, exact bool) (cards.Card, bool) {
	key := cards.NameKey(name)
	if key.IsZero() {
		return cards.Card{}, false
	}

	c.mu.Lock()
	card, found := c.entries[key]
	c.mu.Unlock()
	if found {
		return card, true
	}

	if c.resolver == nil {
		return cards.Card{}, false
	}

	card, err := c.resolver.ResolveName(ctx, name, exact)
	if err != nil {
		if cards.Recoverable(err) {
			c.logger.Debug("name lookup missed remotely",
				logging.String("name", name),
				logging.Error(err))
		} else {
			c.logger.Warn("name lookup failed",
				logging.String("name", name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cardcache_resolve_failed"),
				logging.String(logging.FieldImpact, "card presents as not found"))
		}
		return cards.Card{}, false
	}

	c.mu.Lock()
	c.upsertLocked(card)
	// A fuzzy match can resolve a different name than was asked for; index
	// the record under the queried name too so the next call is a cache hit.
	c.storeKeyLocked(key, card)
	err = c.persistIfLiveLocked()
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("failed to persist card cache",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cardcache_persist_failed"),
			logging.String(logging.FieldImpact, "entry survives only for this process"))
	}

	return card, true
}

// LookupID returns the record cached under the opaque print identifier.
func (c *Cache) LookupID(id string) (cards.Card, bool) {
	return c.lookup(cards.IDKey(id))
}

// LookupOracle returns the record cached under the oracle identity.
func (c *Cache) LookupOracle(oracleID string) (cards.Card, bool) {
	return c.lookup(cards.OracleKey(oracleID))
}

// LookupPrint returns the record cached under the set + collector-number
// pair.
func (c *Cache) LookupPrint(setCode, collectorNumber string) (cards.Card, bool) {
	return c.lookup(cards.PrintKey(setCode, collectorNumber))
}

// Lookup resolves any pre-built key against the in-memory index without
// touching the network.
func (c *Cache) Lookup(key cards.Key) (cards.Card, bool) {
	return c.lookup(key)
}

func (c *Cache) lookup(key cards.Key) (cards.Card, bool) {
	if key.IsZero() {
		return cards.Card{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	card, found := c.entries[key]
	return card, found
}

// Upsert writes the record under every key scheme its fields support and
// persists the index. A persistence failure leaves the in-memory index
// authoritative and is returned for the caller to log.
func (c *Cache) Upsert(card cards.Card) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertLocked(card)
	if err := c.persistIfLiveLocked(); err != nil {
		return err
	}
	return nil
}

// StartBulkLoad suspends write-through persistence so a bulk ingestion can
// upsert tens of thousands of records without touching the disk per record.
func (c *Cache) StartBulkLoad() {
	c.mu.Lock()
	c.bulkLoad = true
	c.mu.Unlock()
}

// FinishBulkLoad re-enables write-through and flushes the whole index once.
func (c *Cache) FinishBulkLoad() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bulkLoad = false
	return c.persistIfLiveLocked()
}

// AbandonBulkLoad re-enables write-through without flushing. The on-disk
// document stays exactly as it was before the bulk load began.
func (c *Cache) AbandonBulkLoad() {
	c.mu.Lock()
	c.bulkLoad = false
	c.mu.Unlock()
}

// Count returns the number of index entries (not distinct records).
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry and persists the empty index.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cards.Key]cards.Card)
	c.nameOrder = nil
	return c.persistIfLiveLocked()
}

// Persist flushes the index to disk regardless of bulk-load state.
func (c *Cache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

func (c *Cache) upsertLocked(card cards.Card) {
	for _, key := range cards.Keys(card) {
		c.storeKeyLocked(key, card)
	}
}

func (c *Cache) storeKeyLocked(key cards.Key, card cards.Card) {
	if key.IsZero() {
		return
	}
	if key.Scheme() == cards.SchemeName {
		if _, exists := c.entries[key]; !exists {
			c.nameOrder = append(c.nameOrder, key)
		}
	}
	c.entries[key] = card
}

func (c *Cache) persistIfLiveLocked() error {
	if c.bulkLoad {
		return nil
	}
	return c.persistLocked()
}

func (c *Cache) persistLocked() error {
	if c.path == "" {
		return nil
	}

	doc := make(map[string]cards.Card, len(c.entries))
	for key, card := range c.entries {
		doc[key.String()] = card
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return cards.Wrap(cards.ErrCachePersistence, "cardcache", "persist", "encode index", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return cards.Wrap(cards.ErrCachePersistence, "cardcache", "persist", "create cache directory", err)
	}

	if err := fileutil.WriteAtomic(c.path, data, 0o644); err != nil {
		return cards.Wrap(cards.ErrCachePersistence, "cardcache", "persist", "replace cache file", err)
	}

	c.logger.Debug("persisted card cache",
		logging.Int("entries", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // cold start
		}
		return cards.Wrap(cards.ErrCacheLoad, "cardcache", "load", "read cache file", err)
	}

	var doc map[string]cards.Card
	if err := json.Unmarshal(data, &doc); err != nil {
		return cards.Wrap(cards.ErrCacheLoad, "cardcache", "load", "parse cache file", err)
	}

	entries := make(map[cards.Key]cards.Card, len(doc))
	var nameOrder []cards.Key
	for raw, card := range doc {
		key, err := cards.ParseKey(raw)
		if err != nil {
			c.logger.Warn("skipping malformed cache key",
				logging.String(logging.FieldCacheKey, raw),
				logging.Error(err))
			continue
		}
		entries[key] = card
		if key.Scheme() == cards.SchemeName {
			nameOrder = append(nameOrder, key)
		}
	}
	// JSON objects carry no ordering, so encounter order restarts
	// deterministically after a reload.
	sort.Slice(nameOrder, func(i, j int) bool {
		return nameOrder[i].Value() < nameOrder[j].Value()
	})

	c.mu.Lock()
	c.entries = entries
	c.nameOrder = nameOrder
	c.mu.Unlock()

	c.logger.Debug("loaded card cache",
		logging.Int("entries", len(entries)),
		logging.String("path", c.path))
	return nil
}

// Path exposes the backing document location for inspection.
func (c *Cache) Path() string {
	return c.path
}

// Stats summarizes the index composition for CLI display.
type Stats struct {
	Entries int    `json:"entries"`
	Names   int    `json:"names"`
	Prints  int    `json:"prints"`
	Path    string `json:"path"`
}

// Snapshot returns index statistics.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{Entries: len(c.entries), Path: c.path}
	for key := range c.entries {
		switch key.Scheme() {
		case cards.SchemeName:
			stats.Names++
		case cards.SchemePrint:
			stats.Prints++
		}
	}
	return stats
}
