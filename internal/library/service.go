package library

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cardvault/internal/bulk"
	"cardvault/internal/cardcache"
	"cardvault/internal/cards"
	"cardvault/internal/config"
	"cardvault/internal/imagecache"
	"cardvault/internal/logging"
	"cardvault/internal/scryfall"
)

// Service is the composition root for the collection: one remote client, one
// card cache, one image cache, and one bulk ingestor, wired from a single
// configuration. Callers construct as many instances as they need; nothing
// here is process-global.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *scryfall.Client
	cache    *cardcache.Cache
	images   *imagecache.Cache
	ingestor *bulk.Ingestor
}

// resolver adapts the remote client to the card cache's miss path.
type resolver struct {
	client *scryfall.Client
}

func (r resolver) ResolveName(ctx context.Context, name string, exact bool) (cards.Card, error) {
	return r.client.NamedCard(ctx, name, exact)
}

// New builds a Service from configuration. The card cache loads its document
// eagerly, so construction surfaces a usable (possibly empty) collection.
func New(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	logger = logging.NewComponentLogger(logger, "library")

	client, err := scryfall.New(scryfall.Config{
		BaseURL:         cfg.Scryfall.BaseURL,
		UserAgent:       cfg.Scryfall.UserAgent,
		RequestInterval: time.Duration(cfg.Scryfall.RequestIntervalMS) * time.Millisecond,
		HTTPClient:      &http.Client{Timeout: time.Duration(cfg.Scryfall.TimeoutSeconds) * time.Second},
	})
	if err != nil {
		return nil, err
	}

	cache := cardcache.New(cfg.Paths.CardCachePath, resolver{client: client}, logger)

	images, err := imagecache.New(imagecache.Config{
		Dir:          cfg.Paths.ImageCacheDir,
		MemoryTTL:    time.Duration(cfg.Images.MemoryTTLMinutes) * time.Minute,
		PreloadPause: time.Duration(cfg.Images.PreloadPauseMS) * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		cache.Close()
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		cache:    cache,
		images:   images,
		ingestor: bulk.New(client, cache, cfg.Paths.StagingDir, logger),
	}, nil
}

// Close flushes nothing (writes are already through) but releases the cache
// file lock.
func (s *Service) Close() {
	s.cache.Close()
}

// LookupName resolves a card by name, serving from the cache and falling
// through to the remote source on a miss.
func (s *Service) LookupName(ctx context.Context, name string, exact bool) (cards.Card, bool) {
	return s.cache.LookupName(ctx, name, exact)
}

// LookupKey resolves any typed key against the local index only.
func (s *Service) LookupKey(key cards.Key) (cards.Card, bool) {
	return s.cache.Lookup(key)
}

// LookupID resolves a card by print identifier, reaching out to the remote
// source when the local index misses.
func (s *Service) LookupID(ctx context.Context, id string) (cards.Card, bool) {
	if card, ok := s.cache.LookupID(id); ok {
		return card, true
	}
	card, err := s.client.CardByID(ctx, id)
	if err != nil {
		if !cards.Recoverable(err) {
			s.logger.Warn("id lookup failed",
				logging.String("id", id),
				logging.Error(err))
		}
		return cards.Card{}, false
	}
	if err := s.cache.Upsert(card); err != nil {
		s.logger.Warn("failed to persist fetched card", logging.Error(err))
	}
	return card, true
}

// SearchLocal runs the offline name search over the cached collection.
func (s *Service) SearchLocal(query string, limit int) []cards.Card {
	return s.cache.SearchLocal(query, limit)
}

// SearchRemote runs a free-text search against the remote source and caches
// every returned record.
func (s *Service) SearchRemote(ctx context.Context, query string, page int) (scryfall.SearchPage, error) {
	result, err := s.client.Search(ctx, query, page)
	if err != nil {
		return scryfall.SearchPage{}, err
	}
	for _, card := range result.Cards {
		if err := s.cache.Upsert(card); err != nil {
			s.logger.Warn("failed to persist search result", logging.Error(err))
			break
		}
	}
	return result, nil
}

// Sets lists the card sets known to the remote source.
func (s *Service) Sets(ctx context.Context) ([]scryfall.Set, error) {
	return s.client.Sets(ctx)
}

// IngestBulk refreshes the collection from a bulk dataset. An empty variant
// falls back to the configured default.
func (s *Service) IngestBulk(ctx context.Context, variant string, progress func(bulk.Progress)) (bulk.Result, error) {
	if variant == "" {
		variant = s.cfg.Bulk.Variant
	}
	return s.ingestor.Run(ctx, variant, progress)
}

// imageTier maps a display size onto the remote source's image variant keys.
func imageTier(size imagecache.Size) string {
	switch size {
	case imagecache.SizeThumbnail:
		return "small"
	case imagecache.SizeMedium:
		return "normal"
	case imagecache.SizeLarge:
		return "large"
	default:
		return "png"
	}
}

// FetchImage retrieves the card's image at the requested tier, invoking done
// exactly once with the outcome. Cards without an image reference complete
// immediately with an error so the caller can fall back to a placeholder.
func (s *Service) FetchImage(ctx context.Context, card cards.Card, size imagecache.Size, done func(imagecache.Result)) {
	if done == nil {
		done = func(imagecache.Result) {}
	}
	url := card.ImageURL(imageTier(size))
	if url == "" {
		done(imagecache.Result{Size: size, Err: cards.Wrap(cards.ErrNotFound, "library", "image",
			"card has no image reference", nil)})
		return
	}
	s.images.Fetch(ctx, url, size, done)
}

// ImageForDisplay returns a displayable file path for the card at the
// requested tier without ever touching the network: the cached file when one
// is on disk, otherwise a rendered placeholder. The error is reserved for
// placeholder rendering itself failing. Use FetchImagePath (or FetchImage)
// to actually download.
func (s *Service) ImageForDisplay(card cards.Card, size imagecache.Size) (string, error) {
	if url := card.ImageURL(imageTier(size)); url != "" {
		if path, ok := s.images.CachedPath(url, size); ok {
			return path, nil
		}
	}
	return s.images.Placeholder(card.Name, size)
}

// FetchImagePath downloads the card's image at the requested tier, blocking
// until the transfer settles, and falls back to a rendered placeholder when
// the download fails or the card carries no image reference.
func (s *Service) FetchImagePath(ctx context.Context, card cards.Card, size imagecache.Size) (string, error) {
	url := card.ImageURL(imageTier(size))
	if url != "" {
		if path, err := s.images.FetchSync(ctx, url, size); err == nil {
			return path, nil
		}
	}
	return s.images.Placeholder(card.Name, size)
}

// PreloadImages warms the image cache for a list of cards at one tier.
func (s *Service) PreloadImages(ctx context.Context, list []cards.Card, size imagecache.Size, progress func(completed, total int)) error {
	urls := make([]string, 0, len(list))
	for _, card := range list {
		if url := card.ImageURL(imageTier(size)); url != "" {
			urls = append(urls, url)
		}
	}
	return s.images.Preload(ctx, urls, size, progress)
}

// EvictImages removes cached images older than the configured age and
// returns how many files were deleted.
func (s *Service) EvictImages() (int, error) {
	age := time.Duration(s.cfg.Images.EvictAfterDays) * 24 * time.Hour
	return s.images.EvictOlderThan(age)
}

// CacheStats summarizes the card index.
func (s *Service) CacheStats() cardcache.Stats {
	return s.cache.Snapshot()
}

// ImageStats summarizes the on-disk image cache.
func (s *Service) ImageStats() (imagecache.Stats, error) {
	return s.images.Snapshot()
}

// ClearCache drops every cached card record.
func (s *Service) ClearCache() error {
	return s.cache.Clear()
}
