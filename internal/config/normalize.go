package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScryfall()
	c.normalizeBulk()
	c.normalizeImages()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CardCachePath) == "" {
		c.Paths.CardCachePath = defaultCardCachePath
	}
	if c.Paths.CardCachePath, err = ExpandPath(c.Paths.CardCachePath); err != nil {
		return fmt.Errorf("paths.card_cache_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImageCacheDir) == "" {
		c.Paths.ImageCacheDir = defaultImageCacheDir
	}
	if c.Paths.ImageCacheDir, err = ExpandPath(c.Paths.ImageCacheDir); err != nil {
		return fmt.Errorf("paths.image_cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = ExpandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScryfall() {
	c.Scryfall.BaseURL = strings.TrimSpace(c.Scryfall.BaseURL)
	if c.Scryfall.BaseURL == "" {
		c.Scryfall.BaseURL = defaultScryfallBaseURL
	}
	c.Scryfall.UserAgent = strings.TrimSpace(c.Scryfall.UserAgent)
	if c.Scryfall.UserAgent == "" {
		c.Scryfall.UserAgent = defaultScryfallUserAgent
	}
	if c.Scryfall.RequestIntervalMS <= 0 {
		c.Scryfall.RequestIntervalMS = defaultRequestIntervalMS
	}
	if c.Scryfall.TimeoutSeconds <= 0 {
		c.Scryfall.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeBulk() {
	c.Bulk.Variant = strings.TrimSpace(c.Bulk.Variant)
	if c.Bulk.Variant == "" {
		c.Bulk.Variant = defaultBulkVariant
	}
}

func (c *Config) normalizeImages() {
	if c.Images.EvictAfterDays <= 0 {
		c.Images.EvictAfterDays = defaultEvictAfterDays
	}
	if c.Images.MemoryTTLMinutes <= 0 {
		c.Images.MemoryTTLMinutes = defaultMemoryTTLMinutes
	}
	if c.Images.PreloadPauseMS < 0 {
		c.Images.PreloadPauseMS = defaultPreloadPauseMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
