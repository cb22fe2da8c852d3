package config

const (
	defaultCardCachePath     = "~/.local/share/cardvault/cards.json"
	defaultImageCacheDir     = "~/.local/share/cardvault/images"
	defaultStagingDir        = "~/.local/share/cardvault/staging"
	defaultLogDir            = "~/.local/share/cardvault/logs"
	defaultScryfallBaseURL   = "https://api.scryfall.com"
	defaultScryfallUserAgent = "Cardvault/dev"
	defaultRequestIntervalMS = 100
	defaultTimeoutSeconds    = 30
	defaultBulkVariant       = "default_cards"
	defaultEvictAfterDays    = 30
	defaultMemoryTTLMinutes  = 15
	defaultPreloadPauseMS    = 100
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CardCachePath: defaultCardCachePath,
			ImageCacheDir: defaultImageCacheDir,
			StagingDir:    defaultStagingDir,
			LogDir:        defaultLogDir,
		},
		Scryfall: Scryfall{
			BaseURL:           defaultScryfallBaseURL,
			UserAgent:         defaultScryfallUserAgent,
			RequestIntervalMS: defaultRequestIntervalMS,
			TimeoutSeconds:    defaultTimeoutSeconds,
		},
		Bulk: Bulk{
			Variant: defaultBulkVariant,
		},
		Images: Images{
			EvictAfterDays:   defaultEvictAfterDays,
			MemoryTTLMinutes: defaultMemoryTTLMinutes,
			PreloadPauseMS:   defaultPreloadPauseMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
