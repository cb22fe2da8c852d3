package scryfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cardvault/internal/cards"
)

const (
	defaultBaseURL         = "https://api.scryfall.com"
	defaultUserAgent       = "Cardvault/dev"
	defaultRequestInterval = 100 * time.Millisecond
	defaultHTTPTimeout     = 30 * time.Second
)

// Config describes the Scryfall client configuration.
type Config struct {
	BaseURL         string
	UserAgent       string
	RequestInterval time.Duration
	HTTPClient      *http.Client
}

// Client wraps the Scryfall REST API. Every request waits on a shared rate
// limiter so consecutive calls through one client instance are spaced by at
// least the configured interval, regardless of endpoint.
type Client struct {
	baseURL   *url.URL
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("scryfall: parse base url: %w", err)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = defaultRequestInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      client,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// NamedCard looks a card up by name. With exact set, only a precise name
// match is returned; otherwise Scryfall's fuzzy matching applies.
func (c *Client) NamedCard(ctx context.Context, name string, exact bool) (cards.Card, error) {
	if c == nil {
		return cards.Card{}, errors.New("scryfall: client is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return cards.Card{}, cards.Wrap(cards.ErrNotFound, "scryfall", "named", "empty name", nil)
	}
	params := url.Values{}
	if exact {
		params.Set("exact", name)
	} else {
		params.Set("fuzzy", name)
	}
	var card cards.Card
	if err := c.getJSON(ctx, "cards/named", params, &card); err != nil {
		return cards.Card{}, err
	}
	return card, nil
}

// CardByID looks a card up by its opaque print identifier.
func (c *Client) CardByID(ctx context.Context, id string) (cards.Card, error) {
	if c == nil {
		return cards.Card{}, errors.New("scryfall: client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return cards.Card{}, cards.Wrap(cards.ErrNotFound, "scryfall", "by-id", "empty id", nil)
	}
	var card cards.Card
	if err := c.getJSON(ctx, "cards/"+url.PathEscape(id), nil, &card); err != nil {
		return cards.Card{}, err
	}
	return card, nil
}

// SearchPage is one page of free-text search results.
type SearchPage struct {
	Cards      []cards.Card
	TotalCards int
	HasMore    bool
}

// Search runs a free-text card search. Pages start at 1.
func (c *Client) Search(ctx context.Context, query string, page int) (SearchPage, error) {
	if c == nil {
		return SearchPage{}, errors.New("scryfall: client is nil")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchPage{}, cards.Wrap(cards.ErrNotFound, "scryfall", "search", "empty query", nil)
	}
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))

	var payload struct {
		Data       []cards.Card `json:"data"`
		TotalCards int          `json:"total_cards"`
		HasMore    bool         `json:"has_more"`
	}
	if err := c.getJSON(ctx, "cards/search", params, &payload); err != nil {
		return SearchPage{}, err
	}
	return SearchPage{Cards: payload.Data, TotalCards: payload.TotalCards, HasMore: payload.HasMore}, nil
}

// Set describes one card set.
type Set struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	SetType    string `json:"set_type"`
	CardCount  int    `json:"card_count"`
	ReleasedAt string `json:"released_at"`
}

// Sets returns the full set list.
func (c *Client) Sets(ctx context.Context) ([]Set, error) {
	if c == nil {
		return nil, errors.New("scryfall: client is nil")
	}
	var payload struct {
		Data []Set `json:"data"`
	}
	if err := c.getJSON(ctx, "sets", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// BulkEntry describes one downloadable bulk dataset from the manifest.
type BulkEntry struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DownloadURI     string `json:"download_uri"`
	Size            int64  `json:"size"`
	ContentEncoding string `json:"content_encoding"`
	UpdatedAt       string `json:"updated_at"`
}

// BulkManifest fetches the bulk-data manifest listing available datasets.
func (c *Client) BulkManifest(ctx context.Context) ([]BulkEntry, error) {
	if c == nil {
		return nil, errors.New("scryfall: client is nil")
	}
	var payload struct {
		Data []BulkEntry `json:"data"`
	}
	if err := c.getJSON(ctx, "bulk-data", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// DownloadBulk streams a bulk dataset to dest. progress, when non-nil, is
// invoked after every received chunk with (bytes received, total bytes);
// total is the manifest size and may be zero when the server does not
// report one.
func (c *Client) DownloadBulk(ctx context.Context, entry BulkEntry, dest io.Writer, progress func(received, total int64)) error {
	if c == nil {
		return errors.New("scryfall: client is nil")
	}
	if strings.TrimSpace(entry.DownloadURI) == "" {
		return cards.Wrap(cards.ErrNotFound, "scryfall", "bulk-download", "entry has no download uri", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.DownloadURI, nil)
	if err != nil {
		return fmt.Errorf("scryfall: build bulk request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return cards.Wrap(cards.ErrTransient, "scryfall", "bulk-download", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cards.Wrap(cards.ErrTransient, "scryfall", "bulk-download",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = entry.Size
	}

	buf := make([]byte, 64*1024)
	var received int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := dest.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("scryfall: write bulk data: %w", writeErr)
			}
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return cards.Wrap(cards.ErrTransient, "scryfall", "bulk-download", "read body", readErr)
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("scryfall: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return cards.Wrap(cards.ErrTransient, "scryfall", path, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return cards.Wrap(cards.ErrNotFound, "scryfall", path, "no result", nil)
	default:
		return cards.Wrap(cards.ErrTransient, "scryfall", path,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return cards.Wrap(cards.ErrTransient, "scryfall", path, "decode response", err)
	}
	return nil
}
