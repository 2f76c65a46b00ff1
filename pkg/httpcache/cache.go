// Package httpcache caches successful GET response bodies in memory and,
// optionally, on disk between runs.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const (
	fileName     = "geocode-cache.gob"
	saveInterval = 15 * time.Minute
)

// Entry is one cached response body.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Cache is an otter-backed response cache. A Cache created with New persists
// to dir; one created with NewMemory does not.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// New returns a cache persisted under dir. Entries found on disk are loaded
// and a background goroutine saves the cache every 15 minutes until Close.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := newCache(ttl, logger)
	c.dir = dir
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load cache from disk", "error", err)
	}
	c.logger.Debug("cache initialized", "dir", dir, "entries", c.cache.EstimatedSize())

	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel
	c.saveWg.Add(1)
	go c.periodicSave(saveCtx)

	return c, nil
}

// NewMemory returns a cache that lives only as long as the process.
func NewMemory(ttl time.Duration, logger *slog.Logger) *Cache {
	return newCache(ttl, logger)
}

func newCache(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      100_000,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		ttl:    ttl,
		logger: logger,
	}
}

func key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached body for url.
func (c *Cache) Get(url string) ([]byte, bool) {
	k := key(url)
	e, ok := c.cache.GetIfPresent(k)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		c.cache.Invalidate(k)
		return nil, false
	}
	return e.Data, true
}

// Set stores body for url.
func (c *Cache) Set(url string, body []byte) {
	c.cache.Set(key(url), Entry{Data: body, ExpiresAt: time.Now().Add(c.ttl)})
}

// Len returns the approximate number of cached entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, fileName)
}

func (c *Cache) load() error {
	f, err := os.Open(c.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	for k, e := range entries {
		if now.Before(e.ExpiresAt) {
			c.cache.Set(k, e)
		}
	}
	return nil
}

func (c *Cache) save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make(map[string]Entry)
	now := time.Now()
	for k, e := range c.cache.All() {
		if now.Before(e.ExpiresAt) {
			entries[k] = e
		}
	}

	tmp := c.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("failed to remove temp cache file", "error", err)
		}
	}()

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		_ = f.Close() //nolint:errcheck // encode error wins
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path()); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", c.path())
	return nil
}

func (c *Cache) periodicSave(ctx context.Context) {
	defer c.saveWg.Done()

	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.save(); err != nil {
				c.logger.Error("periodic cache save failed", "error", err)
			}
		}
	}
}

// Close stops the periodic save and writes the cache to disk one last time.
// It is a no-op for memory caches.
func (c *Cache) Close() error {
	if c.dir == "" {
		return nil
	}
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	return c.save()
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client serves cached GET responses and stores new 200 responses.
type Client struct {
	cache  *Cache
	next   HTTPClient
	logger *slog.Logger
	accept func(body []byte) bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAccept stores a 200 response only when accept returns true for its
// body. APIs that report failures inside a 200 body use this to keep those
// replies out of the cache.
func WithAccept(accept func(body []byte) bool) ClientOption {
	return func(c *Client) {
		c.accept = accept
	}
}

// NewClient wraps next. A nil cache disables caching.
func NewClient(cache *Cache, next HTTPClient, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cache: cache, next: next, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do implements HTTPClient.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || req.Method != http.MethodGet {
		return c.next.Do(req)
	}

	url := req.URL.String()
	if body, ok := c.cache.Get(url); ok {
		c.logger.Debug("cache hit", "url", url)
		resp := &http.Response{
			Status:     "200 OK",
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := c.next.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, err
	}
	if c.accept == nil || c.accept(body) {
		c.cache.Set(url, body)
	} else {
		c.logger.Debug("response not cached", "url", url)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
