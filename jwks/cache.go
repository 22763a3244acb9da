// Package jwks fetches and time-caches the identity provider's signing key set.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = time.Hour
	DefaultFetchTimeout = 10 * time.Second
)

// KeySet is an immutable snapshot of the remote key set.
type KeySet struct {
	keys      map[string]Key
	FetchedAt time.Time
	TTL       time.Duration
}

// NewKeySet indexes keys by id. Later duplicates of a kid replace earlier ones.
func NewKeySet(keys []Key, fetchedAt time.Time, ttl time.Duration) *KeySet {
	m := make(map[string]Key, len(keys))
	for _, k := range keys {
		m[k.ID] = k
	}
	return &KeySet{keys: m, FetchedAt: fetchedAt, TTL: ttl}
}

// Lookup returns the key with the given id.
func (s *KeySet) Lookup(kid string) (Key, bool) {
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of usable keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// ExpiresAt returns the instant after which the set must be refreshed before use.
func (s *KeySet) ExpiresAt() time.Time {
	return s.FetchedAt.Add(s.TTL)
}

// Fresh reports whether s may be served at now.
func (s *KeySet) Fresh(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt())
}

// Fetcher retrieves the key set document.
type Fetcher interface {
	Fetch(ctx context.Context) (*Document, error)
}

// HTTPFetcher fetches the key set with a GET against a JWKS URL.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPFetcher creates a fetcher for url. A nil client gets one with DefaultFetchTimeout.
func NewHTTPFetcher(url string, httpClient *http.Client, logger *zap.Logger) *HTTPFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &HTTPFetcher{url: url, httpClient: httpClient, logger: logger}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*Document, error) {
	f.logger.Info("jwks.fetch", zap.String("url", f.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWKS: status code %d", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}
	return &doc, nil
}

// Config holds configuration for Cache
type Config struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Cache serves the current KeySet, refreshing it lazily once its TTL has elapsed.
// Concurrent callers that find the set expired share a single fetch.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger

	mu      sync.RWMutex
	current *KeySet

	group   singleflight.Group
	fetches atomic.Int64
}

// NewCache creates a Cache backed by fetcher.
func NewCache(fetcher Fetcher, cfg Config, logger *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Cache{
		fetcher:      fetcher,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		now:          cfg.Clock,
		logger:       logger,
	}
}

// Get returns a fresh key set, fetching one if the cached copy is missing or expired.
// Failures are reported as shared.ErrKeySetUnavailable; an expired set is never served.
func (c *Cache) Get(ctx context.Context) (*KeySet, error) {
	if set := c.cached(); set.Fresh(c.now()) {
		return set, nil
	}

	// The shared fetch must outlive any one waiter's cancellation.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan("jwks", func() (interface{}, error) {
		return c.refresh(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KeySet), nil
	case <-ctx.Done():
		return nil, shared.ErrKeySetUnavailable.Wrap(ctx.Err())
	}
}

func (c *Cache) cached() *KeySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Cache) refresh(ctx context.Context) (*KeySet, error) {
	// A flight that finished just before this one started may already have refreshed.
	if set := c.cached(); set.Fresh(c.now()) {
		return set, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	c.fetches.Add(1)
	doc, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn("jwks.fetch_failed", zap.Error(err))
		return nil, shared.ErrKeySetUnavailable.Wrap(err)
	}

	keys := make([]Key, 0, len(doc.Keys))
	for i, raw := range doc.Keys {
		key, err := ParseKey(raw)
		if err != nil {
			c.logger.Debug("jwks.key_skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, shared.ErrKeySetUnavailable.Wrap(errors.New("jwks contains no usable keys"))
	}

	set := NewKeySet(keys, c.now(), c.ttl)

	c.mu.Lock()
	c.current = set
	c.mu.Unlock()

	c.logger.Info("jwks.cached",
		zap.Int("keys_count", set.Len()),
		zap.Time("expires_at", set.ExpiresAt()))
	return set, nil
}

// Stats describes the cache state.
type Stats struct {
	Cached    bool      `json:"cached"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	KeysCount int       `json:"keys_count"`
	Fetches   int64     `json:"fetches"`
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	stats := Stats{Fetches: c.fetches.Load()}
	if set := c.cached(); set != nil {
		stats.Cached = true
		stats.ExpiresAt = set.ExpiresAt()
		stats.KeysCount = set.Len()
	}
	return stats
}
