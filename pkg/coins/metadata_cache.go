package coins

import (
	"context"
	"sync"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/metrics"
)

// MetadataSource fetches coin metadata from the ledger
type MetadataSource interface {
	CoinMetadata(ctx context.Context, coinType string) (*ledger.CoinMetadata, error)
}

// MetadataCache manages cached coin metadata to avoid repeated ledger lookups
type MetadataCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedMetadata
	cacheTTL time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// cachedMetadata represents cached coin metadata with timestamp
type cachedMetadata struct {
	meta      ledger.CoinMetadata
	timestamp time.Time
}

// NewMetadataCache creates a new coin metadata cache
func NewMetadataCache(cacheTTL time.Duration, log logger.Logger) *MetadataCache {
	return &MetadataCache{
		cache:    make(map[string]*cachedMetadata),
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   log,
	}
}

// Get retrieves cached metadata if it's still valid
func (c *MetadataCache) Get(coinType string) (ledger.CoinMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[coinType]
	if !exists {
		return ledger.CoinMetadata{}, false
	}

	if c.now().Sub(cached.timestamp) > c.cacheTTL {
		return ledger.CoinMetadata{}, false
	}

	return cached.meta, true
}

// Set stores metadata in the cache with current timestamp
func (c *MetadataCache) Set(coinType string, meta ledger.CoinMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[coinType] = &cachedMetadata{
		meta:      meta,
		timestamp: c.now(),
	}
}

// Clear removes all cached entries
func (c *MetadataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedMetadata)
}

// Stats returns the number of cached entries and the TTL
func (c *MetadataCache) Stats() (int, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache), c.cacheTTL
}

// Decimals returns the precision of coinType. Known coins never hit the ledger;
// other types are fetched through src and cached. Lookup failures fall back to
// DefaultDecimals and are not cached.
func (c *MetadataCache) Decimals(ctx context.Context, src MetadataSource, coinType string) uint8 {
	if coin, ok := Lookup(coinType); ok {
		return coin.Decimals
	}
	if meta, ok := c.Get(coinType); ok {
		return meta.Decimals
	}

	metrics.CoinMetadataMisses.Inc()
	if src == nil {
		return StaticDecimals(coinType)
	}

	meta, err := src.CoinMetadata(ctx, coinType)
	if err != nil {
		c.logger.DebugWithScope(logger.Ledger, "Coin metadata for %s unavailable, using defaults: %v", coinType, err)
		return StaticDecimals(coinType)
	}

	c.Set(coinType, *meta)
	return meta.Decimals
}

// Table resolves the decimals of every coin type in coinTypes
func (c *MetadataCache) Table(ctx context.Context, src MetadataSource, coinTypes []string) DecimalsTable {
	table := make(DecimalsTable, len(coinTypes))
	for _, coinType := range coinTypes {
		if _, done := table[coinType]; done {
			continue
		}
		table[coinType] = c.Decimals(ctx, src, coinType)
	}
	return table
}

// DecimalsTable is a resolved coin type to decimals mapping
type DecimalsTable map[string]uint8

// Decimals returns the resolved precision, falling back to the static registry
func (t DecimalsTable) Decimals(coinType string) uint8 {
	if d, ok := t[coinType]; ok {
		return d
	}
	return StaticDecimals(coinType)
}
