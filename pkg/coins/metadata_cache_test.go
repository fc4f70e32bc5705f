package coins

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/ledger"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	meta  map[string]ledger.CoinMetadata
}

func (f *fakeSource) CoinMetadata(_ context.Context, coinType string) (*ledger.CoinMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	meta, ok := f.meta[coinType]
	if !ok {
		return nil, errors.New("metadata unavailable")
	}
	return &meta, nil
}

// TestMetadataCache tests the MetadataCache functionality
func TestMetadataCache(t *testing.T) {
	t.Run("NewMetadataCache", func(t *testing.T) {
		ttl := 60 * time.Second
		cache := NewMetadataCache(ttl, &logger.EmptyLogger{})

		require.NotNil(t, cache)
		assert.Equal(t, ttl, cache.cacheTTL)
		assert.NotNil(t, cache.cache)
	})

	t.Run("Set and Get", func(t *testing.T) {
		cache := NewMetadataCache(time.Second, &logger.EmptyLogger{})
		cache.Set("0x9::wal::WAL", ledger.CoinMetadata{Decimals: 9, Symbol: "WAL"})

		meta, found := cache.Get("0x9::wal::WAL")
		assert.True(t, found)
		assert.Equal(t, "WAL", meta.Symbol)

		_, found = cache.Get("nonexistent")
		assert.False(t, found)
	})

	t.Run("TTL expiration", func(t *testing.T) {
		now := time.Unix(1000, 0)
		cache := NewMetadataCache(10*time.Second, &logger.EmptyLogger{})
		cache.now = func() time.Time { return now }

		cache.Set("0x9::wal::WAL", ledger.CoinMetadata{Decimals: 3})
		_, found := cache.Get("0x9::wal::WAL")
		assert.True(t, found)

		now = now.Add(11 * time.Second)
		_, found = cache.Get("0x9::wal::WAL")
		assert.False(t, found)
	})

	t.Run("Clear", func(t *testing.T) {
		cache := NewMetadataCache(time.Second, &logger.EmptyLogger{})
		cache.Set("a", ledger.CoinMetadata{})
		cache.Set("b", ledger.CoinMetadata{})

		count, _ := cache.Stats()
		assert.Equal(t, 2, count)

		cache.Clear()
		count, _ = cache.Stats()
		assert.Equal(t, 0, count)
	})

	t.Run("Concurrent access", func(t *testing.T) {
		cache := NewMetadataCache(time.Second, &logger.EmptyLogger{})
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				coinType := fmt.Sprintf("0x%d::c::C", id)
				cache.Set(coinType, ledger.CoinMetadata{Decimals: uint8(id)})
				_, _ = cache.Get(coinType)
			}(i)
		}
		wg.Wait()

		for i := 0; i < 5; i++ {
			meta, found := cache.Get(fmt.Sprintf("0x%d::c::C", i))
			assert.True(t, found)
			assert.Equal(t, uint8(i), meta.Decimals)
		}
	})
}

func TestDecimals(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{meta: map[string]ledger.CoinMetadata{
		"0x9::wal::WAL": {Decimals: 4, Symbol: "WAL"},
	}}
	cache := NewMetadataCache(time.Minute, &logger.EmptyLogger{})

	t.Run("Known coins skip the ledger", func(t *testing.T) {
		assert.Equal(t, uint8(9), cache.Decimals(ctx, src, SUI))
		usdc := Known("mainnet")[1].Type
		assert.Equal(t, USDCDecimals, cache.Decimals(ctx, src, usdc))
		assert.Equal(t, 0, src.calls)
	})

	t.Run("Fetched once then cached", func(t *testing.T) {
		assert.Equal(t, uint8(4), cache.Decimals(ctx, src, "0x9::wal::WAL"))
		assert.Equal(t, uint8(4), cache.Decimals(ctx, src, "0x9::wal::WAL"))
		assert.Equal(t, 1, src.calls)
	})

	t.Run("Failure falls back to defaults", func(t *testing.T) {
		assert.Equal(t, DefaultDecimals, cache.Decimals(ctx, src, "0x7::x::X"))
		assert.Equal(t, USDCDecimals, cache.Decimals(ctx, src, "0x77::usdc::USDC"))
		assert.Equal(t, DefaultDecimals, cache.Decimals(ctx, nil, "0x7::x::X"))
	})

	t.Run("Table", func(t *testing.T) {
		table := cache.Table(ctx, src, []string{SUI, "0x9::wal::WAL", SUI})
		assert.Len(t, table, 2)
		assert.Equal(t, uint8(4), table.Decimals("0x9::wal::WAL"))
		assert.Equal(t, DefaultDecimals, table.Decimals("0x5::other::O"))
	})
}

func TestRegistry(t *testing.T) {
	assert.True(t, IsUSDC("0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC"))
	assert.False(t, IsUSDC(SUI))
	assert.Equal(t, "SUI", Symbol(SUI))
	assert.Equal(t, "WAL", Symbol("0x9::wal::WAL"))
	assert.Empty(t, Known("unknown"))
	assert.Len(t, Known("testnet"), 2)
}
