// Package oracle caches the last-seen oracle price per market so that
// read-API callers may omit a fresh oracle reading and still get a
// usable get_resting_limit_* result (see SPEC_FULL.md §5 Open Question 4).
package oracle

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// Cache holds the most recent Oracle reading observed per
// (market_type, market_index), evicting entries that go stale.
type Cache struct {
	cache  *cache.Cache
	logger *zap.Logger
}

// New creates a Cache whose entries expire after ttl if not refreshed,
// swept every cleanupInterval.
func New(ttl, cleanupInterval time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		cache:  cache.New(ttl, cleanupInterval),
		logger: logger,
	}
}

func key(marketType dlobtypes.MarketType, marketIndex uint16) string {
	return fmt.Sprintf("%s:%d", marketType, marketIndex)
}

// Set records the latest oracle reading for a market.
func (c *Cache) Set(marketType dlobtypes.MarketType, marketIndex uint16, oracle dlobtypes.Oracle) {
	c.cache.SetDefault(key(marketType, marketIndex), oracle)
}

// Get returns the last cached oracle reading for a market, or false if
// none has been recorded or it has expired.
func (c *Cache) Get(marketType dlobtypes.MarketType, marketIndex uint16) (dlobtypes.Oracle, bool) {
	v, ok := c.cache.Get(key(marketType, marketIndex))
	if !ok {
		c.logger.Warn("no cached oracle price for market",
			zap.String("market_type", marketType.String()),
			zap.Uint16("market_index", marketIndex),
		)
		return dlobtypes.Oracle{}, false
	}
	return v.(dlobtypes.Oracle), true
}
