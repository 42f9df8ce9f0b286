package dlob

import (
	"sync"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// Exchange holds the two market-index -> Market mappings, one per
// MarketType. Markets are created lazily on first insert.
type Exchange struct {
	mu    sync.RWMutex
	perp  map[uint16]*Market
	spot  map[uint16]*Market
}

// NewExchange creates an Exchange with both mappings empty.
func NewExchange() *Exchange {
	return &Exchange{
		perp: make(map[uint16]*Market),
		spot: make(map[uint16]*Market),
	}
}

func (e *Exchange) mapFor(marketType dlobtypes.MarketType) map[uint16]*Market {
	if marketType == dlobtypes.MarketTypeSpot {
		return e.spot
	}
	return e.perp
}

// AddMarketIdempotent creates an empty Market for (marketType, index) if
// one does not already exist, and returns it either way.
func (e *Exchange) AddMarketIdempotent(marketType dlobtypes.MarketType, index uint16) *Market {
	e.mu.RLock()
	m, ok := e.mapFor(marketType)[index]
	e.mu.RUnlock()
	if ok {
		return m
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	mapping := e.mapFor(marketType)
	if m, ok := mapping[index]; ok {
		return m
	}
	m = NewMarket()
	mapping[index] = m
	return m
}

// GetMarket returns the Market for (marketType, index), if it has been
// created.
func (e *Exchange) GetMarket(marketType dlobtypes.MarketType, index uint16) (*Market, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.mapFor(marketType)[index]
	return m, ok
}

// PerpSize sums list sizes across every perp market.
func (e *Exchange) PerpSize() int {
	return sumSizes(e.perp, &e.mu)
}

// SpotSize sums list sizes across every spot market.
func (e *Exchange) SpotSize() int {
	return sumSizes(e.spot, &e.mu)
}

func sumSizes(markets map[uint16]*Market, mu *sync.RWMutex) int {
	mu.RLock()
	defer mu.RUnlock()
	total := 0
	for _, m := range markets {
		total += m.Size()
	}
	return total
}

// orderListRef pairs an OrderList with the market coordinates it belongs
// to, for callers (DLOB.GetOrder) that must scan every lane of every
// market.
type orderListRef struct {
	marketType  dlobtypes.MarketType
	marketIndex uint16
	kind        NodeKind
	list        *OrderList
}

// GetOrderLists returns a reference to every lane of every market in the
// exchange, used by DLOB.GetOrder's linear scan.
func (e *Exchange) GetOrderLists() []orderListRef {
	e.mu.RLock()
	defer e.mu.RUnlock()

	refs := make([]orderListRef, 0, (len(e.perp)+len(e.spot))*len(allNodeKinds))
	for idx, m := range e.perp {
		for _, k := range allNodeKinds {
			refs = append(refs, orderListRef{dlobtypes.MarketTypePerp, idx, k, m.ListFor(k)})
		}
	}
	for idx, m := range e.spot {
		for _, k := range allNodeKinds {
			refs = append(refs, orderListRef{dlobtypes.MarketTypeSpot, idx, k, m.ListFor(k)})
		}
	}
	return refs
}

// Clear empties both mappings.
func (e *Exchange) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.perp = make(map[uint16]*Market)
	e.spot = make(map[uint16]*Market)
}

// ForEachMarket calls fn for every (marketType, index, Market) triple
// currently in the exchange. Used by update_resting_limit_orders to walk
// every market's TakingLimit lane.
func (e *Exchange) ForEachMarket(fn func(dlobtypes.MarketType, uint16, *Market)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for idx, m := range e.perp {
		fn(dlobtypes.MarketTypePerp, idx, m)
	}
	for idx, m := range e.spot {
		fn(dlobtypes.MarketTypeSpot, idx, m)
	}
}
