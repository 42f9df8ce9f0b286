package dlob

import (
	"sync"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// OpenOrders is a per-market-kind informational index of outstanding
// sigs. It is not consulted for correctness anywhere in the DLOB — the
// OrderList sig maps are the source of truth for what is live — but it
// gives O(1) answers to "how many orders are open on perp/spot right
// now" without walking every market's every lane.
type OpenOrders struct {
	mu   sync.Mutex
	sigs map[dlobtypes.MarketType]map[string]struct{}
}

// NewOpenOrders creates an empty index for both market kinds.
func NewOpenOrders() *OpenOrders {
	return &OpenOrders{
		sigs: map[dlobtypes.MarketType]map[string]struct{}{
			dlobtypes.MarketTypePerp: make(map[string]struct{}),
			dlobtypes.MarketTypeSpot: make(map[string]struct{}),
		},
	}
}

// Add records sig as outstanding for marketType.
func (o *OpenOrders) Add(marketType dlobtypes.MarketType, sig string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sigs[marketType][sig] = struct{}{}
}

// Remove drops sig from the outstanding set, if present.
func (o *OpenOrders) Remove(marketType dlobtypes.MarketType, sig string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sigs[marketType], sig)
}

// Size reports how many sigs are currently recorded open for marketType.
func (o *OpenOrders) Size(marketType dlobtypes.MarketType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sigs[marketType])
}

// Clear empties both market kinds' sets.
func (o *OpenOrders) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sigs[dlobtypes.MarketTypePerp] = make(map[string]struct{})
	o.sigs[dlobtypes.MarketTypeSpot] = make(map[string]struct{})
}
