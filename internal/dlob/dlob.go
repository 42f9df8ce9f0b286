package dlob

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// MetricsSink receives book activity counts. It is an interface rather
// than a concrete dependency on internal/metrics to avoid that package's
// reverse import of internal/dlob for lane-size sampling.
type MetricsSink interface {
	OrderInserted()
	OrdersPromoted(n int)
}

type noopMetricsSink struct{}

func (noopMetricsSink) OrderInserted()    {}
func (noopMetricsSink) OrdersPromoted(int) {}

// DLOB is the book API: it owns an Exchange, an informational
// OpenOrders index, the high-water mark for resting-limit promotion, and
// an initialized flag. It is a plain value — the only process-wide state
// anywhere in this package is the discriminator name cache in
// internal/decode, which is unrelated.
type DLOB struct {
	exchange   *Exchange
	openOrders *OpenOrders

	// maxSlotForRestingLimitOrders is non-decreasing between calls to
	// Clear, which resets it to 0 (invariant 3); stored atomically since readers
	// may race with UpdateRestingLimitOrders on other goroutines.
	maxSlotForRestingLimitOrders uint64

	mu          sync.Mutex // guards initialized only
	initialized bool

	logger  *zap.Logger
	metrics MetricsSink
}

// New returns an empty, uninitialized DLOB.
func New(logger *zap.Logger) *DLOB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DLOB{
		exchange:   NewExchange(),
		openOrders: NewOpenOrders(),
		logger:     logger,
		metrics:    noopMetricsSink{},
	}
}

// WithMetrics attaches a MetricsSink that receives insert/promotion
// counts from then on. Passing nil restores the no-op sink.
func (d *DLOB) WithMetrics(sink MetricsSink) *DLOB {
	if sink == nil {
		sink = noopMetricsSink{}
	}
	d.metrics = sink
	return d
}

// Clear resets all state: drops every market, marks the book
// uninitialized, and resets the high-water mark.
func (d *DLOB) Clear() {
	d.exchange.Clear()
	d.openOrders.Clear()
	atomic.StoreUint64(&d.maxSlotForRestingLimitOrders, 0)
	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
}

// Initialized reports whether BuildFromUserMap has completed at least
// once since the last Clear.
func (d *DLOB) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// BuildFromUserMap clears the book and rebuilds it wholesale from a
// user-account snapshot: every non-Init order of every user is inserted
// at slot. The lane contents that result are a deterministic function of
// (users, slot) alone.
func (d *DLOB) BuildFromUserMap(users map[dlobtypes.Pubkey]*dlobtypes.User, slot uint64) {
	d.Clear()

	count := 0
	for userKey, user := range users {
		for i := range user.Orders {
			order := user.Orders[i]
			if order.Status == dlobtypes.OrderStatusInit {
				continue
			}
			if d.InsertOrder(order, userKey, slot) {
				count++
			}
		}
	}

	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()

	d.logger.Debug("dlob rebuilt from user map",
		zap.Int("users", len(users)),
		zap.Int("orders_inserted", count),
		zap.Uint64("slot", slot),
	)
}

// UpdateUser reinserts all of a user's non-Init orders. It does NOT
// first remove the user's prior orders — see the OrderList sig-shadowing
// note in internal/dlob/orderlist.go and SPEC_FULL.md §5 Open Question 2.
// Callers needing true replace semantics must build that on top.
func (d *DLOB) UpdateUser(userKey dlobtypes.Pubkey, user *dlobtypes.User, slot uint64) {
	for i := range user.Orders {
		order := user.Orders[i]
		if order.Status == dlobtypes.OrderStatusInit {
			continue
		}
		d.InsertOrder(order, userKey, slot)
	}
}

// InsertOrder classifies order at slot and pushes the resulting node
// into the matching lane of the order's market, creating the market if
// this is its first order. Returns false (classification fall-through,
// or an Init order) if nothing was inserted.
func (d *DLOB) InsertOrder(order dlobtypes.Order, userKey dlobtypes.Pubkey, slot uint64) bool {
	if order.Status == dlobtypes.OrderStatusInit {
		return false
	}

	side, kind, ok := Classify(order, slot)
	if !ok {
		d.logger.Debug("order classification fell through, not inserted",
			zap.Uint32("order_id", order.OrderID),
			zap.String("user", userKey.String()),
		)
		return false
	}

	market := d.exchange.AddMarketIdempotent(order.MarketType, order.MarketIndex)
	node := &OrderNode{Order: order, UserAccount: userKey, Kind: kind}

	list := market.ListFor(kind)
	if side == SideBid {
		list.InsertBid(node)
	} else {
		list.InsertAsk(node)
	}
	d.openOrders.Add(order.MarketType, node.Sig())
	d.metrics.OrderInserted()

	return true
}

// GetOrder linearly scans every lane of every market for a node matching
// (orderID, userKey) and returns its order, or false if none is found.
// O(lanes x markets); acceptable because callers use it rarely per
// spec.md §4.3.
func (d *DLOB) GetOrder(orderID uint32, userKey dlobtypes.Pubkey) (dlobtypes.Order, bool) {
	sig := Sig(orderID, userKey)
	for _, ref := range d.exchange.GetOrderLists() {
		if node, ok := ref.list.GetNode(sig); ok {
			return node.Order, true
		}
	}
	return dlobtypes.Order{}, false
}

// UpdateRestingLimitOrders promotes every TakingLimit order across every
// market whose auction has elapsed as of slot into RestingLimit. It is a
// no-op if slot does not exceed the current high-water mark, and
// idempotent for a given slot: calling it twice in a row with the same
// slot has the same effect as calling it once, because the second call
// observes slot <= the (already raised) high-water mark.
func (d *DLOB) UpdateRestingLimitOrders(slot uint64) {
	for {
		current := atomic.LoadUint64(&d.maxSlotForRestingLimitOrders)
		if slot <= current {
			return
		}
		if atomic.CompareAndSwapUint64(&d.maxSlotForRestingLimitOrders, current, slot) {
			break
		}
	}

	promoted := 0
	d.exchange.ForEachMarket(func(_ dlobtypes.MarketType, _ uint16, market *Market) {
		taking := market.ListFor(NodeKindTakingLimit)
		resting := market.ListFor(NodeKindRestingLimit)
		promoted += promoteSide(taking, resting, slot, true)
		promoted += promoteSide(taking, resting, slot, false)
	})

	d.metrics.OrdersPromoted(promoted)
	d.logger.Debug("resting limit orders updated",
		zap.Uint64("slot", slot),
		zap.Int("promoted", promoted),
	)
}

// promoteSide drains the given side of the taking lane, keeping anything
// not yet resting and moving the rest into the resting lane. bid
// selects which side's heap is examined.
func promoteSide(taking, resting *OrderList, slot uint64, bid bool) int {
	var pending []*OrderNode
	for {
		var node *OrderNode
		var ok bool
		if bid {
			node, ok = taking.GetBestBid()
		} else {
			node, ok = taking.GetBestAsk()
		}
		if !ok {
			break
		}
		pending = append(pending, node)
	}

	promoted := 0
	for _, node := range pending {
		if IsRestingLimitOrder(node.Order, slot) {
			if bid {
				resting.InsertBid(node)
			} else {
				resting.InsertAsk(node)
			}
			promoted++
		} else {
			if bid {
				taking.InsertBid(node)
			} else {
				taking.InsertAsk(node)
			}
		}
	}
	return promoted
}

// GetBestOrders drains the chosen lane's side (by repeatedly popping)
// into a slice. This is destructive for that lane: subsequent readers
// see an empty lane until the next rebuild or insert. Callers that need
// a non-destructive view should use the Market's OrderList.PeekAll
// instead (see SPEC_FULL.md §5 Open Question 1).
func (d *DLOB) GetBestOrders(marketType dlobtypes.MarketType, side Side, kind NodeKind, marketIndex uint16) []*OrderNode {
	market, ok := d.exchange.GetMarket(marketType, marketIndex)
	if !ok {
		return nil
	}
	list := market.ListFor(kind)
	return d.drainSide(list, side, marketType)
}

func (d *DLOB) drainSide(list *OrderList, side Side, marketType dlobtypes.MarketType) []*OrderNode {
	var out []*OrderNode
	for {
		var node *OrderNode
		var ok bool
		if side == SideBid {
			node, ok = list.GetBestBid()
		} else {
			node, ok = list.GetBestAsk()
		}
		if !ok {
			break
		}
		d.openOrders.Remove(marketType, node.Sig())
		out = append(out, node)
	}
	return out
}

// LaneSize reports one lane's live order count, for external reporters
// (internal/metrics) that want a periodic, non-destructive sample of
// book size. It never pops — PeekAll's length is exact for the same
// reason GetNode's lookups are: the sig map, not the heap, is the source
// of truth for what is live.
type LaneSize struct {
	MarketType  dlobtypes.MarketType
	MarketIndex uint16
	Kind        NodeKind
	Size        int
}

// LaneSizes samples every lane of every market without mutating state.
func (d *DLOB) LaneSizes() []LaneSize {
	refs := d.exchange.GetOrderLists()
	out := make([]LaneSize, 0, len(refs))
	for _, ref := range refs {
		out = append(out, LaneSize{
			MarketType:  ref.marketType,
			MarketIndex: ref.marketIndex,
			Kind:        ref.kind,
			Size:        ref.list.Size(),
		})
	}
	return out
}

// GetRestingLimitBids promotes any now-eligible TakingLimit orders, then
// drains and merges the RestingLimit and FloatingLimit bid lanes, sorted
// best-first (descending effective price, tie-broken by slot then order
// ID) under oracle.
func (d *DLOB) GetRestingLimitBids(slot uint64, marketType dlobtypes.MarketType, marketIndex uint16, oracle dlobtypes.Oracle) []*OrderNode {
	return d.getRestingLimitSide(slot, marketType, marketIndex, oracle, SideBid)
}

// GetRestingLimitAsks mirrors GetRestingLimitBids for the ask side.
func (d *DLOB) GetRestingLimitAsks(slot uint64, marketType dlobtypes.MarketType, marketIndex uint16, oracle dlobtypes.Oracle) []*OrderNode {
	return d.getRestingLimitSide(slot, marketType, marketIndex, oracle, SideAsk)
}

func (d *DLOB) getRestingLimitSide(slot uint64, marketType dlobtypes.MarketType, marketIndex uint16, oracle dlobtypes.Oracle, side Side) []*OrderNode {
	d.UpdateRestingLimitOrders(slot)

	market, ok := d.exchange.GetMarket(marketType, marketIndex)
	if !ok {
		return nil
	}

	resting := d.drainSide(market.ListFor(NodeKindRestingLimit), side, marketType)
	floating := d.drainSide(market.ListFor(NodeKindFloatingLimit), side, marketType)

	merged := make([]*OrderNode, 0, len(resting)+len(floating))
	merged = append(merged, resting...)
	merged = append(merged, floating...)

	sort.SliceStable(merged, func(i, j int) bool {
		pi := EffectivePrice(merged[i].Order, oracle)
		pj := EffectivePrice(merged[j].Order, oracle)
		if pi != pj {
			if side == SideBid {
				return pi > pj
			}
			return pi < pj
		}
		if merged[i].Order.Slot != merged[j].Order.Slot {
			return merged[i].Order.Slot < merged[j].Order.Slot
		}
		return merged[i].Order.OrderID < merged[j].Order.OrderID
	})

	return merged
}
