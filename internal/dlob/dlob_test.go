package dlob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

func fixedBid(orderID uint32, price int64, auctionStart, auctionDuration uint64) dlobtypes.Order {
	return dlobtypes.Order{
		OrderID:          orderID,
		MarketType:       dlobtypes.MarketTypePerp,
		MarketIndex:      0,
		Status:           dlobtypes.OrderStatusOpen,
		OrderType:        dlobtypes.OrderTypeLimit,
		PriceType:        dlobtypes.PriceTypeFixed,
		Direction:        dlobtypes.DirectionLong,
		Slot:             auctionStart,
		AuctionStartSlot: auctionStart,
		AuctionDuration:  auctionDuration,
		Price:            price,
	}
}

func floatingBid(orderID uint32, offset int64, slot uint64) dlobtypes.Order {
	return dlobtypes.Order{
		OrderID:           orderID,
		MarketType:        dlobtypes.MarketTypePerp,
		MarketIndex:       0,
		Status:            dlobtypes.OrderStatusOpen,
		OrderType:         dlobtypes.OrderTypeLimit,
		PriceType:         dlobtypes.PriceTypeOracle,
		Direction:         dlobtypes.DirectionLong,
		Slot:              slot,
		AuctionStartSlot:  slot,
		AuctionDuration:   0,
		OraclePriceOffset: offset,
	}
}

func userKey(b byte) dlobtypes.Pubkey {
	var k dlobtypes.Pubkey
	k[0] = b
	return k
}

// Scenario 1: single fixed bid.
func TestSingleFixedBid(t *testing.T) {
	d := New(nil)
	order := fixedBid(1, 100, 0, 0)
	require.True(t, d.InsertOrder(order, userKey(1), 10))

	got := d.GetRestingLimitBids(10, dlobtypes.MarketTypePerp, 0, dlobtypes.Oracle{Price: 0})
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), EffectivePrice(got[0].Order, dlobtypes.Oracle{Price: 0}))
}

// Scenario 2: promotion across the auction window.
func TestPromotionAcrossAuctionWindow(t *testing.T) {
	d := New(nil)
	order := fixedBid(1, 100, 10, 5)
	require.True(t, d.InsertOrder(order, userKey(1), 10))

	got := d.GetRestingLimitBids(14, dlobtypes.MarketTypePerp, 0, dlobtypes.Oracle{})
	assert.Empty(t, got)

	d2 := New(nil)
	require.True(t, d2.InsertOrder(order, userKey(1), 10))
	got2 := d2.GetRestingLimitBids(16, dlobtypes.MarketTypePerp, 0, dlobtypes.Oracle{})
	require.Len(t, got2, 1)
	assert.Equal(t, uint32(1), got2[0].Order.OrderID)
}

// Scenario 3: floating merge with a fixed order.
func TestFloatingMergeWithFixed(t *testing.T) {
	d := New(nil)
	fixed := fixedBid(1, 100, 0, 0)
	floating := floatingBid(2, 3, 0)
	require.True(t, d.InsertOrder(fixed, userKey(1), 0))
	require.True(t, d.InsertOrder(floating, userKey(2), 0))

	oracle := dlobtypes.Oracle{Price: 98}
	got := d.GetRestingLimitBids(1, dlobtypes.MarketTypePerp, 0, oracle)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(2), got[0].Order.OrderID) // floating: 98+3=101
	assert.Equal(t, uint32(1), got[1].Order.OrderID) // fixed: 100
}

// Scenario 6: Init skip.
func TestInitOrderSkipped(t *testing.T) {
	d := New(nil)
	users := map[dlobtypes.Pubkey]*dlobtypes.User{
		userKey(1): {
			Orders: [dlobtypes.MaxUserOrders]dlobtypes.Order{
				0: fixedBid(1, 100, 0, 0),
				1: {Status: dlobtypes.OrderStatusInit},
			},
		},
	}
	d.BuildFromUserMap(users, 0)
	assert.Equal(t, 1, d.exchangeSize())
}

func (d *DLOB) exchangeSize() int {
	return d.exchange.PerpSize() + d.exchange.SpotSize()
}

// Scenario 5: rebuild determinism.
func TestRebuildDeterminism(t *testing.T) {
	users := map[dlobtypes.Pubkey]*dlobtypes.User{}
	for i := byte(1); i <= 3; i++ {
		users[userKey(i)] = &dlobtypes.User{
			Orders: [dlobtypes.MaxUserOrders]dlobtypes.Order{
				0: fixedBid(uint32(i)*10+1, int64(i)*100, 0, 0),
				1: fixedBid(uint32(i)*10+2, int64(i)*100+1, 0, 0),
			},
		}
	}

	d := New(nil)
	d.BuildFromUserMap(users, 5)
	first := sigsOf(t, d)

	d.BuildFromUserMap(users, 5)
	second := sigsOf(t, d)

	assert.ElementsMatch(t, first, second)
}

func sigsOf(t *testing.T, d *DLOB) []string {
	t.Helper()
	var sigs []string
	for _, ref := range d.exchange.GetOrderLists() {
		for _, n := range ref.list.PeekAll() {
			sigs = append(sigs, n.Sig())
		}
	}
	return sigs
}

func TestClearResetsInitializedAndHighWaterMark(t *testing.T) {
	d := New(nil)
	d.BuildFromUserMap(map[dlobtypes.Pubkey]*dlobtypes.User{}, 100)
	assert.True(t, d.Initialized())

	d.UpdateRestingLimitOrders(50)
	d.Clear()
	assert.False(t, d.Initialized())

	// high-water mark reset: a later call with a smaller slot than the
	// pre-clear mark still processes (no-op guard must have reset to 0).
	d.UpdateRestingLimitOrders(1)
	assert.Equal(t, uint64(1), d.maxSlotForRestingLimitOrders)
}

func TestUpdateRestingLimitOrdersIdempotent(t *testing.T) {
	d := New(nil)
	order := fixedBid(1, 100, 0, 5)
	require.True(t, d.InsertOrder(order, userKey(1), 0))

	d.UpdateRestingLimitOrders(10)
	firstSize := d.exchangeSize()
	d.UpdateRestingLimitOrders(10)
	assert.Equal(t, firstSize, d.exchangeSize())
}

func TestSlotMovingBackwardHasNoEffect(t *testing.T) {
	d := New(nil)
	d.UpdateRestingLimitOrders(100)
	d.UpdateRestingLimitOrders(5) // no-op: 5 <= 100
	order := fixedBid(1, 100, 0, 5)
	require.True(t, d.InsertOrder(order, userKey(1), 0))
	// at slot 6 the order would be resting (0+5 < 6) if promotion ran,
	// but the high-water mark is already 100 so a call at slot 6 is a
	// no-op and the order stays in TakingLimit.
	d.UpdateRestingLimitOrders(6)
	got := d.GetBestOrders(dlobtypes.MarketTypePerp, SideBid, NodeKindTakingLimit, 0)
	require.Len(t, got, 1)
}

func TestGetOrderMiss(t *testing.T) {
	d := New(nil)
	_, ok := d.GetOrder(999, userKey(1))
	assert.False(t, ok)
}

func TestGetBestOrdersEmptyLaneReturnsNilWithoutPopping(t *testing.T) {
	d := New(nil)
	d.AddMarketForTest(dlobtypes.MarketTypePerp, 0)
	got := d.GetBestOrders(dlobtypes.MarketTypePerp, SideBid, NodeKindRestingLimit, 0)
	assert.Nil(t, got)
}

// AddMarketForTest exposes market creation to tests without widening the
// public API.
func (d *DLOB) AddMarketForTest(marketType dlobtypes.MarketType, index uint16) {
	d.exchange.AddMarketIdempotent(marketType, index)
}

// Demonstrates the documented (not silently fixed) update_user
// shadow-vs-replace behavior: see SPEC_FULL.md §5 Open Question 2.
func TestUpdateUserShadowsRatherThanReplaces(t *testing.T) {
	d := New(nil)
	key := userKey(1)

	u1 := &dlobtypes.User{}
	u1.Orders[0] = fixedBid(1, 100, 0, 0)
	d.UpdateUser(key, u1, 1)

	// Reinsert the same order id/user (same sig) at a different price —
	// this is the "update" that does not first remove the prior insert.
	u2 := &dlobtypes.User{}
	u2.Orders[0] = fixedBid(1, 200, 0, 0)
	d.UpdateUser(key, u2, 1)

	list := mustMarket(t, d).ListFor(NodeKindRestingLimit)
	// Exactly one sig is live in the map regardless of how many stale
	// heap entries exist underneath it.
	assert.Equal(t, 1, list.Size())
}

func mustMarket(t *testing.T, d *DLOB) *Market {
	t.Helper()
	m, ok := d.exchange.GetMarket(dlobtypes.MarketTypePerp, 0)
	require.True(t, ok)
	return m
}

func TestOrderListSizeInvariant(t *testing.T) {
	list := NewOrderList()
	n1 := &OrderNode{Order: fixedBid(1, 100, 0, 0), UserAccount: userKey(1)}
	n2 := &OrderNode{Order: fixedBid(2, 101, 0, 0), UserAccount: userKey(2)}
	list.InsertBid(n1)
	list.InsertBid(n2)
	assert.Equal(t, 2, list.Size())

	_, ok := list.GetBestBid()
	require.True(t, ok)
	assert.Equal(t, 1, list.Size())

	_, ok = list.GetBestBid()
	require.True(t, ok)
	assert.Equal(t, 0, list.Size())

	_, ok = list.GetBestBid()
	assert.False(t, ok)
}

func TestOrderListBestBidDescendingOrder(t *testing.T) {
	list := NewOrderList()
	list.InsertBid(&OrderNode{Order: fixedBid(1, 50, 0, 0), UserAccount: userKey(1)})
	list.InsertBid(&OrderNode{Order: fixedBid(2, 150, 0, 0), UserAccount: userKey(2)})
	list.InsertBid(&OrderNode{Order: fixedBid(3, 100, 0, 0), UserAccount: userKey(3)})

	first, _ := list.GetBestBid()
	second, _ := list.GetBestBid()
	assert.GreaterOrEqual(t, first.Order.Price, second.Order.Price)
}

func TestClassifyTriggerNeverEntersBidAskHeaps(t *testing.T) {
	order := dlobtypes.Order{
		OrderType: dlobtypes.OrderTypeTriggerLimit,
		Direction: dlobtypes.DirectionLong,
		Status:    dlobtypes.OrderStatusOpen,
	}
	_, kind, ok := Classify(order, 0)
	require.True(t, ok)
	assert.Equal(t, NodeKindTrigger, kind)
}

func TestClassifyFallThroughOnInvalidDirection(t *testing.T) {
	order := dlobtypes.Order{OrderType: dlobtypes.OrderTypeLimit, Direction: dlobtypes.Direction(99)}
	_, _, ok := Classify(order, 0)
	assert.False(t, ok)
}
