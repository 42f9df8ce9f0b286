// Package dlob implements the decentralized limit order book core:
// order classification into lanes, per-lane heaps with logical deletion,
// the per-market/per-exchange routing, and the book-level API that
// promotes taking orders into resting ones and merges resting/floating
// lanes under an oracle input.
package dlob

import (
	"fmt"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// Side is which side of the book an order rests on.
type Side int8

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}

// NodeKind is one of the five lanes a market maintains per side. It is a
// closed tagged variant — dispatch on it is always a switch, never open
// polymorphism.
type NodeKind int8

const (
	// NodeKindTakingLimit holds limit orders still inside their auction
	// window; they must cross the book aggressively until they rest.
	NodeKindTakingLimit NodeKind = iota
	// NodeKindRestingLimit holds fixed-price limits past activation.
	NodeKindRestingLimit
	// NodeKindFloatingLimit holds oracle-relative limits, always
	// re-priced at read time.
	NodeKindFloatingLimit
	// NodeKindMarket holds pure takers with no book presence beyond
	// expiry.
	NodeKindMarket
	// NodeKindTrigger holds conditional orders awaiting their trigger
	// price; never priced on the main book.
	NodeKindTrigger
)

// allNodeKinds enumerates the five lanes in a stable order, used
// wherever a Market needs to iterate "every lane".
var allNodeKinds = [5]NodeKind{
	NodeKindTakingLimit,
	NodeKindRestingLimit,
	NodeKindFloatingLimit,
	NodeKindMarket,
	NodeKindTrigger,
}

func (k NodeKind) String() string {
	switch k {
	case NodeKindTakingLimit:
		return "taking_limit"
	case NodeKindRestingLimit:
		return "resting_limit"
	case NodeKindFloatingLimit:
		return "floating_limit"
	case NodeKindMarket:
		return "market"
	case NodeKindTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// OrderNode is the immutable value produced at insertion: an order, the
// user account that owns it, and the lane it was classified into.
type OrderNode struct {
	Order       dlobtypes.Order
	UserAccount dlobtypes.Pubkey
	Kind        NodeKind

	// seq is the insertion sequence number, used only to break ties
	// between orders at the same effective price so repeated
	// best-extractions are deterministic (older first).
	seq uint64
}

// Sig is the canonical signature of a live order: unique across all
// lanes of a market because (order_id, user_account) is globally unique
// among active orders (spec invariant: sig uniqueness).
func (n *OrderNode) Sig() string {
	return Sig(n.Order.OrderID, n.UserAccount)
}

// Sig formats the canonical order signature from its constituent parts.
func Sig(orderID uint32, userAccount dlobtypes.Pubkey) string {
	return fmt.Sprintf("%d:%s", orderID, userAccount.String())
}

// sideFromDirection maps an order's trading direction to the book side
// it occupies. Returns ok=false only for a Direction value outside the
// closed {Long, Short} variant, which classify treats as a
// classification fall-through (spec.md §7.4): the order is silently not
// inserted.
func sideFromDirection(d dlobtypes.Direction) (Side, bool) {
	switch d {
	case dlobtypes.DirectionLong:
		return SideBid, true
	case dlobtypes.DirectionShort:
		return SideAsk, true
	default:
		return SideBid, false
	}
}

// IsRestingLimitOrder is the sole criterion promoting a TakingLimit order
// into RestingLimit: it is a limit order (fixed or oracle priced), not a
// Trigger order awaiting its condition, with status Open, whose auction
// has elapsed as of slot.
func IsRestingLimitOrder(order dlobtypes.Order, slot uint64) bool {
	switch order.OrderType {
	case dlobtypes.OrderTypeTriggerMarket, dlobtypes.OrderTypeTriggerLimit:
		return false
	case dlobtypes.OrderTypeLimit:
		if order.Status != dlobtypes.OrderStatusOpen {
			return false
		}
		return order.AuctionStartSlot+order.AuctionDuration < slot
	default:
		return false
	}
}

// Classify is the sole authority for which lane an order enters. It is
// pure in (order, slot): an order inserted at slot S lives in whichever
// lane Classify(order, S) returns, for as long as that node exists.
func Classify(order dlobtypes.Order, slot uint64) (Side, NodeKind, bool) {
	side, ok := sideFromDirection(order.Direction)
	if !ok {
		return side, 0, false
	}

	switch order.OrderType {
	case dlobtypes.OrderTypeMarket:
		return side, NodeKindMarket, true
	case dlobtypes.OrderTypeTriggerMarket, dlobtypes.OrderTypeTriggerLimit:
		return side, NodeKindTrigger, true
	case dlobtypes.OrderTypeLimit:
		if order.PriceType == dlobtypes.PriceTypeOracle {
			return side, NodeKindFloatingLimit, true
		}
		if IsRestingLimitOrder(order, slot) {
			return side, NodeKindRestingLimit, true
		}
		return side, NodeKindTakingLimit, true
	default:
		return side, 0, false
	}
}

// EffectivePrice returns the order's price to sort by at query time: the
// fixed price for Fixed-priced limits, or oracle.Price + offset for
// Oracle-priced (floating) limits. Trigger and Market nodes have no
// meaningful book price and are never passed here by the merge path.
func EffectivePrice(order dlobtypes.Order, oracle dlobtypes.Oracle) int64 {
	if order.PriceType == dlobtypes.PriceTypeOracle {
		return oracle.Price + order.OraclePriceOffset
	}
	return order.Price
}
