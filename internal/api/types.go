package api

import (
	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// NodeView is the JSON projection of an OrderNode returned by /l3.
type NodeView struct {
	OrderID       uint32 `json:"order_id"`
	UserAccount   string `json:"user_account"`
	Kind          string `json:"kind"`
	EffectivePrice int64 `json:"effective_price"`
	Slot          uint64 `json:"slot"`
}

// L3Response mirrors spec.md's OrderBook::l3(market, oracle) -> {bids, asks, slot}.
type L3Response struct {
	Bids []NodeView `json:"bids"`
	Asks []NodeView `json:"asks"`
	Slot uint64     `json:"slot"`
}

func toNodeViews(nodes []*dlob.OrderNode, oracle dlobtypes.Oracle) []NodeView {
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeView{
			OrderID:        n.Order.OrderID,
			UserAccount:    n.UserAccount.String(),
			Kind:           n.Kind.String(),
			EffectivePrice: dlob.EffectivePrice(n.Order, oracle),
			Slot:           n.Order.Slot,
		})
	}
	return out
}

// OrderResponse is the JSON projection of a single order returned by
// /orders/:orderID.
type OrderResponse struct {
	OrderID     uint32 `json:"order_id"`
	UserAccount string `json:"user_account"`
	MarketType  string `json:"market_type"`
	MarketIndex uint16 `json:"market_index"`
	Status      int8   `json:"status"`
	OrderType   int8   `json:"order_type"`
	PriceType   int8   `json:"price_type"`
	Direction   int8   `json:"direction"`
	Slot        uint64 `json:"slot"`
	Price       int64  `json:"price"`
}

func toOrderResponse(order dlobtypes.Order, userKey dlobtypes.Pubkey) OrderResponse {
	return OrderResponse{
		OrderID:     order.OrderID,
		UserAccount: userKey.String(),
		MarketType:  order.MarketType.String(),
		MarketIndex: order.MarketIndex,
		Status:      int8(order.Status),
		OrderType:   int8(order.OrderType),
		PriceType:   int8(order.PriceType),
		Direction:   int8(order.Direction),
		Slot:        order.Slot,
		Price:       order.Price,
	}
}
