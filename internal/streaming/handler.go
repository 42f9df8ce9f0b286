package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
	"github.com/abdoElHodaky/dlob-go/internal/oracle"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades /ws/l3 requests and hands the connection to a
// Broadcaster subscription, the gin-facing counterpart of the teacher's
// PairsWebSocketHandler.HandleConnection.
type Handler struct {
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewHandler builds a Handler bound to broadcaster.
func NewHandler(broadcaster *Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{broadcaster: broadcaster, logger: logger}
}

// ServeL3 upgrades the connection and blocks for its lifetime, streaming
// l3 book updates for the requested ?market_type=&market_index=.
func (h *Handler) ServeL3(c *gin.Context) {
	marketType, ok := parseMarketType(c.Query("market_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing market_type"})
		return
	}
	marketIndex, err := strconv.ParseUint(c.Query("market_index"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing market_index"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.broadcaster.Subscribe(c.Request.Context(), conn, marketType, uint16(marketIndex))
}

func parseMarketType(s string) (dlobtypes.MarketType, bool) {
	switch s {
	case "perp":
		return dlobtypes.MarketTypePerp, true
	case "spot":
		return dlobtypes.MarketTypeSpot, true
	default:
		return dlobtypes.MarketType(0), false
	}
}

type nodeView struct {
	OrderID        uint32 `json:"order_id"`
	UserAccount    string `json:"user_account"`
	Kind           string `json:"kind"`
	EffectivePrice int64  `json:"effective_price"`
	Slot           uint64 `json:"slot"`
}

type l3Payload struct {
	MarketType  string     `json:"market_type"`
	MarketIndex uint16     `json:"market_index"`
	Bids        []nodeView `json:"bids"`
	Asks        []nodeView `json:"asks"`
	Slot        uint64     `json:"slot"`
}

func toNodeViews(nodes []*dlob.OrderNode, ora dlobtypes.Oracle) []nodeView {
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView{
			OrderID:        n.Order.OrderID,
			UserAccount:    n.UserAccount.String(),
			Kind:           n.Kind.String(),
			EffectivePrice: dlob.EffectivePrice(n.Order, ora),
			Slot:           n.Order.Slot,
		})
	}
	return out
}

// Publisher periodically samples the book's l3 view for every market the
// Broadcaster currently has subscribers on and pushes a fresh payload, so
// a connected client keeps seeing updates without re-requesting.
type Publisher struct {
	book        *dlob.DLOB
	broadcaster *Broadcaster
	oracleCache *oracle.Cache
	slotFn      func() uint64
	interval    time.Duration
	logger      *zap.Logger
}

// NewPublisher builds a Publisher. slotFn supplies the slot to evaluate
// the book at (the ingester's high-water mark).
func NewPublisher(book *dlob.DLOB, broadcaster *Broadcaster, oracleCache *oracle.Cache, slotFn func() uint64, interval time.Duration, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		book:        book,
		broadcaster: broadcaster,
		oracleCache: oracleCache,
		slotFn:      slotFn,
		interval:    interval,
		logger:      logger,
	}
}

// Run ticks at p.interval, pushing a fresh l3 snapshot for each
// (marketType, marketIndex) pair the broadcaster has subscribers for.
// It returns when ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishAll()
		}
	}
}

func (p *Publisher) publishAll() {
	slot := p.slotFn()
	for _, market := range p.broadcaster.ActiveMarkets() {
		ora, haveOracle := p.oracleCache.Get(market.MarketType, market.MarketIndex)

		bids := p.book.GetRestingLimitBids(slot, market.MarketType, market.MarketIndex, ora)
		asks := p.book.GetRestingLimitAsks(slot, market.MarketType, market.MarketIndex, ora)
		if !haveOracle {
			for _, nodes := range []*[]*dlob.OrderNode{&bids, &asks} {
				kept := (*nodes)[:0]
				for _, n := range *nodes {
					if n.Kind != dlob.NodeKindFloatingLimit {
						kept = append(kept, n)
					}
				}
				*nodes = kept
			}
		}

		payload := l3Payload{
			MarketType:  market.MarketType.String(),
			MarketIndex: market.MarketIndex,
			Bids:        toNodeViews(bids, ora),
			Asks:        toNodeViews(asks, ora),
			Slot:        slot,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			p.logger.Error("failed to marshal l3 publish payload", zap.Error(err))
			continue
		}
		p.broadcaster.Broadcast(market.MarketType, market.MarketIndex, body)
	}
}
