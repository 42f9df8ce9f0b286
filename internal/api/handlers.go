package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
	"github.com/abdoElHodaky/dlob-go/internal/ingest"
	"github.com/abdoElHodaky/dlob-go/internal/oracle"
)

// Handler serves the read-only DLOB HTTP surface: l3 books, single-order
// lookup, and health (/metrics is served by promhttp in RegisterRoutes).
// Apart from the drain that every l3 query performs, it never mutates the
// book.
type Handler struct {
	book        *dlob.DLOB
	oracleCache *oracle.Cache
	slot        *ingest.Ingester
	logger      *zap.Logger
}

// NewHandler wires a Handler to the live book, the oracle fallback cache,
// and the ingester (for the current slot, used by /healthz).
func NewHandler(book *dlob.DLOB, oracleCache *oracle.Cache, ing *ingest.Ingester, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{book: book, oracleCache: oracleCache, slot: ing, logger: logger}
}

func parseMarketType(s string) (dlobtypes.MarketType, bool) {
	switch s {
	case "perp":
		return dlobtypes.MarketTypePerp, true
	case "spot":
		return dlobtypes.MarketTypeSpot, true
	default:
		return 0, false
	}
}

// L3 handles GET /l3?market_type=perp&market_index=0&oracle_price=...&slot=...
// The oracle price and slot are optional: slot defaults to the ingester's
// current high-water mark, and a missing oracle price falls back to the
// last cached reading for that market (see internal/oracle). With neither,
// floating-limit orders are left out of the response.
func (h *Handler) L3(c *gin.Context) {
	marketType, ok := parseMarketType(c.Query("market_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market_type must be 'perp' or 'spot'"})
		return
	}

	marketIndex64, err := strconv.ParseUint(c.Query("market_index"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market_index is required and must be a uint16"})
		return
	}
	marketIndex := uint16(marketIndex64)

	slot := h.currentSlot()
	if s := c.Query("slot"); s != "" {
		if parsed, err := strconv.ParseUint(s, 10, 64); err == nil {
			slot = parsed
		}
	}

	var ora dlobtypes.Oracle
	haveOracle := true
	if p := c.Query("oracle_price"); p != "" {
		price, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "oracle_price must be an integer"})
			return
		}
		ora = dlobtypes.Oracle{Price: price, Slot: slot}
		h.oracleCache.Set(marketType, marketIndex, ora)
	} else if cached, ok := h.oracleCache.Get(marketType, marketIndex); ok {
		ora = cached
	} else {
		haveOracle = false
	}

	bids := h.book.GetRestingLimitBids(slot, marketType, marketIndex, ora)
	asks := h.book.GetRestingLimitAsks(slot, marketType, marketIndex, ora)
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

	c.JSON(http.StatusOK, L3Response{
		Bids: toNodeViews(bids, ora),
		Asks: toNodeViews(asks, ora),
		Slot: slot,
	})
}

// GetOrder handles GET /orders/:orderID?user=<base58 pubkey>.
func (h *Handler) GetOrder(c *gin.Context) {
	orderID64, err := strconv.ParseUint(c.Param("orderID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderID must be a uint32"})
		return
	}

	userParam := c.Query("user")
	if userParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user query parameter is required"})
		return
	}
	userKey, err := dlobtypes.PubkeyFromBase58(userParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not a valid base58 pubkey"})
		return
	}

	order, ok := h.book.GetOrder(uint32(orderID64), userKey)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order, userKey))
}

// Healthz reports whether the book has completed its initial rebuild.
func (h *Handler) Healthz(c *gin.Context) {
	if !h.book.Initialized() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "slot": h.currentSlot()})
}

func (h *Handler) currentSlot() uint64 {
	if h.slot == nil {
		return 0
	}
	return h.slot.Slot()
}
