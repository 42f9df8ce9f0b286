// Package streaming pushes DLOB l3 snapshots to websocket subscribers.
// It is read-only: there is no inbound order-placement path, since
// authenticated writes are out of scope for this service.
package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
)

// Config tunes connection lifecycle timings, mirroring the teacher's
// websocket gateway config fields.
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// DefaultConfig returns reasonable defaults for an l3 broadcaster.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   64,
		WriteTimeout: 5 * time.Second,
		PingInterval: 20 * time.Second,
		PongTimeout:  60 * time.Second,
	}
}

// Broadcaster fans out l3 payloads to every subscriber registered for a
// given (marketType, marketIndex).
type Broadcaster struct {
	cfg    Config
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]*subscriber
}

type subscriber struct {
	id          uuid.UUID
	conn        *websocket.Conn
	send        chan []byte
	marketType  dlobtypes.MarketType
	marketIndex uint16
	cancel      context.CancelFunc
}

// New creates an empty Broadcaster.
func New(cfg Config, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[uuid.UUID]*subscriber),
	}
}

// Subscribe registers conn as a subscriber to (marketType, marketIndex)
// and runs its write pump until the connection closes or ctx is done.
// Subscribe blocks until the pump exits, so callers invoke it from the
// goroutine handling the incoming HTTP upgrade.
func (b *Broadcaster) Subscribe(ctx context.Context, conn *websocket.Conn, marketType dlobtypes.MarketType, marketIndex uint16) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		id:          uuid.New(),
		conn:        conn,
		send:        make(chan []byte, b.cfg.SendBuffer),
		marketType:  marketType,
		marketIndex: marketIndex,
		cancel:      cancel,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("streaming subscriber connected",
		zap.String("subscriber_id", sub.id.String()),
		zap.String("market_type", marketType.String()),
		zap.Uint16("market_index", marketIndex),
	)

	go b.readPump(subCtx, sub)
	b.writePump(subCtx, sub)

	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()
}

// readPump's only job is detecting connection close; this service never
// accepts inbound subscriber commands.
func (b *Broadcaster) readPump(ctx context.Context, sub *subscriber) {
	defer sub.cancel()
	sub.conn.SetReadDeadline(time.Now().Add(b.cfg.PongTimeout))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(b.cfg.PongTimeout))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(ctx context.Context, sub *subscriber) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				b.logger.Warn("streaming write failed", zap.String("subscriber_id", sub.id.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast pushes payload to every subscriber registered for
// (marketType, marketIndex). A subscriber whose send buffer is full is
// skipped rather than blocking the broadcast.
func (b *Broadcaster) Broadcast(marketType dlobtypes.MarketType, marketIndex uint16, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.marketType != marketType || sub.marketIndex != marketIndex {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			b.logger.Warn("streaming subscriber send buffer full, dropping update",
				zap.String("subscriber_id", sub.id.String()))
		}
	}
}

// SubscriberCount reports how many subscribers are currently connected.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Market identifies a (marketType, marketIndex) pair with active subscribers.
type Market struct {
	MarketType  dlobtypes.MarketType
	MarketIndex uint16
}

// ActiveMarkets returns the distinct markets at least one subscriber is
// currently registered for.
func (b *Broadcaster) ActiveMarkets() []Market {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[Market]struct{})
	for _, sub := range b.subs {
		seen[Market{MarketType: sub.marketType, MarketIndex: sub.marketIndex}] = struct{}{}
	}
	out := make([]Market, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	return out
}
