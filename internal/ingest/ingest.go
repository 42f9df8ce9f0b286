// Package ingest binds an update-source message stream to a DLOB: decode
// fan-out is pooled, application to the book is serialized in receive
// order so a single user's updates always land in the order they arrived.
package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/decode"
	"github.com/abdoElHodaky/dlob-go/internal/dlob"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
	dlerrors "github.com/abdoElHodaky/dlob-go/pkg/errors"
)

// LatencyRecorder receives the ingest-to-apply duration of one account
// update. It is an interface rather than a concrete dependency on
// internal/metrics for the same reason dlob.MetricsSink is: to avoid that
// package importing this one back.
type LatencyRecorder interface {
	ObserveIngestLatency(time.Duration)
}

type noopLatencyRecorder struct{}

func (noopLatencyRecorder) ObserveIngestLatency(time.Duration) {}

// Config controls the Ingester's pool size and program filter.
type Config struct {
	TargetProgram  dlobtypes.Pubkey
	WorkerPoolSize int
}

// pendingAccount is one decoded-account-update-in-flight: its raw payload
// was received and queued for application before its decode necessarily
// finished, so the applier waits on outcome rather than racing the pool.
type pendingAccount struct {
	payload    Message
	receivedAt time.Time
	outcome    chan decodeOutcome
}

type decodeOutcome struct {
	decoded decode.DecodedAccount
	err     error
}

// Ingester consumes Messages from a subscriber, decodes recognized
// account updates across a worker pool, and applies them to a DLOB one at
// a time in the order they were received. The slot high-water mark is
// tracked so every applied account update carries the most recently
// observed slot.
type Ingester struct {
	book *dlob.DLOB

	subscriber message.Subscriber
	subject    string

	pool *ants.Pool

	applyQueue chan *pendingAccount

	targetProgram dlobtypes.Pubkey
	slot          uint64 // atomic

	userMu    sync.Mutex
	userCache map[dlobtypes.Pubkey]*dlobtypes.User

	metrics LatencyRecorder
	logger  *zap.Logger

	applyWg sync.WaitGroup
}

// New creates an Ingester bound to book. subscriber is expected to
// already be connected; subject is the topic/channel it is subscribed
// under (e.g. a NATS subject).
func New(book *dlob.DLOB, subscriber message.Subscriber, subject string, cfg Config, logger *zap.Logger) (*Ingester, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.WorkerPoolSize
	if size <= 0 {
		size = 16
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, dlerrors.New(dlerrors.ErrInvalidConfiguration, "failed to create ingest worker pool").WithCause(err)
	}

	return &Ingester{
		book:          book,
		subscriber:    subscriber,
		subject:       subject,
		pool:          pool,
		applyQueue:    make(chan *pendingAccount, size*4),
		targetProgram: cfg.TargetProgram,
		userCache:     make(map[dlobtypes.Pubkey]*dlobtypes.User),
		metrics:       noopLatencyRecorder{},
		logger:        logger,
	}, nil
}

// WithMetrics attaches a LatencyRecorder that receives ingest-to-apply
// durations. Returns the Ingester for chaining at construction time.
func (ing *Ingester) WithMetrics(rec LatencyRecorder) *Ingester {
	if rec == nil {
		rec = noopLatencyRecorder{}
	}
	ing.metrics = rec
	return ing
}

// Slot returns the most recently observed chain slot.
func (ing *Ingester) Slot() uint64 {
	return atomic.LoadUint64(&ing.slot)
}

// Run subscribes to the configured subject and processes messages until
// ctx is canceled or the subscriber's channel closes.
func (ing *Ingester) Run(ctx context.Context) error {
	messages, err := ing.subscriber.Subscribe(ctx, ing.subject)
	if err != nil {
		return dlerrors.New(dlerrors.ErrStreamClosed, "failed to subscribe to ingest subject").WithCause(err)
	}

	ing.applyWg.Add(1)
	go ing.applyLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return dlerrors.New(dlerrors.ErrStreamClosed, "ingest message channel closed")
			}
			ing.dispatch(msg)
		}
	}
}

// Close releases the worker pool and waits for the applier to drain.
func (ing *Ingester) Close() {
	ing.pool.Release()
	ing.applyWg.Wait()
}

// dispatch decodes nothing itself: it enqueues the message for in-order
// application and hands the (CPU-bound) decode work to the worker pool.
// applyLoop consumes applyQueue strictly in the order dispatch pushed to
// it, so application order always matches receive order regardless of
// which pool worker finishes decoding first.
func (ing *Ingester) dispatch(msg *message.Message) {
	var payload Message
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		ing.logger.Error("failed to unmarshal ingest message", zap.Error(err))
		msg.Nack()
		return
	}

	if payload.Kind == KindSlot {
		ing.applySlot(payload.Slot)
		msg.Ack()
		return
	}
	if payload.Kind != KindAccount {
		ing.logger.Debug("ignoring unhandled ingest message kind", zap.Int("kind", int(payload.Kind)))
		msg.Ack()
		return
	}

	pending := &pendingAccount{
		payload:    payload,
		receivedAt: time.Now(),
		outcome:    make(chan decodeOutcome, 1),
	}

	select {
	case ing.applyQueue <- pending:
	default:
		ing.logger.Error("ingest apply queue full, dropping account update",
			zap.String("account", payload.AccountPubkey.String()),
		)
		msg.Nack()
		return
	}

	err := ing.pool.Submit(func() {
		decoded, err := decode.DecodeAccount(payload.Owner, ing.targetProgram, payload.Data)
		pending.outcome <- decodeOutcome{decoded: decoded, err: err}
	})
	if err != nil {
		ing.logger.Error("failed to submit ingest message to worker pool", zap.Error(err))
		pending.outcome <- decodeOutcome{err: err}
		msg.Nack()
		return
	}
	msg.Ack()
}

// applyLoop is the single goroutine that ever calls DLOB.UpdateUser. It
// reads pending account updates in the exact order dispatch queued them,
// blocking on each one's decode outcome before moving to the next, so two
// updates for the same user always apply in receive order.
func (ing *Ingester) applyLoop(ctx context.Context) {
	defer ing.applyWg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case pending := <-ing.applyQueue:
			ing.applyPending(pending)
		}
	}
}

func (ing *Ingester) applyPending(pending *pendingAccount) {
	outcome := <-pending.outcome
	if outcome.err != nil {
		ing.logger.Warn("failed to decode account update",
			zap.String("account", pending.payload.AccountPubkey.String()),
			zap.Error(outcome.err),
		)
		return
	}
	if outcome.decoded.Kind != decode.AccountKindUser {
		return
	}

	ing.userMu.Lock()
	ing.userCache[pending.payload.AccountPubkey] = outcome.decoded.User
	ing.userMu.Unlock()

	ing.book.UpdateUser(pending.payload.AccountPubkey, outcome.decoded.User, ing.Slot())
	ing.metrics.ObserveIngestLatency(time.Since(pending.receivedAt))
}

func (ing *Ingester) applySlot(slot uint64) {
	for {
		current := atomic.LoadUint64(&ing.slot)
		if slot <= current {
			return
		}
		if atomic.CompareAndSwapUint64(&ing.slot, current, slot) {
			return
		}
	}
}

// Snapshot returns a copy of the user cache accumulated from individual
// account updates, for callers that want to rebuild the whole book from
// what ingest has observed so far rather than waiting on the next bulk
// snapshot fetch. It does not implement builder.Source (it carries no
// slot and no error).
func (ing *Ingester) Snapshot() map[dlobtypes.Pubkey]*dlobtypes.User {
	ing.userMu.Lock()
	defer ing.userMu.Unlock()

	out := make(map[dlobtypes.Pubkey]*dlobtypes.User, len(ing.userCache))
	for k, v := range ing.userCache {
		out[k] = v
	}
	return out
}
