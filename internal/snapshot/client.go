// Package snapshot fetches the full program-account set used for the
// DLOB's initial and periodic wholesale rebuilds, guarding the call with
// a circuit breaker the way the teacher's resilience package wraps
// external calls.
package snapshot

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/dlob-go/internal/decode"
	"github.com/abdoElHodaky/dlob-go/internal/dlobtypes"
	dlerrors "github.com/abdoElHodaky/dlob-go/pkg/errors"
)

// RawAccount is one account record as returned by a get_program_accounts
// style bulk RPC call, before discriminator decode.
type RawAccount struct {
	Pubkey dlobtypes.Pubkey
	Owner  dlobtypes.Pubkey
	Data   []byte
}

// AccountsFetcher is the external RPC surface this package wraps. The
// concrete implementation (an RPC client) is injected so this package
// never depends on a particular chain SDK.
type AccountsFetcher interface {
	FetchProgramAccounts(ctx context.Context, programID dlobtypes.Pubkey) ([]RawAccount, uint64, error)
}

// LatencyRecorder receives the duration of one Fetch call. An interface
// for the same reason dlob.MetricsSink is one: keeps internal/metrics
// from having to be imported here.
type LatencyRecorder interface {
	ObserveSnapshotLatency(time.Duration)
}

type noopLatencyRecorder struct{}

func (noopLatencyRecorder) ObserveSnapshotLatency(time.Duration) {}

// Client wraps an AccountsFetcher with a circuit breaker and decodes the
// result into the map BuildFromUserMap expects, satisfying
// internal/builder.Source.
type Client struct {
	fetcher   AccountsFetcher
	programID dlobtypes.Pubkey
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker
	metrics   LatencyRecorder
	logger    *zap.Logger
}

// Settings configures the circuit breaker guarding the bulk fetch.
type Settings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// New creates a Client. programID is the on-chain program whose accounts
// are being mirrored; fetchTimeout bounds each individual fetch call.
func New(fetcher AccountsFetcher, programID dlobtypes.Pubkey, fetchTimeout time.Duration, settings Settings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cbSettings := gobreaker.Settings{
		Name:        "dlob-snapshot",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("snapshot circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		fetcher:   fetcher,
		programID: programID,
		timeout:   fetchTimeout,
		breaker:   gobreaker.NewCircuitBreaker(cbSettings),
		metrics:   noopLatencyRecorder{},
		logger:    logger,
	}
}

// WithMetrics attaches a LatencyRecorder that receives Fetch durations.
// Returns the Client for chaining at construction time.
func (c *Client) WithMetrics(rec LatencyRecorder) *Client {
	if rec == nil {
		rec = noopLatencyRecorder{}
	}
	c.metrics = rec
	return c
}

// snapshotResult bundles the two values the breaker's Execute must
// return as a single interface{}.
type snapshotResult struct {
	accounts []RawAccount
	slot     uint64
}

// Fetch calls the wrapped fetcher through the circuit breaker and decodes
// every returned account into a user map, skipping non-User accounts per
// decode.DecodeAccount's documented decode-skip behavior. It implements
// internal/builder.Source.
func (c *Client) Fetch(ctx context.Context) (map[dlobtypes.Pubkey]*dlobtypes.User, uint64, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveSnapshotLatency(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		accounts, slot, err := c.fetcher.FetchProgramAccounts(ctx, c.programID)
		if err != nil {
			return nil, err
		}
		return snapshotResult{accounts: accounts, slot: slot}, nil
	})
	if err != nil {
		return nil, 0, dlerrors.New(dlerrors.ErrSnapshotFailed, "program accounts fetch failed").WithCause(err)
	}

	sr := result.(snapshotResult)
	users := make(map[dlobtypes.Pubkey]*dlobtypes.User, len(sr.accounts))

	skipped := 0
	for _, raw := range sr.accounts {
		decoded, err := decode.DecodeAccount(raw.Owner, c.programID, raw.Data)
		if err != nil {
			c.logger.Warn("skipping malformed account in snapshot",
				zap.String("account", raw.Pubkey.String()),
				zap.Error(err),
			)
			continue
		}
		if decoded.Kind != decode.AccountKindUser {
			skipped++
			continue
		}
		users[raw.Pubkey] = decoded.User
	}

	c.logger.Debug("snapshot fetched",
		zap.Uint64("slot", sr.slot),
		zap.Int("users", len(users)),
		zap.Int("skipped", skipped),
	)
	return users, sr.slot, nil
}
