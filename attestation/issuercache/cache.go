// Package issuercache maintains a time-bounded view of the identities
// currently authorized to issue attestations. Reads are lock-free once the
// cache is populated; concurrent refreshes of a cold or expired cache
// collapse into a single outstanding ledger call.
package issuercache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-attestation-verifier/attestation/ledger"
)

// DefaultTTL bounds how long a fetched issuer set is considered fresh.
const DefaultTTL = 5 * time.Minute

// State is the cache lifecycle state, reported for observability.
type State uint8

const (
	StateEmpty State = iota
	StateFresh
	StateStale
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// RefreshError reports a failed refresh with no cached set to fall back on.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("authorized issuer set unavailable: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// snapshot is an immutable issuer set plus its fetch time. Snapshots are
// replaced atomically; callers must not mutate the returned map.
type snapshot struct {
	issuers   map[common.Address]struct{}
	fetchedAt time.Time
}

// Cache holds the current trusted-issuer set with a time-to-live.
type Cache struct {
	source     ledger.IssuerSource
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
	current    atomic.Pointer[snapshot]
	flight     singleflight.Group
	refreshing atomic.Bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger installs a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache over the given issuer source. The cache starts empty;
// the first Get triggers a refresh.
func New(source ledger.IssuerSource, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the authorized issuer set. A fresh cached set is returned
// without touching the ledger unless forceRefresh is set. When a refresh
// fails and a previous set exists, the stale set is served with a logged
// warning; a cold-cache failure returns a RefreshError.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (map[common.Address]struct{}, error) {
	if !forceRefresh {
		if snap := c.current.Load(); snap != nil && c.fresh(snap) {
			return snap.issuers, nil
		}
	}

	v, err, _ := c.flight.Do("issuers", func() (interface{}, error) {
		c.refreshing.Store(true)
		defer c.refreshing.Store(false)

		// A refresh may have completed while this caller queued.
		if !forceRefresh {
			if snap := c.current.Load(); snap != nil && c.fresh(snap) {
				return snap.issuers, nil
			}
		}

		issuers, err := c.source.ListAuthorizedIssuers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list authorized issuers: %w", err)
		}

		set := lo.SliceToMap(issuers, func(a common.Address) (common.Address, struct{}) {
			return a, struct{}{}
		})
		c.current.Store(&snapshot{issuers: set, fetchedAt: c.now()})

		c.logger.Debug("authorized issuer set refreshed", zap.Int("issuers", len(set)))
		return set, nil
	})
	if err != nil {
		if snap := c.current.Load(); snap != nil {
			c.logger.Warn("issuer refresh failed; serving stale set",
				zap.Error(err),
				zap.Time("fetchedAt", snap.fetchedAt))
			return snap.issuers, nil
		}
		return nil, &RefreshError{Err: err}
	}

	return v.(map[common.Address]struct{}), nil
}

// Invalidate drops the cached set so the next Get refreshes.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// State reports the current lifecycle state.
func (c *Cache) State() State {
	if c.refreshing.Load() {
		return StateRefreshing
	}
	snap := c.current.Load()
	if snap == nil {
		return StateEmpty
	}
	if c.fresh(snap) {
		return StateFresh
	}
	return StateStale
}

func (c *Cache) fresh(snap *snapshot) bool {
	return c.now().Sub(snap.fetchedAt) < c.ttl
}
