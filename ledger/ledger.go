// Package ledger implements the date-partitioned usage log (C2): an
// append-only log of hint/execution actions with O(1) count queries and
// short-TTL caching, consumed by the rate limiter on the hot path.
//
// Follows the same get-or-miss-then-store shape as a Redis-backed
// response cache, and the same Redis sorted-set indexing technique a
// task store would use for ordered listings, repurposed here for
// date-partitioned counts.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/clock"
	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/store"
)

// Action is the usage-log action kind (§3).
type Action string

const (
	ActionHint      Action = "hint"
	ActionExecution Action = "execution"
)

// entryTTL is how long a UsageLog item survives before the store may
// reclaim it (§3 invariant: ttl = crt + 90*86400).
const entryTTL = 90 * 24 * time.Hour

// cache TTL tiers from §4.2 step 2.
const (
	negativeCacheTTL  = 60 * time.Second // no usage logged yet today
	positiveCacheTTL  = 30 * time.Second // under quota
	atLimitCacheTTL   = 5 * time.Second  // at or over quota
)

// Ledger is the usage ledger's public contract.
type Ledger interface {
	// Count returns the number of actions a user has logged for date
	// (as YYYYMMDD, UTC), using the cached-count semantics of §4.2.
	Count(ctx context.Context, userID string, action Action, date string) (int64, error)

	// Append records a new usage event, fire-and-forget per §4.2's
	// contract ("failure to log MUST NOT block the user action").
	// Append never returns an error to a caller that doesn't check it;
	// callers that do check it get the real error for observability.
	Append(ctx context.Context, userID string, action Action, problemRef string, metadata map[string]string) error
}

type cacheEntry struct {
	count     int64
	expiresAt time.Time
}

// RedisLedger is the production Ledger, backed by the Store's base-table
// CountPK and a small in-process cache for the short-TTL semantics in
// §4.2. A single RedisLedger instance is meant to be a process-wide
// singleton (§6); the cache is local to the process, which is
// acceptable because §4.2 only requires the rate limiter to observe
// writes from at most T_cache ago, not global cache coherence.
type RedisLedger struct {
	store  store.Store
	clock  clock.Clock
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewRedisLedger(s store.Store, c clock.Clock, logger *zap.Logger) *RedisLedger {
	return &RedisLedger{store: s, clock: c, logger: logger, cache: make(map[string]cacheEntry)}
}

func cacheKey(userID string, action Action, date string) string {
	return userID + "|" + string(action) + "|" + date
}

func (l *RedisLedger) Count(ctx context.Context, userID string, action Action, date string) (int64, error) {
	key := cacheKey(userID, action, date)
	now := l.clock.Now()

	l.mu.Lock()
	if entry, ok := l.cache[key]; ok && now.Before(entry.expiresAt) {
		l.mu.Unlock()
		return entry.count, nil
	}
	l.mu.Unlock()

	pk := usageLogPK(userID, date)
	count, err := l.store.CountPK(ctx, pk)
	if err != nil {
		return 0, errs.Wrap(errs.KindTransient, "count usage log partition", err)
	}

	l.cacheCount(key, count, now, 0)
	return count, nil
}

// cacheCount stores count with a TTL chosen by the caller's knowledge of
// the quota comparison (ttl==0 means "decide from count alone": zero
// means negative-cache, else positive-cache). The rate limiter calls
// CacheAtLimit after comparing against quota to pick the precise
// at-limit tier.
func (l *RedisLedger) cacheCount(key string, count int64, now time.Time, ttl time.Duration) {
	if ttl == 0 {
		if count == 0 {
			ttl = negativeCacheTTL
		} else {
			ttl = positiveCacheTTL
		}
	}
	l.mu.Lock()
	l.cache[key] = cacheEntry{count: count, expiresAt: now.Add(ttl)}
	l.mu.Unlock()
}

// CacheAtLimit lets the rate limiter shrink the cache TTL to the 5s
// at-limit tier once it knows count has reached the user's quota,
// without this package needing to know about plans.
func (l *RedisLedger) CacheAtLimit(userID string, action Action, date string, count int64) {
	l.cacheCount(cacheKey(userID, action, date), count, l.clock.Now(), atLimitCacheTTL)
}

// IncrementCached proactively bumps the cached count after a successful
// Append, per §4.2: "Implementations MAY proactively increment the
// cached count" — this keeps the very next Count call (e.g. a second
// rapid request from the same user) consistent without another store
// round-trip.
func (l *RedisLedger) IncrementCached(userID string, action Action, date string) {
	key := cacheKey(userID, action, date)
	now := l.clock.Now()
	l.mu.Lock()
	entry, ok := l.cache[key]
	if ok && now.Before(entry.expiresAt) {
		entry.count++
		l.cache[key] = entry
	}
	l.mu.Unlock()
}

func (l *RedisLedger) Append(ctx context.Context, userID string, action Action, problemRef string, metadata map[string]string) error {
	now := l.clock.Now().UTC()
	date := now.Format("20060102")
	item := &store.Item{
		PK: usageLogPK(userID, date), SK: usageLogSK(now.Unix(), string(action)),
		Type: "usage_log",
		Data: map[string]any{
			"action": string(action), "problem_ref": problemRef, "metadata": stringMapToAny(metadata),
		},
		Crt: now.Unix(),
		TTL: now.Add(entryTTL).Unix(),
	}

	err := l.store.Put(ctx, item, store.ConditionNone())
	if err != nil {
		l.logger.Warn("usage log append failed; not surfaced to caller",
			zap.String("user_id", userID), zap.String("action", string(action)), zap.Error(err))
		return err
	}

	l.IncrementCached(userID, action, date)
	return nil
}

func usageLogPK(userID, date string) string { return "USR#" + userID + "#ULOG#" + date }
func usageLogSK(unixTS int64, action string) string {
	return fmt.Sprintf("ULOG#%020d#%s", unixTS, action)
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
