// Package ratelimit implements the per-(user, action, day) quota check
// (C3), the hot-path gate in front of every hint or execution request.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/clock"
	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/ledger"
	"github.com/algojudge/corejudge/repo"
)

// Decision is the result of a rate-limit check.
type Decision struct {
	Allowed      bool
	CurrentCount int64
	Limit        int
	// Reset is the UTC instant the quota resets (next UTC midnight),
	// populated whenever Allowed is false.
	Reset time.Time
}

// Limiter checks per-(user, action, day) quotas against plan limits
// (§4.2). It does not itself log usage; callers append to the ledger
// after a successful allow, per the data-flow in §2.
type Limiter struct {
	ledger *ledger.RedisLedger
	plans  *repo.PlanRepo
	clock  clock.Clock
	logger *zap.Logger
}

func New(l *ledger.RedisLedger, plans *repo.PlanRepo, c clock.Clock, logger *zap.Logger) *Limiter {
	return &Limiter{ledger: l, plans: plans, clock: c, logger: logger}
}

// Check performs the §4.2 steps 1-4: resolve today's UTC date, look up
// the cached/queried count, compare against the user's plan quota for
// action, and return a Decision. It never issues a count query when the
// plan quota is unlimited (-1).
func (r *Limiter) Check(ctx context.Context, userID, planID string, action ledger.Action) (Decision, error) {
	plan, err := r.plans.Get(ctx, planID)
	if err != nil {
		return Decision{}, errs.Wrap(errs.KindTransient, "resolve plan for rate limit check", err)
	}

	limit := quotaFor(plan, action)
	now := r.clock.Now().UTC()
	date := now.Format("20060102")
	reset := nextUTCMidnight(now)

	if limit == repo.Unlimited {
		return Decision{Allowed: true, Limit: limit, CurrentCount: -1}, nil
	}

	if limit == 0 {
		return Decision{Allowed: false, Limit: 0, CurrentCount: 0, Reset: reset}, nil
	}

	count, err := r.ledger.Count(ctx, userID, action, date)
	if err != nil {
		r.logger.Error("rate limit count query failed", zap.String("user_id", userID), zap.Error(err))
		return Decision{}, err
	}

	if count >= int64(limit) {
		r.ledger.CacheAtLimit(userID, action, date, count)
		return Decision{Allowed: false, CurrentCount: count, Limit: limit, Reset: reset}, nil
	}

	return Decision{Allowed: true, CurrentCount: count, Limit: limit}, nil
}

func quotaFor(p *repo.Plan, action ledger.Action) int {
	switch action {
	case ledger.ActionHint:
		return p.MaxHintsPerDay
	case ledger.ActionExecution:
		return p.MaxExecutionsPerDay
	default:
		return 0
	}
}

func nextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
