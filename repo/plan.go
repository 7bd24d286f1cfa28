package repo

import (
	"context"

	"github.com/algojudge/corejudge/store"
)

// Plan mirrors spec §3's Subscription Plan entity. -1 denotes an
// unlimited quota.
type Plan struct {
	ID                     string
	Name                   string
	MaxHintsPerDay         int
	MaxExecutionsPerDay    int
	MaxProblems            int
	CanViewAll             bool
	CanRegister            bool
	// ExecutionTimeoutSeconds bounds each ExecuteSubmission runner call
	// (§4.6.4: "timeout from plan or default 5s"). Zero means the
	// default applies.
	ExecutionTimeoutSeconds int
}

// Unlimited is the sentinel quota value meaning "no limit".
const Unlimited = -1

// PlanRepo is the typed repository for Plan. Plans are created once and
// read frequently on the rate-limit hot path, so lookups are plain
// Get(planID) — no secondary index is needed.
type PlanRepo struct{ s store.Store }

func NewPlanRepo(s store.Store) *PlanRepo { return &PlanRepo{s: s} }

func (r *PlanRepo) Create(ctx context.Context, p *Plan) error {
	return r.s.Put(ctx, planToItem(p), store.ConditionNotExists())
}

func (r *PlanRepo) Get(ctx context.Context, id string) (*Plan, error) {
	item, err := r.s.Get(ctx, planPK(id), "META")
	if err != nil {
		return nil, err
	}
	return itemToPlan(item), nil
}

func (r *PlanRepo) Update(ctx context.Context, p *Plan) error {
	return r.s.Put(ctx, planToItem(p), store.ConditionExists())
}

func planToItem(p *Plan) *store.Item {
	return &store.Item{
		PK: planPK(p.ID), SK: "META", Type: "plan",
		Data: map[string]any{
			"name":                   p.Name,
			"max_hints_per_day":      p.MaxHintsPerDay,
			"max_executions_per_day": p.MaxExecutionsPerDay,
			"max_problems":           p.MaxProblems,
			"can_view_all":           p.CanViewAll,
			"can_register":           p.CanRegister,
			"execution_timeout_sec":  p.ExecutionTimeoutSeconds,
		},
	}
}

func itemToPlan(item *store.Item) *Plan {
	d := item.Data
	return &Plan{
		ID:                      item.PK[len("PLAN#"):],
		Name:                    str(d["name"]),
		MaxHintsPerDay:          integer(d["max_hints_per_day"]),
		MaxExecutionsPerDay:     integer(d["max_executions_per_day"]),
		MaxProblems:             integer(d["max_problems"]),
		CanViewAll:              boolean(d["can_view_all"]),
		CanRegister:             boolean(d["can_register"]),
		ExecutionTimeoutSeconds: integer(d["execution_timeout_sec"]),
	}
}

func integer(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
