package apicontract

// PlanInfo is one Subscription Plan row (§3), with -1 quotas meaning
// unlimited (see repo.Unlimited).
type PlanInfo struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	MaxHintsPerDay      int    `json:"max_hints_per_day"`
	MaxExecutionsPerDay int    `json:"max_executions_per_day"`
	MaxProblems         int    `json:"max_problems"`
	CanViewAll          bool   `json:"can_view_all"`
	CanRegister         bool   `json:"can_register"`
}

// PlansListResponse lists every Subscription Plan an account may hold.
type PlansListResponse struct {
	Plans []PlanInfo `json:"plans"`
}
