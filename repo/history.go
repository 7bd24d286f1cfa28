package repo

import (
	"context"
	"time"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/store"
)

// CaseOutcome is one test case's execution result within a SearchHistory
// row.
type CaseOutcome struct {
	TestCaseID string `json:"test_case_id"`
	Output     string `json:"output"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
	Status     string `json:"status"`
}

// History mirrors spec §3's SearchHistory entity.
type History struct {
	ID            string
	Email         string
	Platform      string
	ProblemNumber string
	Title         string
	Code          string
	Public        bool
	Passed        int
	Failed        int
	Total         int
	Outcomes      []CaseOutcome
	Hints         []string
	CreatedAt     time.Time
}

// HistoryRepo is the typed repository for SearchHistory, with an
// optional GSI1 projection (PUBLIC#HIST) for the global public feed
// (invariant 3).
type HistoryRepo struct {
	s     store.Store
	clock func() time.Time
}

func NewHistoryRepo(s store.Store) *HistoryRepo {
	return &HistoryRepo{s: s, clock: time.Now}
}

// Create writes a new immutable history row. The row ID is derived from
// a microsecond clock reading (invariant 6); on a collision (extremely
// unlikely but possible under high per-user write concurrency) Create
// retries up to twice, bumping the reading by one microsecond each time.
func (r *HistoryRepo) Create(ctx context.Context, h *History) error {
	if h.Passed+h.Failed != h.Total {
		return errs.New(errs.KindValidation, "passed+failed must equal total")
	}
	now := r.clock().UTC()
	unixMicro := now.UnixMicro()

	for attempt := 0; attempt < 3; attempt++ {
		candidate := unixMicro + int64(attempt)
		h.ID = historySK(candidate)
		h.CreatedAt = time.UnixMicro(candidate).UTC()
		item := historyToItem(h)
		err := r.s.Put(ctx, item, store.ConditionNotExists())
		if err == nil {
			return nil
		}
		if !errs.Is(err, errs.KindPreconditionFailed) {
			return err
		}
	}
	return errs.New(errs.KindTransient, "history id collision exhausted retries")
}

// Get fetches a single history row by its composite identity.
func (r *HistoryRepo) Get(ctx context.Context, email, platform, problemNumber, historyID string) (*History, error) {
	item, err := r.s.Get(ctx, historyPK(email, platform, problemNumber), historyID)
	if err != nil {
		return nil, err
	}
	return itemToHistory(item), nil
}

// ListByUser lists a user's history for one problem, newest-first.
func (r *HistoryRepo) ListByUser(ctx context.Context, email, platform, problemNumber string, limit int, cursor string) ([]*History, string, error) {
	page, err := r.s.Query(ctx, historyPK(email, platform, problemNumber), "HIST#", true, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]*History, len(page.Items))
	for i, item := range page.Items {
		out[i] = itemToHistory(item)
	}
	return out, page.Cursor, nil
}

// ListPublicFeed returns the global public feed via GSI1, newest-first
// (scenario 5).
func (r *HistoryRepo) ListPublicFeed(ctx context.Context, limit int, cursor string) ([]*History, string, error) {
	page, err := r.s.QueryIndex(ctx, 1, publicHistoryGSI1PK, true, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]*History, len(page.Items))
	for i, item := range page.Items {
		out[i] = itemToHistory(item)
	}
	return out, page.Cursor, nil
}

// SetHints sets the hints field exactly once (§3: "immutable except for
// the hints field, set once"). A second call with hints already present
// is a no-op success, matching the idempotence contract for
// GenerateHints (§8).
func (r *HistoryRepo) SetHints(ctx context.Context, email, platform, problemNumber, historyID string, hints []string) error {
	item, err := r.s.Get(ctx, historyPK(email, platform, problemNumber), historyID)
	if err != nil {
		return err
	}
	if existing, ok := item.Data["hints"].([]any); ok && len(existing) > 0 {
		return nil
	}
	item.Data["hints"] = stringsToAny(hints)
	return r.s.Put(ctx, item, store.ConditionExists())
}

// SetPublic toggles the pub flag, adding/removing the GSI1 projection in
// the same write (invariant 3).
func (r *HistoryRepo) SetPublic(ctx context.Context, email, platform, problemNumber, historyID string, public bool) error {
	item, err := r.s.Get(ctx, historyPK(email, platform, problemNumber), historyID)
	if err != nil {
		return err
	}
	h := itemToHistory(item)
	h.Public = public
	return r.s.Put(ctx, historyToItem(h), store.ConditionExists())
}

func historyToItem(h *History) *store.Item {
	item := &store.Item{
		PK: historyPK(h.Email, h.Platform, h.ProblemNumber), SK: h.ID, Type: "search_history",
		Data: map[string]any{
			"platform": h.Platform, "problem_number": h.ProblemNumber, "title": h.Title,
			"code": h.Code, "pub": h.Public, "passed": h.Passed, "failed": h.Failed, "total": h.Total,
			"outcomes": outcomesToAny(h.Outcomes), "hints": stringsToAny(h.Hints),
		},
		Crt: h.CreatedAt.Unix(),
	}
	if h.Public {
		item.GSI1PK = publicHistoryGSI1PK
		item.GSI1SK = padUnix(h.CreatedAt.UnixNano())
	}
	return item
}

func itemToHistory(item *store.Item) *History {
	d := item.Data
	return &History{
		ID: item.SK, Email: historyEmailFromPK(item.PK),
		Platform: str(d["platform"]), ProblemNumber: str(d["problem_number"]), Title: str(d["title"]),
		Code: str(d["code"]), Public: boolean(d["pub"]),
		Passed: integer(d["passed"]), Failed: integer(d["failed"]), Total: integer(d["total"]),
		Outcomes:  anyToOutcomes(d["outcomes"]),
		Hints:     anyToStrings(d["hints"]),
		CreatedAt: time.Unix(item.Crt, 0).UTC(),
	}
}

func historyEmailFromPK(pk string) string {
	// PK shape: EMAIL#{email}#SHIST#{platform}#{problem_number}
	rest := pk[len("EMAIL#"):]
	for i := 0; i+6 <= len(rest); i++ {
		if rest[i:i+6] == "#SHIST" {
			return rest[:i]
		}
	}
	return rest
}

func outcomesToAny(o []CaseOutcome) []any {
	out := make([]any, len(o))
	for i, c := range o {
		out[i] = map[string]any{
			"test_case_id": c.TestCaseID, "output": c.Output, "passed": c.Passed,
			"error": c.Error, "status": c.Status,
		}
	}
	return out
}

func anyToOutcomes(v any) []CaseOutcome {
	raw, _ := v.([]any)
	out := make([]CaseOutcome, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, CaseOutcome{
			TestCaseID: str(m["test_case_id"]), Output: str(m["output"]), Passed: boolean(m["passed"]),
			Error: str(m["error"]), Status: str(m["status"]),
		})
	}
	return out
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func anyToStrings(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, str(item))
	}
	return out
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func anyToStringMap(v any) map[string]string {
	raw, _ := v.(map[string]any)
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		out[k] = str(val)
	}
	return out
}
