package repo

import (
	"context"
	"time"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/store"
)

// Problem mirrors spec §3's Problem entity.
type Problem struct {
	Platform       string
	ProblemID      string
	Title          string
	SourceURL      string
	Tags           []string
	SolutionB64    string
	Language       string
	Constraints    string
	Completed      bool
	Deleted        bool
	DeletedReason  string
	DeletedAt      *time.Time
	NeedsReview    bool
	Verified       bool
	TestCaseCount  int
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProblemRepo is the typed repository for Problem, indexed on
// completion status via GSI3 (sparse: PROB#COMPLETED | PROB#DRAFT).
type ProblemRepo struct{ s store.Store }

func NewProblemRepo(s store.Store) *ProblemRepo { return &ProblemRepo{s: s} }

func (r *ProblemRepo) Create(ctx context.Context, p *Problem) error {
	return r.s.Put(ctx, problemToItem(p), store.ConditionNotExists())
}

// Get returns the problem, or errs.KindNotFound if absent or
// soft-deleted — soft-deleted problems are unreachable from all read
// APIs per §9's Open Question resolution.
func (r *ProblemRepo) Get(ctx context.Context, platform, problemID string) (*Problem, error) {
	item, err := r.s.Get(ctx, problemPK(platform, problemID), "META")
	if err != nil {
		return nil, err
	}
	p := itemToProblem(item)
	if p.Deleted {
		return nil, errs.New(errs.KindNotFound, "problem soft-deleted")
	}
	return p, nil
}

// Update replaces the full problem record. Callers MUST set every
// indexed field (Completed) correctly; Update recomputes GSI3
// projection from it so no write ever leaves it stale (invariant 2).
func (r *ProblemRepo) Update(ctx context.Context, p *Problem) error {
	return r.s.Put(ctx, problemToItem(p), store.ConditionExists())
}

// SetTestCaseCount atomically-enough (read-modify-write under a
// condition) updates tcc after the test-case store finishes rewriting a
// problem's blob (invariant 1); callers should retry on precondition
// failure per §4.3.
func (r *ProblemRepo) SetTestCaseCount(ctx context.Context, platform, problemID string, count int) error {
	item, err := r.s.Get(ctx, problemPK(platform, problemID), "META")
	if err != nil {
		return err
	}
	prevStatus, _ := item.Data["completed"].(bool)
	item.Data["tcc"] = count
	return r.s.Put(ctx, item, store.ConditionAttrEquals("completed", prevStatus))
}

// MarkCompleted transitions a problem from draft to completed, rewriting
// GSI3PK in the same put per invariant 2.
func (r *ProblemRepo) MarkCompleted(ctx context.Context, platform, problemID string) error {
	p, err := r.Get(ctx, platform, problemID)
	if err != nil {
		return err
	}
	p.Completed = true
	p.UpdatedAt = time.Now().UTC()
	return r.Update(ctx, p)
}

// SoftDelete sets the deletion tombstone. Per §9's Open Question
// resolution there is no re-hydration workflow, so this is one-way.
func (r *ProblemRepo) SoftDelete(ctx context.Context, platform, problemID, reason string) error {
	item, err := r.s.Get(ctx, problemPK(platform, problemID), "META")
	if err != nil {
		return err
	}
	p := itemToProblem(item)
	p.Deleted = true
	p.DeletedReason = reason
	now := time.Now().UTC()
	p.DeletedAt = &now
	return r.Update(ctx, p)
}

// ListByStatus returns problems newest-first via GSI3 (§4.1: "reading
// the index in descending range").
func (r *ProblemRepo) ListByStatus(ctx context.Context, completed bool, limit int, cursor string) ([]*Problem, string, error) {
	page, err := r.s.QueryIndex(ctx, 3, problemStatusGSI(completed), true, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]*Problem, 0, len(page.Items))
	for _, item := range page.Items {
		p := itemToProblem(item)
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out, page.Cursor, nil
}

func problemToItem(p *Problem) *store.Item {
	data := map[string]any{
		"title": p.Title, "source_url": p.SourceURL, "tags": stringsToAny(p.Tags),
		"solution_b64": p.SolutionB64, "language": p.Language, "constraints": p.Constraints,
		"completed": p.Completed, "deleted": p.Deleted, "deleted_reason": p.DeletedReason,
		"needs_review": p.NeedsReview, "verified": p.Verified, "tcc": p.TestCaseCount,
		"metadata": stringMapToAny(p.Metadata),
	}
	if p.DeletedAt != nil {
		data["deleted_at"] = p.DeletedAt.Unix()
	}
	item := &store.Item{
		PK: problemPK(p.Platform, p.ProblemID), SK: "META", Type: "problem",
		Data: data,
		Crt:  p.CreatedAt.Unix(),
	}
	if !p.Deleted {
		item.GSI3PK = problemStatusGSI(p.Completed)
		ts := p.UpdatedAt
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		item.GSI3SK = padTimestamp(ts)
	}
	return item
}

func itemToProblem(item *store.Item) *Problem {
	d := item.Data
	platform, problemID := splitProblemPK(item.PK)
	tagStrs := anyToStrings(d["tags"])
	metaStrs := anyToStringMap(d["metadata"])
	p := &Problem{
		Platform: platform, ProblemID: problemID,
		Title: str(d["title"]), SourceURL: str(d["source_url"]), Tags: tagStrs,
		SolutionB64: str(d["solution_b64"]), Language: str(d["language"]), Constraints: str(d["constraints"]),
		Completed: boolean(d["completed"]), Deleted: boolean(d["deleted"]), DeletedReason: str(d["deleted_reason"]),
		NeedsReview: boolean(d["needs_review"]), Verified: boolean(d["verified"]), TestCaseCount: integer(d["tcc"]),
		Metadata:  metaStrs,
		CreatedAt: time.Unix(item.Crt, 0).UTC(),
		UpdatedAt: time.Unix(item.Upd, 0).UTC(),
	}
	if ts, ok := d["deleted_at"]; ok {
		t := time.Unix(int64(integer(ts)), 0).UTC()
		p.DeletedAt = &t
	}
	return p
}

func splitProblemPK(pk string) (platform, problemID string) {
	// PK shape: PROB#{platform}#{problem_id}
	rest := pk[len("PROB#"):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '#' {
			return rest[:i], rest[i+1:]
		}
	}
	return rest, ""
}
