package repo

import (
	"context"
	"time"

	"github.com/algojudge/corejudge/jobmodel"
	"github.com/algojudge/corejudge/store"
)

// ScriptGenerationJob mirrors spec §3's ScriptGenerationJob entity.
type ScriptGenerationJob struct {
	ID            string
	Platform      string
	ProblemID     string
	Title         string
	URL           string
	Tags          []string
	Language      string
	Constraints   string
	GeneratorCode string
	Status        jobmodel.Status
	BrokerTaskID  string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScriptGenerationJobRepo is the typed repository for
// ScriptGenerationJob, indexed on status via GSI1.
type ScriptGenerationJobRepo struct{ s store.Store }

func NewScriptGenerationJobRepo(s store.Store) *ScriptGenerationJobRepo {
	return &ScriptGenerationJobRepo{s: s}
}

func (r *ScriptGenerationJobRepo) Create(ctx context.Context, j *ScriptGenerationJob) error {
	if j.Status == "" {
		j.Status = jobmodel.StatusPending
	}
	return r.s.Put(ctx, scriptJobToItem(j), store.ConditionNotExists())
}

func (r *ScriptGenerationJobRepo) Get(ctx context.Context, id string) (*ScriptGenerationJob, error) {
	item, err := r.s.Get(ctx, scriptJobPK(id), "META")
	if err != nil {
		return nil, err
	}
	return itemToScriptJob(item), nil
}

// TransitionStatus performs the §4.7 conditional state transition:
// it succeeds only if the job is currently in from; a precondition
// failure propagates to the caller so a racing worker's attempt aborts
// without mutation.
func (r *ScriptGenerationJobRepo) TransitionStatus(ctx context.Context, id string, from, to jobmodel.Status, errMsg string) error {
	item, err := r.s.Get(ctx, scriptJobPK(id), "META")
	if err != nil {
		return err
	}
	j := itemToScriptJob(item)
	j.Status = to
	j.Error = errMsg
	j.UpdatedAt = time.Now().UTC()
	return r.s.Put(ctx, scriptJobToItem(j), store.ConditionAttrEquals("status", string(from)))
}

func (r *ScriptGenerationJobRepo) Update(ctx context.Context, j *ScriptGenerationJob) error {
	return r.s.Put(ctx, scriptJobToItem(j), store.ConditionExists())
}

func (r *ScriptGenerationJobRepo) Delete(ctx context.Context, id string) error {
	return r.s.Delete(ctx, scriptJobPK(id), "META", store.ConditionNone())
}

func (r *ScriptGenerationJobRepo) ListByStatus(ctx context.Context, status jobmodel.Status, limit int, cursor string) ([]*ScriptGenerationJob, string, error) {
	page, err := r.s.QueryIndex(ctx, 1, scriptJobStatusGSI(string(status)), false, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]*ScriptGenerationJob, len(page.Items))
	for i, item := range page.Items {
		out[i] = itemToScriptJob(item)
	}
	return out, page.Cursor, nil
}

func scriptJobToItem(j *ScriptGenerationJob) *store.Item {
	ts := j.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &store.Item{
		PK: scriptJobPK(j.ID), SK: "META", Type: "script_generation_job",
		Data: map[string]any{
			"platform": j.Platform, "problem_id": j.ProblemID, "title": j.Title, "url": j.URL,
			"tags": stringsToAny(j.Tags), "language": j.Language, "constraints": j.Constraints,
			"generator_code": j.GeneratorCode, "status": string(j.Status),
			"broker_task_id": j.BrokerTaskID, "error": j.Error,
		},
		Crt:    j.CreatedAt.Unix(),
		GSI1PK: scriptJobStatusGSI(string(j.Status)),
		GSI1SK: padTimestamp(ts),
	}
}

func itemToScriptJob(item *store.Item) *ScriptGenerationJob {
	d := item.Data
	return &ScriptGenerationJob{
		ID: item.PK[len("SGJOB#"):],
		Platform: str(d["platform"]), ProblemID: str(d["problem_id"]), Title: str(d["title"]), URL: str(d["url"]),
		Tags: anyToStrings(d["tags"]), Language: str(d["language"]), Constraints: str(d["constraints"]),
		GeneratorCode: str(d["generator_code"]), Status: jobmodel.Status(str(d["status"])),
		BrokerTaskID: str(d["broker_task_id"]), Error: str(d["error"]),
		CreatedAt: time.Unix(item.Crt, 0).UTC(), UpdatedAt: time.Unix(item.Upd, 0).UTC(),
	}
}
