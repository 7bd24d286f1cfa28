package repo

import (
	"context"
	"time"

	"github.com/algojudge/corejudge/jobmodel"
	"github.com/algojudge/corejudge/store"
)

// ProblemExtractionJob mirrors spec §3's ProblemExtractionJob entity.
type ProblemExtractionJob struct {
	ID                string
	Platform          string
	URL               string
	ProblemIdentifier string
	Status            jobmodel.Status
	BrokerTaskID      string
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProblemExtractionJobRepo is the typed repository for
// ProblemExtractionJob, indexed on status via GSI1.
type ProblemExtractionJobRepo struct{ s store.Store }

func NewProblemExtractionJobRepo(s store.Store) *ProblemExtractionJobRepo {
	return &ProblemExtractionJobRepo{s: s}
}

func (r *ProblemExtractionJobRepo) Create(ctx context.Context, j *ProblemExtractionJob) error {
	if j.Status == "" {
		j.Status = jobmodel.StatusPending
	}
	return r.s.Put(ctx, extractionJobToItem(j), store.ConditionNotExists())
}

func (r *ProblemExtractionJobRepo) Get(ctx context.Context, id string) (*ProblemExtractionJob, error) {
	item, err := r.s.Get(ctx, extractionJobPK(id), "META")
	if err != nil {
		return nil, err
	}
	return itemToExtractionJob(item), nil
}

func (r *ProblemExtractionJobRepo) TransitionStatus(ctx context.Context, id string, from, to jobmodel.Status, errMsg string) error {
	item, err := r.s.Get(ctx, extractionJobPK(id), "META")
	if err != nil {
		return err
	}
	j := itemToExtractionJob(item)
	j.Status = to
	j.Error = errMsg
	j.UpdatedAt = time.Now().UTC()
	return r.s.Put(ctx, extractionJobToItem(j), store.ConditionAttrEquals("status", string(from)))
}

func (r *ProblemExtractionJobRepo) Update(ctx context.Context, j *ProblemExtractionJob) error {
	return r.s.Put(ctx, extractionJobToItem(j), store.ConditionExists())
}

func (r *ProblemExtractionJobRepo) Delete(ctx context.Context, id string) error {
	return r.s.Delete(ctx, extractionJobPK(id), "META", store.ConditionNone())
}

func (r *ProblemExtractionJobRepo) ListByStatus(ctx context.Context, status jobmodel.Status, limit int, cursor string) ([]*ProblemExtractionJob, string, error) {
	page, err := r.s.QueryIndex(ctx, 1, extractionJobStatusGSI(string(status)), false, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]*ProblemExtractionJob, len(page.Items))
	for i, item := range page.Items {
		out[i] = itemToExtractionJob(item)
	}
	return out, page.Cursor, nil
}

func extractionJobToItem(j *ProblemExtractionJob) *store.Item {
	ts := j.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &store.Item{
		PK: extractionJobPK(j.ID), SK: "META", Type: "problem_extraction_job",
		Data: map[string]any{
			"platform": j.Platform, "url": j.URL, "problem_identifier": j.ProblemIdentifier,
			"status": string(j.Status), "broker_task_id": j.BrokerTaskID, "error": j.Error,
		},
		Crt:    j.CreatedAt.Unix(),
		GSI1PK: extractionJobStatusGSI(string(j.Status)),
		GSI1SK: padTimestamp(ts),
	}
}

func itemToExtractionJob(item *store.Item) *ProblemExtractionJob {
	d := item.Data
	return &ProblemExtractionJob{
		ID:                item.PK[len("PEJOB#"):],
		Platform:          str(d["platform"]),
		URL:               str(d["url"]),
		ProblemIdentifier: str(d["problem_identifier"]),
		Status:            jobmodel.Status(str(d["status"])),
		BrokerTaskID:      str(d["broker_task_id"]),
		Error:             str(d["error"]),
		CreatedAt:         time.Unix(item.Crt, 0).UTC(),
		UpdatedAt:         time.Unix(item.Upd, 0).UTC(),
	}
}
