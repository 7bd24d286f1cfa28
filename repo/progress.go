package repo

import (
	"context"
	"time"

	"github.com/algojudge/corejudge/jobmodel"
	"github.com/algojudge/corejudge/store"
)

// ProgressRepo persists the append-only JobProgress rows (§3, §4.7).
// Rows are never updated or deleted except via DeleteJob (§4.6.6), so
// this repository exposes Append, List, and DeleteAll (for DeleteJob).
type ProgressRepo struct{ s store.Store }

func NewProgressRepo(s store.Store) *ProgressRepo { return &ProgressRepo{s: s} }

// Append writes a new progress row, keyed by the event's timestamp
// within the job's partition. Duplicate rows from a redelivered task
// are tolerated per §4.6's idempotence contract.
func (r *ProgressRepo) Append(ctx context.Context, e jobmodel.ProgressEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	item := &store.Item{
		PK: jobProgressPK(e.JobKind, e.JobID), SK: progressSK(e.Timestamp), Type: "job_progress",
		Data: map[string]any{
			"step": e.Step, "message": e.Message, "status": string(e.Status),
		},
		Crt: e.Timestamp.Unix(),
	}
	return r.s.Put(ctx, item, store.ConditionNone())
}

// List returns progress rows oldest-first for a job.
func (r *ProgressRepo) List(ctx context.Context, jobKind, jobID string, limit int, cursor string) ([]jobmodel.ProgressEvent, string, error) {
	page, err := r.s.Query(ctx, jobProgressPK(jobKind, jobID), "PROG#", false, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]jobmodel.ProgressEvent, len(page.Items))
	for i, item := range page.Items {
		out[i] = jobmodel.ProgressEvent{
			JobKind: jobKind, JobID: jobID,
			Step: str(item.Data["step"]), Message: str(item.Data["message"]),
			Status:    jobmodel.ProgressEventStatus(str(item.Data["status"])),
			Timestamp: time.Unix(item.Crt, 0).UTC(),
		}
	}
	return out, page.Cursor, nil
}

// DeleteAll removes every progress row for a job, used by DeleteJob
// (§4.6.6) so the job's children disappear in the same logical delete.
func (r *ProgressRepo) DeleteAll(ctx context.Context, jobKind, jobID string) error {
	cursor := ""
	for {
		page, err := r.s.Query(ctx, jobProgressPK(jobKind, jobID), "PROG#", false, 100, cursor)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := r.s.Delete(ctx, item.PK, item.SK, store.ConditionNone()); err != nil {
				return err
			}
		}
		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
}
