package tasks

import (
	"context"
	"encoding/json"

	"github.com/algojudge/corejudge/errs"
)

// DeleteJobPayload is the §4.6.6 task input. Kind distinguishes which
// job repository owns JobID, since extraction and script-generation
// jobs live in separate tables.
type DeleteJobPayload struct {
	JobID string `json:"job_id"`
	Kind  string `json:"kind"`
}

const (
	jobKindExtraction = "extraction"
	jobKindScript     = "script_generation"
)

// DeleteJob removes an admin-deleted job record and every progress row
// attached to it (§4.6.6: "deletes the job item and all its progress
// children in a single conditional batch"). Deleting the job first and
// the progress rows second would leave orphaned progress rows visible
// under a job ID that no longer resolves, so progress is dropped first.
func (d *Deps) DeleteJob(ctx context.Context, payload []byte) error {
	var in DeleteJobPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return errs.Wrap(errs.KindValidation, "decode delete_job payload", err)
	}

	if err := d.Progress.DeleteAll(ctx, in.Kind, in.JobID); err != nil {
		return err
	}

	switch in.Kind {
	case jobKindExtraction:
		return d.ExtractionJobs.Delete(ctx, in.JobID)
	case jobKindScript:
		return d.ScriptJobs.Delete(ctx, in.JobID)
	default:
		return errs.New(errs.KindValidation, "unknown job kind: "+in.Kind)
	}
}
