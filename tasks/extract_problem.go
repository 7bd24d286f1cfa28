package tasks

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/jobmodel"
	"github.com/algojudge/corejudge/repo"
	"github.com/algojudge/corejudge/webfetch"
)

// ExtractProblemPayload is the §4.6.1 task input.
type ExtractProblemPayload struct {
	JobID             string `json:"job_id"`
	Platform          string `json:"platform"`
	URL               string `json:"url"`
	ProblemIdentifier string `json:"problem_identifier"`
}

const extractProblemJobKind = "extraction"

// ExtractProblem fetches the source page, extracts metadata via the LLM
// Gateway, and writes a Problem draft (§4.6.1). A platform-scoped
// semaphore caps concurrent fetches to respect source-site politeness.
func (d *Deps) ExtractProblem(ctx context.Context, payload []byte) error {
	var in ExtractProblemPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return errs.Wrap(errs.KindValidation, "decode extract_problem payload", err)
	}

	sem := d.semaphoreFor(in.Platform)
	if err := sem.Acquire(ctx, 1); err != nil {
		return errs.Wrap(errs.KindTransient, "acquire platform semaphore", err)
	}
	defer sem.Release(1)

	if err := d.ExtractionJobs.TransitionStatus(ctx, in.JobID, jobmodel.StatusPending, jobmodel.StatusProcessing, ""); err != nil {
		if errs.Is(err, errs.KindPreconditionFailed) {
			// Another worker already advanced this job; abort without
			// mutation per §4.7.
			return nil
		}
		return err
	}
	d.progress(ctx, in.JobID, "fetch", "fetching source page", jobmodel.EventStarted)

	html, err := d.Fetcher.Fetch(ctx, in.Platform, in.URL)
	if err != nil {
		return d.failExtraction(ctx, in.JobID, "fetch source page", err)
	}
	d.progress(ctx, in.JobID, "fetch", "fetched source page", jobmodel.EventCompleted)

	text, err := webfetch.ExtractText(html)
	if err != nil {
		return d.failExtraction(ctx, in.JobID, "extract page text", err)
	}

	d.progress(ctx, in.JobID, "extract_metadata", "calling llm to extract metadata", jobmodel.EventStarted)
	meta, err := d.Gateway.ExtractMetadata(ctx, d.LLMProvider, text, []string{in.ProblemIdentifier})
	if err != nil {
		return d.failExtraction(ctx, in.JobID, "extract metadata via llm", err)
	}
	d.progress(ctx, in.JobID, "extract_metadata", "extracted metadata", jobmodel.EventCompleted)

	err = d.Problems.Create(ctx, &repo.Problem{
		Platform: in.Platform, ProblemID: in.ProblemIdentifier,
		Title: meta.Title, SourceURL: in.URL, Tags: meta.Tags,
		Language: meta.Language, Constraints: meta.Constraints,
		Completed: false, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil && !errs.Is(err, errs.KindPreconditionFailed) {
		return d.failExtraction(ctx, in.JobID, "write problem draft", err)
	}

	if err := d.ExtractionJobs.TransitionStatus(ctx, in.JobID, jobmodel.StatusProcessing, jobmodel.StatusCompleted, ""); err != nil && !errs.Is(err, errs.KindPreconditionFailed) {
		return err
	}
	d.progress(ctx, in.JobID, "complete", "problem draft written", jobmodel.EventCompleted)
	return nil
}

// failExtraction persists the error text on the job and marks it FAILED
// (§4.6.1: "Fails terminally after 3 attempts; persists error text").
// It returns a non-retryable error so the worker pool does not retry a
// job already marked FAILED here; ExtractProblem's own 3-attempt policy
// lives at the workerpool registration, not inside this function.
func (d *Deps) failExtraction(ctx context.Context, jobID, step string, cause error) error {
	d.Logger.Error("extract_problem step failed", zap.String("job_id", jobID), zap.String("step", step), zap.Error(cause))
	d.progress(ctx, jobID, step, cause.Error(), jobmodel.EventFailed)
	if errs.IsRetryable(cause) {
		return cause
	}
	_ = d.ExtractionJobs.TransitionStatus(ctx, jobID, jobmodel.StatusProcessing, jobmodel.StatusFailed, cause.Error())
	return errs.New(errs.KindValidation, "extract_problem failed terminally: "+cause.Error())
}

// progress appends a progress row under the extraction job kind; every
// other task kind uses progressFor with its own kind string.
func (d *Deps) progress(ctx context.Context, jobID, step, message string, status jobmodel.ProgressEventStatus) {
	d.progressFor(ctx, extractProblemJobKind, jobID, step, message, status)
}

func (d *Deps) progressFor(ctx context.Context, jobKind, jobID, step, message string, status jobmodel.ProgressEventStatus) {
	err := d.Progress.Append(ctx, jobmodel.ProgressEvent{
		JobKind: jobKind, JobID: jobID, Step: step, Message: message, Status: status,
	})
	if err != nil {
		d.Logger.Warn("progress append failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
