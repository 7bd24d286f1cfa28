package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/jobmodel"
)

// orphanThreshold is the staleness age (§4.6.7 / §4.10's C10): a
// PROCESSING job whose UpdatedAt is older than this has lost its
// worker and is failed outright rather than redelivered.
const orphanThreshold = 30 * time.Minute

// RecoverOrphanedJobs sweeps both job tables for PROCESSING rows stuck
// past orphanThreshold and transitions each to FAILED with reason
// "orphaned" (§4.6.7). It is idempotent: a job already terminal when
// the transition is attempted is left untouched, since TransitionStatus
// only succeeds from PROCESSING.
func (d *Deps) RecoverOrphanedJobs(ctx context.Context, _ []byte) error {
	now := d.Clock.Now()

	extractionJobs, _, err := d.ExtractionJobs.ListByStatus(ctx, jobmodel.StatusProcessing, 200, "")
	if err != nil {
		return err
	}
	for _, job := range extractionJobs {
		if now.Sub(job.UpdatedAt) < d.orphanThreshold() {
			continue
		}
		if err := d.ExtractionJobs.TransitionStatus(ctx, job.ID, jobmodel.StatusProcessing, jobmodel.StatusFailed, "orphaned"); err != nil {
			d.Logger.Warn("orphan recovery transition failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		d.progressFor(ctx, extractProblemJobKind, job.ID, "recover", "job orphaned: no progress within threshold", jobmodel.EventFailed)
	}

	scriptJobs, _, err := d.ScriptJobs.ListByStatus(ctx, jobmodel.StatusProcessing, 200, "")
	if err != nil {
		return err
	}
	for _, job := range scriptJobs {
		if now.Sub(job.UpdatedAt) < d.orphanThreshold() {
			continue
		}
		if err := d.ScriptJobs.TransitionStatus(ctx, job.ID, jobmodel.StatusProcessing, jobmodel.StatusFailed, "orphaned"); err != nil {
			d.Logger.Warn("orphan recovery transition failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		d.progressFor(ctx, generatorJobKind, job.ID, "recover", "job orphaned: no progress within threshold", jobmodel.EventFailed)
	}

	return nil
}
