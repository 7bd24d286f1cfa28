package tasks

import (
	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/workerpool"
)

// Register binds every task handler to its name and retry policy on the
// given pool (§9 DESIGN NOTES: explicit name-to-handler registration
// replacing decorator-based discovery). The pool dequeues across every
// queue named in its own Config, so the queue a task runs on is decided
// at Pool construction, not here.
func Register(pool *workerpool.Pool, deps *Deps) {
	defaultPolicy := workerpool.DefaultRetryPolicy()

	pool.Register("extract_problem", deps.ExtractProblem, defaultPolicy)
	pool.Register("generate_generator_script", deps.GenerateGeneratorScript, defaultPolicy)
	pool.Register("generate_outputs", deps.GenerateOutputs, defaultPolicy)
	pool.Register("execute_submission", deps.ExecuteSubmission, defaultPolicy)
	pool.Register("generate_hints", deps.GenerateHints, defaultPolicy)
	pool.Register("delete_job", deps.DeleteJob, defaultPolicy)
	pool.Register("recover_orphaned_jobs", deps.RecoverOrphanedJobs, workerpool.RetryPolicy{
		MaxRetries: 0, BaseDelay: defaultPolicy.BaseDelay, MaxDelay: defaultPolicy.MaxDelay,
	})
}

// QueueForTask maps each task name to the queue it must be enqueued on
// (§4.4). Kept alongside Register so the two stay in lockstep.
func QueueForTask(taskName string) string {
	switch taskName {
	case "extract_problem", "generate_hints":
		return broker.QueueAI
	case "generate_generator_script", "generate_outputs":
		return broker.QueueGeneration
	case "execute_submission":
		return broker.QueueExecution
	case "delete_job":
		return broker.QueueJobs
	case "recover_orphaned_jobs":
		return broker.QueueMaintenance
	default:
		return broker.QueueJobs
	}
}
