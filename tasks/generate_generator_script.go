package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/jobmodel"
	"github.com/algojudge/corejudge/runner"
	"github.com/algojudge/corejudge/testcase"
)

// GenerateGeneratorScriptPayload is the §4.6.2 task input.
type GenerateGeneratorScriptPayload struct {
	JobID string `json:"job_id"`
}

const (
	generatorJobKind  = "script_generation"
	defaultGeneratedN = 100
	generatorLanguage = "python3"
)

// GenerateGeneratorScript asks the LLM for a generator program, runs it
// N times in the sandbox to produce inputs, validates each against the
// problem's reference solution, then persists the resulting test cases
// and marks the problem complete (§4.6.2).
func (d *Deps) GenerateGeneratorScript(ctx context.Context, payload []byte) error {
	var in GenerateGeneratorScriptPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return errs.Wrap(errs.KindValidation, "decode generate_generator_script payload", err)
	}

	job, err := d.ScriptJobs.Get(ctx, in.JobID)
	if err != nil {
		return err
	}

	if err := d.ScriptJobs.TransitionStatus(ctx, in.JobID, jobmodel.StatusPending, jobmodel.StatusProcessing, ""); err != nil {
		if errs.Is(err, errs.KindPreconditionFailed) {
			return nil
		}
		return err
	}

	problem, err := d.Problems.Get(ctx, job.Platform, job.ProblemID)
	if err != nil {
		return d.failScriptJob(ctx, in.JobID, "load problem", err)
	}

	d.progressFor(ctx, generatorJobKind, in.JobID, "generate_script", "calling llm for generator program", jobmodel.EventStarted)
	prompt := fmt.Sprintf(
		"Write a %s test-case generator program for this problem. Constraints:\n%s\n\nPrint one valid input to stdout and nothing else.",
		generatorLanguage, problem.Constraints)
	script, err := d.Gateway.Generate(ctx, d.LLMProvider, d.LLMModel, prompt)
	if err != nil {
		return d.failScriptJob(ctx, in.JobID, "generate generator script", err)
	}
	job.GeneratorCode = script
	job.UpdatedAt = time.Now().UTC()
	if err := d.ScriptJobs.Update(ctx, job); err != nil {
		return d.failScriptJob(ctx, in.JobID, "persist generator script", err)
	}
	d.progressFor(ctx, generatorJobKind, in.JobID, "generate_script", "generator script recorded", jobmodel.EventCompleted)

	solution, err := base64.StdEncoding.DecodeString(problem.SolutionB64)
	if err != nil {
		return d.failScriptJob(ctx, in.JobID, "decode reference solution", errs.Wrap(errs.KindValidation, "bad base64 solution", err))
	}

	cases := make([]testcase.Case, 0, defaultGeneratedN)
	for i := 0; i < defaultGeneratedN; i++ {
		genResult, err := d.Runner.Run(ctx, script, generatorLanguage, "", runner.Options{Timeout: 5 * time.Second, MemoryMB: 256})
		if err != nil || genResult.Status != runner.StatusOK {
			return d.failScriptJob(ctx, in.JobID, "run generator", errs.New(errs.KindSandbox, "generator run failed"))
		}
		input := genResult.Stdout

		refResult, err := d.Runner.Run(ctx, string(solution), problem.Language, input, runner.Options{Timeout: 5 * time.Second, MemoryMB: 256})
		if err != nil || refResult.Status != runner.StatusOK {
			return d.failScriptJob(ctx, in.JobID, "run reference solution", errs.New(errs.KindSandbox, "reference solution run failed"))
		}

		cases = append(cases, testcase.Case{ID: fmt.Sprintf("%d", i+1), Input: input, Output: refResult.Stdout})
	}

	d.progressFor(ctx, generatorJobKind, in.JobID, "generate_cases", fmt.Sprintf("generated %d test cases", len(cases)), jobmodel.EventInProgress)
	if err := d.TestCases.Write(ctx, job.Platform, job.ProblemID, cases); err != nil {
		return d.failScriptJob(ctx, in.JobID, "persist test cases", err)
	}

	if err := d.Problems.MarkCompleted(ctx, job.Platform, job.ProblemID); err != nil {
		return d.failScriptJob(ctx, in.JobID, "mark problem completed", err)
	}

	if err := d.ScriptJobs.TransitionStatus(ctx, in.JobID, jobmodel.StatusProcessing, jobmodel.StatusCompleted, ""); err != nil && !errs.Is(err, errs.KindPreconditionFailed) {
		return err
	}
	d.progressFor(ctx, generatorJobKind, in.JobID, "complete", "generator script and test cases ready", jobmodel.EventCompleted)
	return nil
}

func (d *Deps) failScriptJob(ctx context.Context, jobID, step string, cause error) error {
	d.Logger.Error("generate_generator_script step failed", zap.String("job_id", jobID), zap.String("step", step), zap.Error(cause))
	d.progressFor(ctx, generatorJobKind, jobID, step, cause.Error(), jobmodel.EventFailed)
	if errs.IsRetryable(cause) {
		return cause
	}
	_ = d.ScriptJobs.TransitionStatus(ctx, jobID, jobmodel.StatusProcessing, jobmodel.StatusFailed, cause.Error())
	return errs.New(errs.KindValidation, "generate_generator_script failed terminally: "+cause.Error())
}
