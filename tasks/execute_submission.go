package tasks

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/broker"
	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/repo"
	"github.com/algojudge/corejudge/runner"
)

// ExecuteSubmissionPayload is the §4.6.4 task input.
type ExecuteSubmissionPayload struct {
	Platform          string `json:"platform"`
	ProblemIdentifier string `json:"problem_identifier"`
	Code              string `json:"code"`
	Language          string `json:"language"`
	UserEmail         string `json:"user_email"`
	IsPublic          bool   `json:"is_public"`
	// TimeoutSeconds overrides the plan default when set (resolved by
	// the caller from the user's plan before enqueueing).
	TimeoutSeconds int `json:"timeout_seconds"`
}

const defaultExecutionTimeout = 5 * time.Second

// ExecuteSubmission runs user code against every test case for a
// problem, records the outcome as a SearchHistory row, and enqueues a
// GenerateHints task when any case failed (§4.6.4).
func (d *Deps) ExecuteSubmission(ctx context.Context, payload []byte) error {
	var in ExecuteSubmissionPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return errs.Wrap(errs.KindValidation, "decode execute_submission payload", err)
	}

	problem, err := d.Problems.Get(ctx, in.Platform, in.ProblemIdentifier)
	if err != nil {
		return err
	}
	cases, err := d.TestCases.Read(ctx, in.Platform, in.ProblemIdentifier)
	if err != nil {
		return err
	}

	timeout := defaultExecutionTimeout
	if in.TimeoutSeconds > 0 {
		timeout = time.Duration(in.TimeoutSeconds) * time.Second
	}

	outcomes := make([]repo.CaseOutcome, 0, len(cases))
	passed, failed := 0, 0
	for _, tc := range cases {
		result, runErr := d.Runner.Run(ctx, in.Code, in.Language, tc.Input, runner.Options{Timeout: timeout, MemoryMB: 256})
		outcome := repo.CaseOutcome{TestCaseID: tc.ID, Status: string(result.Status)}
		switch {
		case runErr != nil:
			outcome.Error = runErr.Error()
			outcome.Status = string(runner.StatusRuntimeError)
		case result.Status != runner.StatusOK:
			outcome.Error = string(result.Status)
		case result.Stdout == tc.Output:
			outcome.Passed = true
			outcome.Output = result.Stdout
		default:
			outcome.Output = result.Stdout
		}
		if outcome.Passed {
			passed++
		} else {
			failed++
		}
		outcomes = append(outcomes, outcome)
	}

	history := &repo.History{
		Email: in.UserEmail, Platform: in.Platform, ProblemNumber: in.ProblemIdentifier,
		Title: problem.Title, Code: in.Code, Public: in.IsPublic,
		Passed: passed, Failed: failed, Total: len(cases), Outcomes: outcomes,
	}
	if err := d.Histories.Create(ctx, history); err != nil {
		return errs.Wrap(errs.KindTransient, "write search history", err)
	}

	if failed > 0 {
		hintPayload, err := json.Marshal(GenerateHintsPayload{
			Email: history.Email, Platform: history.Platform, ProblemNumber: history.ProblemNumber, HistoryID: history.ID,
		})
		if err != nil {
			return errs.Wrap(errs.KindValidation, "encode generate_hints payload", err)
		}
		if _, err := d.Broker.Enqueue(ctx, broker.QueueAI, "generate_hints", hintPayload, broker.EnqueueOptions{}); err != nil {
			d.Logger.Error("failed to enqueue generate_hints after failed submission", zap.String("history_id", history.ID), zap.Error(err))
		}
	}
	return nil
}
