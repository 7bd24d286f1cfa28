package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/algojudge/corejudge/errs"
)

// GenerateHintsPayload is the §4.6.5 task input.
type GenerateHintsPayload struct {
	Email         string `json:"email"`
	Platform      string `json:"platform"`
	ProblemNumber string `json:"problem_number"`
	HistoryID     string `json:"history_id"`
}

// GenerateHints asks the LLM for remediation hints on a failed
// submission and attaches them to the SearchHistory row exactly once
// (§4.6.5). It is a no-op if the history has no failures or already
// carries hints, mirroring HistoryRepo.SetHints's own idempotence.
func (d *Deps) GenerateHints(ctx context.Context, payload []byte) error {
	var in GenerateHintsPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return errs.Wrap(errs.KindValidation, "decode generate_hints payload", err)
	}

	history, err := d.Histories.Get(ctx, in.Email, in.Platform, in.ProblemNumber, in.HistoryID)
	if err != nil {
		return err
	}
	if history.Failed == 0 || len(history.Hints) > 0 {
		return nil
	}

	problem, err := d.Problems.Get(ctx, in.Platform, in.ProblemNumber)
	if err != nil {
		return err
	}

	var failed strings.Builder
	for _, o := range history.Outcomes {
		if o.Passed {
			continue
		}
		fmt.Fprintf(&failed, "case %s: status=%s error=%q output=%q\n", o.TestCaseID, o.Status, o.Error, o.Output)
	}

	prompt := fmt.Sprintf(
		"A user's submission failed some test cases for this problem.\n\nConstraints:\n%s\n\nSubmitted code:\n%s\n\nFailed cases:\n%s\n\nGive 2-4 short, specific hints that point toward the bug without revealing a full solution.",
		problem.Constraints, history.Code, failed.String())

	text, err := d.Gateway.Generate(ctx, d.LLMProvider, d.LLMModel, prompt)
	if err != nil {
		return err
	}

	hints := splitHints(text)
	return d.Histories.SetHints(ctx, in.Email, in.Platform, in.ProblemNumber, in.HistoryID, hints)
}

// splitHints turns the model's free-text response into a non-empty list
// of hint lines, one per paragraph/newline.
func splitHints(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	hints := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hints = append(hints, line)
	}
	if len(hints) == 0 {
		hints = []string{strings.TrimSpace(text)}
	}
	return hints
}
