package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/runner"
	"github.com/algojudge/corejudge/testcase"
)

// GenerateOutputsPayload is the §4.6.3 task input.
type GenerateOutputsPayload struct {
	Platform  string   `json:"platform"`
	ProblemID string   `json:"problem_id"`
	Inputs    []string `json:"inputs"`
}

// generateOutputsBatchSize bounds writes per §4.6.3: "Uses bulk updates
// (batches of 25) to minimize writes."
const generateOutputsBatchSize = 25

// GenerateOutputs runs the problem's reference solution against each
// supplied input and persists the resulting {input, output} pairs,
// marking the problem for review on any runner failure (§4.6.3).
func (d *Deps) GenerateOutputs(ctx context.Context, payload []byte) error {
	var in GenerateOutputsPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return errs.Wrap(errs.KindValidation, "decode generate_outputs payload", err)
	}

	problem, err := d.Problems.Get(ctx, in.Platform, in.ProblemID)
	if err != nil {
		return err
	}
	solution, err := base64.StdEncoding.DecodeString(problem.SolutionB64)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "decode reference solution", err)
	}

	needsReview := false
	batch := make([]testcase.Case, 0, generateOutputsBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := d.TestCases.Append(ctx, in.Platform, in.ProblemID, batch)
		batch = batch[:0]
		return err
	}

	for i, input := range in.Inputs {
		result, err := d.Runner.Run(ctx, string(solution), problem.Language, input, runner.Options{Timeout: 5 * time.Second, MemoryMB: 256})
		if err != nil || result.Status != runner.StatusOK {
			needsReview = true
			d.Logger.Warn("reference solution run failed during generate_outputs",
				zap.String("platform", in.Platform), zap.String("problem_id", in.ProblemID), zap.Int("index", i))
			continue
		}
		batch = append(batch, testcase.Case{ID: idFor(i), Input: input, Output: result.Stdout})
		if len(batch) >= generateOutputsBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if needsReview {
		problem.NeedsReview = true
		return d.Problems.Update(ctx, problem)
	}
	return nil
}

func idFor(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var out []byte
	for i > 0 {
		out = append([]byte{digits[i%10]}, out...)
		i /= 10
	}
	return string(out)
}
