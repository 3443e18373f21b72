package round

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// BatchJob is one independent batch to gate.
type BatchJob struct {
	Batch  verdict.CandidateBatch
	Policy verdict.PolicyEnvelope
}

// BatchResult pairs a job's outcome with its error.
type BatchResult struct {
	Outcome BatchOutcome
	Err     error
}

// RunBatches gates jobs with at most parallelism rounds in flight. Results
// are returned in job order. A failing round does not cancel the others.
func RunBatches(ctx context.Context, r *BatchRound, jobs []BatchJob, parallelism int) []BatchResult {
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([]BatchResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			out, err := r.Run(ctx, job.Batch, job.Policy)
			results[i] = BatchResult{Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
