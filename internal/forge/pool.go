package forge

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BranchProbeResult is one project's existence check for a given branch.
type BranchProbeResult struct {
	Project Project
	Exists  bool
	Err     error
}

// ProbeBranchExistence checks branch against every project in projects
// concurrently, bounded by workers (spec.md §4.1 default 25). Individual
// failures are captured per-result rather than aborting the whole batch,
// since one unreachable project should not stall the rest of the fleet.
func (c *Client) ProbeBranchExistence(ctx context.Context, projects []Project, branch string, workers int) []BranchProbeResult {
	if workers <= 0 {
		workers = 25
	}
	results := make([]BranchProbeResult, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			exists, err := c.ProjectHasBranch(gctx, p.ID, branch)
			results[i] = BranchProbeResult{Project: p, Exists: exists, Err: err}
			return nil // never abort the group; errors are per-result
		})
	}
	_ = g.Wait()
	return results
}
