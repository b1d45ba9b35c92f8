package fleetsync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/catherinevee/certguard/internal/classify"
	"github.com/catherinevee/certguard/internal/forge"
	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/store"
)

// runSuffix stamps a branch name with the current time, matching
// create_golden_branches_parallel's "%Y%m%d_%H%M%S" + short-hash suffix.
func runSuffix() string {
	return time.Now().Format("20060102_150405")
}

// createGoldenBranches materialises one complete snapshot branch plus one
// env-filtered golden branch per environment for a single service, in a
// nested pool of up to 5 concurrent branch creations, matching
// create_golden_branches_parallel.
func createGoldenBranches(ctx context.Context, client *forge.Client, st *store.Store, p pendingBranches) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)

	created := make(chan string, len(p.Environments)+1)

	g.Go(func() error {
		spec := forge.OrphanBranchSpec{
			ProjectID:     p.Project.ID,
			SourceBranch:  p.MainBranch,
			NewBranch:     fmt.Sprintf("golden_snapshot_%s", runSuffix()),
			CommitMessage: "certguard: complete configuration snapshot",
			Filter:        func(string) bool { return true },
		}
		res, err := client.CreateOrphanBranch(gctx, &p.Project, spec)
		if err != nil {
			log.Warn("failed to create snapshot branch", map[string]interface{}{"service_id": p.ServiceID, "error": err.Error()})
			return nil
		}
		_ = res
		created <- spec.NewBranch
		return nil
	})

	for _, env := range p.Environments {
		env := env
		g.Go(func() error {
			branchName := fmt.Sprintf("golden_%s_%s", env, runSuffix())
			spec := forge.OrphanBranchSpec{
				ProjectID:     p.Project.ID,
				SourceBranch:  p.MainBranch,
				NewBranch:     branchName,
				CommitMessage: fmt.Sprintf("certguard: env-filtered golden baseline for %s", env),
				Filter:        classify.EnvironmentFilter(env),
			}
			_, err := client.CreateOrphanBranch(gctx, &p.Project, spec)
			if err != nil {
				log.Warn("failed to create golden branch", map[string]interface{}{
					"service_id": p.ServiceID, "environment": env, "error": err.Error(),
				})
				return nil
			}
			if err := st.ActivateGoldenBranch(gctx, &models.GoldenBranch{
				ServiceID:  p.ServiceID,
				Environment: env,
				BranchName: branchName,
				BranchType: models.BranchGolden,
			}); err != nil {
				log.Warn("failed to record golden branch", map[string]interface{}{"service_id": p.ServiceID, "error": err.Error()})
				return nil
			}
			created <- branchName
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(created)

	count := 0
	for range created {
		count++
	}
	return count, nil
}

// syncWithWorkers fans pendingBranches out across workers concurrent
// per-service branch-creation jobs, matching
// sync_vsat_services' Phase 2 ThreadPoolExecutor(max_workers=...) pass.
func syncWithWorkers(ctx context.Context, client *forge.Client, st *store.Store, pending []pendingBranches, workers int) (created, failed int) {
	if workers <= 0 {
		workers = 10
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	results := make([]int, len(pending))
	errs := make([]error, len(pending))

	for i, p := range pending {
		i, p := i, p
		g.Go(func() error {
			n, err := createGoldenBranches(gctx, client, st, p)
			results[i] = n
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for i, n := range results {
		if errs[i] != nil || n == 0 {
			failed++
			continue
		}
		created += n
	}
	return created, failed
}
