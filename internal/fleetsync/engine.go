package fleetsync

import (
	"context"

	"github.com/catherinevee/certguard/internal/forge"
	"github.com/catherinevee/certguard/internal/store"
)

// Paths locates the roster files and the hash file used for the no-op
// fast path, matching vsat_sync.py's MASTER_CONFIG_FILE/DETAILED_CONFIG_FILE/
// CONFIG_HASH_FILE module constants.
type Paths struct {
	MasterConfig string
	DetailConfig string
	HashFile     string
}

// Result summarises one Sync invocation, matching run_sync's return dict.
type Result struct {
	Status      string // success, skipped, failed
	Reason      string
	Added       int
	Updated     int
	Unchanged   int
	Deactivated int
	Reactivated int
	BranchesCreated int
	BranchesFailed  int
	Errors      []string
}

// Sync runs the full Fleet Sync Engine (C9) reconciliation pass: change
// detection, per-group discovery and service reconciliation, orphaned-group
// cleanup, and parallel golden-branch materialisation, matching run_sync
// end to end.
func Sync(ctx context.Context, client *forge.Client, st *store.Store, paths Paths, force bool) (Result, error) {
	existing, err := st.ListAllServices(ctx)
	if err != nil {
		return Result{}, err
	}

	if len(existing) == 0 {
		log.Info("store has no services, forcing full sync", nil)
		force = true
	}

	if !force {
		changed, err := hasConfigChanged(paths.HashFile, paths.MasterConfig, paths.DetailConfig)
		if err != nil {
			return Result{}, err
		}
		if !changed {
			skip, err := rosterFullyPresent(ctx, st, paths)
			if err != nil {
				log.Warn("could not verify roster/branch presence, forcing sync", map[string]interface{}{"error": err.Error()})
			} else if skip {
				return Result{Status: "skipped", Reason: "config_unchanged_and_branches_exist"}, nil
			}
		}
	}

	roster, err := LoadRoster(paths.MasterConfig, paths.DetailConfig)
	if err != nil {
		return Result{Status: "failed"}, err
	}
	if len(roster.Groups) == 0 {
		return Result{Status: "skipped", Reason: "no_vsats_configured"}, nil
	}

	activeGroups := map[string]bool{}
	for _, g := range roster.Groups {
		if g.Enabled {
			activeGroups[g.Name] = true
		}
	}

	var result Result
	var allPending []pendingBranches

	for _, g := range roster.Groups {
		gr := syncGroup(ctx, client, st, g, roster, 25)
		result.Added += gr.Added
		result.Updated += gr.Updated
		result.Unchanged += gr.Unchanged
		result.Errors = append(result.Errors, gr.Errors...)
		allPending = append(allPending, gr.Pending...)
	}

	deactivated, reactivated, err := cleanupOrphanedServices(ctx, st, activeGroups, roster.Sync.MaxDeletePercentage)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.Deactivated = deactivated
	result.Reactivated = reactivated

	if len(allPending) > 0 {
		created, failed := syncWithWorkers(ctx, client, st, allPending, roster.Sync.MaxBranchWorkers)
		result.BranchesCreated = created
		result.BranchesFailed = failed
	}

	if err := saveConfigHash(paths.HashFile, paths.MasterConfig, paths.DetailConfig); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Status = "success"
	log.Info("fleet sync complete", map[string]interface{}{
		"added": result.Added, "updated": result.Updated, "unchanged": result.Unchanged,
		"deactivated": result.Deactivated, "reactivated": result.Reactivated,
	})
	return result, nil
}

// rosterFullyPresent checks whether every enabled roster group already has
// services in the store and every active service already has an active
// golden branch, matching run_sync's "config unchanged" short-circuit path.
func rosterFullyPresent(ctx context.Context, st *store.Store, paths Paths) (bool, error) {
	roster, err := LoadRoster(paths.MasterConfig, paths.DetailConfig)
	if err != nil {
		return false, err
	}

	active, err := st.ListActiveServices(ctx)
	if err != nil {
		return false, err
	}
	seenGroups := map[string]bool{}
	for _, svc := range active {
		seenGroups[svc.Group] = true
	}
	for _, g := range roster.Groups {
		if g.Enabled && !seenGroups[g.Name] {
			return false, nil
		}
	}

	for _, svc := range active {
		for _, env := range svc.Environments {
			if _, err := st.GetActiveGoldenBranch(ctx, svc.ServiceID, env); err == store.ErrNotFound {
				return false, nil
			} else if err != nil {
				return false, err
			}
		}
	}
	return true, nil
}
