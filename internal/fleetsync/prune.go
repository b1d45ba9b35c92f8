package fleetsync

import (
	"context"
	"fmt"

	"github.com/catherinevee/certguard/internal/forge"
	"github.com/catherinevee/certguard/internal/store"
)

// PruneResult summarises one Prune invocation, matching
// cleanup_services_without_main.py's find_services_without_main/
// delete_services summary counters.
type PruneResult struct {
	Checked    int
	WithMain   []string
	WithoutMain []string
	Deactivated []string
	DryRun     bool
}

// Prune checks every active service's repository for the existence of its
// configured main branch and deactivates (soft-deletes) the ones that no
// longer have one, matching cleanup_services_without_main.py's
// find_services_without_main + delete_services pass. Unlike the original,
// which hard-deletes the service and its golden branch rows,
// DeactivateService only flips the active flag, preserving certification
// history — consistent with how Fleet Sync's own orphan-group cleanup
// already treats service removal as reversible.
//
// groupFilter, when non-empty, restricts the check to services in that
// forge group, matching the --vsat flag. When dryRun is true no
// deactivation is performed; the result still reports which services
// would be affected.
func Prune(ctx context.Context, client *forge.Client, st *store.Store, groupFilter string, dryRun bool) (PruneResult, error) {
	result := PruneResult{DryRun: dryRun}

	services, err := st.ListActiveServices(ctx)
	if err != nil {
		return result, err
	}

	for _, svc := range services {
		if groupFilter != "" && svc.Group != groupFilter {
			continue
		}
		result.Checked++

		path, err := forge.ProjectPathFromRepoURL(svc.RepoURL)
		if err != nil {
			log.Warn("could not parse repo url, skipping", map[string]interface{}{
				"service_id": svc.ServiceID, "repo_url": svc.RepoURL, "error": err.Error(),
			})
			continue
		}

		branch := svc.MainBranch
		if branch == "" {
			branch = "main"
		}

		exists, err := checkMainBranch(ctx, client, path, branch)
		if err != nil {
			log.Warn("error checking main branch, treating as missing", map[string]interface{}{
				"service_id": svc.ServiceID, "error": err.Error(),
			})
			exists = false
		}

		if exists {
			result.WithMain = append(result.WithMain, svc.ServiceID)
			continue
		}
		result.WithoutMain = append(result.WithoutMain, svc.ServiceID)

		if dryRun {
			continue
		}
		if err := st.DeactivateService(ctx, svc.ServiceID); err != nil {
			log.Warn("failed to deactivate service without main branch", map[string]interface{}{
				"service_id": svc.ServiceID, "error": err.Error(),
			})
			continue
		}
		result.Deactivated = append(result.Deactivated, svc.ServiceID)
	}

	log.Info("prune complete", map[string]interface{}{
		"checked": result.Checked, "without_main": len(result.WithoutMain),
		"deactivated": len(result.Deactivated), "dry_run": dryRun,
	})
	return result, nil
}

// checkMainBranch probes a single project path for branch's existence via
// a project lookup, matching check_main_branch_exists' single-branch
// GET /projects/:id/repository/branches/:branch call.
func checkMainBranch(ctx context.Context, client *forge.Client, projectPath, branch string) (bool, error) {
	project, err := client.GetProject(ctx, projectPath)
	if err != nil {
		return false, fmt.Errorf("resolve project %s: %w", projectPath, err)
	}
	return client.ProjectHasBranch(ctx, project.ID, branch)
}
