package fleetsync

import (
	"context"
	"fmt"

	"github.com/catherinevee/certguard/internal/forge"
	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/store"
)

// pendingBranches is a service newly added or missing its golden branches,
// queued for the branch-materialisation phase, matching
// sync_vsat_services' new_services_for_branches list.
type pendingBranches struct {
	ServiceID    string
	RepoURL      string
	Project      forge.Project
	MainBranch   string
	Environments []string
	ConfigPaths  []string
}

// groupResult tallies one group's reconciliation outcome.
type groupResult struct {
	Added, Updated, Unchanged int
	Pending                   []pendingBranches
	Errors                    []string
}

// syncGroup fetches group's projects, filters them to in-scope candidates
// with a main branch, and reconciles each against the Service registry,
// matching sync_vsat_services' Phase 1 (sequential database processing).
func syncGroup(ctx context.Context, client *forge.Client, st *store.Store, g Group, roster *Roster, probeWorkers int) groupResult {
	var result groupResult

	if !g.Enabled {
		log.Info("skipping disabled group", map[string]interface{}{"group": g.Name})
		return result
	}

	log.Info("syncing group", map[string]interface{}{"group": g.Name})

	projects, err := client.ListGroupProjects(ctx, g.Name)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch projects for %s: %v", g.Name, err))
		return result
	}

	names := make([]string, len(projects))
	byName := make(map[string]forge.Project, len(projects))
	for i, p := range projects {
		names[i] = p.Path
		byName[p.Path] = p
	}
	keptNames := applyFilters(names, roster.Filters)

	var kept []forge.Project
	for _, n := range keptNames {
		if p, ok := byName[n]; ok && !p.Archived {
			kept = append(kept, p)
		}
	}

	mainBranch := serviceConfigString(g.ServiceConfig, "main_branch", roster.Defaults.MainBranch)
	if roster.Filters.RequireMainBranch {
		probes := client.ProbeBranchExistence(ctx, kept, mainBranch, probeWorkers)
		kept = kept[:0]
		for _, pr := range probes {
			if pr.Exists {
				kept = append(kept, pr.Project)
			}
		}
	}

	if len(kept) < roster.Sync.MinServicesThreshold {
		log.Warn("group has fewer services than threshold", map[string]interface{}{
			"group": g.Name, "count": len(kept), "threshold": roster.Sync.MinServicesThreshold,
		})
	}

	environments := serviceConfigStrings(g.ServiceConfig, "environments", roster.Defaults.Environments)
	configPaths := serviceConfigStrings(g.ServiceConfig, "config_paths", roster.Defaults.ConfigPaths)

	for _, p := range kept {
		serviceID := fmt.Sprintf("%s_%s", g.Name, p.Path)
		repoURL := p.HTTPURLToRepo

		existing, err := st.GetService(ctx, serviceID)
		needsBranches := false

		switch {
		case err == store.ErrNotFound:
			log.Info("adding service", map[string]interface{}{"service_id": serviceID})
			result.Added++
			needsBranches = true
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("lookup %s: %v", serviceID, err))
			continue
		case existing.RepoURL != repoURL || existing.MainBranch != mainBranch:
			log.Info("updating service", map[string]interface{}{"service_id": serviceID})
			result.Updated++
			needsBranches = true
		default:
			result.Unchanged++
			if !existing.Active {
				needsBranches = true
			} else if _, err := st.GetActiveGoldenBranch(ctx, serviceID, environments[0]); err == store.ErrNotFound {
				needsBranches = true
			}
		}

		svc := &models.Service{
			ServiceID:   serviceID,
			DisplayName: p.Name,
			RepoURL:     repoURL,
			MainBranch:  mainBranch,
			Environments: environments,
			ConfigPaths: configPaths,
			Group:       g.Name,
			Active:      true,
		}
		if err := st.UpsertService(ctx, svc); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("upsert %s: %v", serviceID, err))
			continue
		}

		if needsBranches && roster.Sync.CreateGoldenBranches {
			result.Pending = append(result.Pending, pendingBranches{
				ServiceID: serviceID, RepoURL: repoURL, Project: p,
				MainBranch: mainBranch, Environments: environments, ConfigPaths: configPaths,
			})
		}
	}

	return result
}

// cleanupOrphanedServices deactivates services whose group left the roster
// and reactivates services whose group returned, matching
// cleanup_orphaned_services' soft-delete/reactivate pass. It refuses to
// deactivate more than maxDeletePercentage of the active fleet in one run.
func cleanupOrphanedServices(ctx context.Context, st *store.Store, activeGroups map[string]bool, maxDeletePercentage int) (deactivated, reactivated int, err error) {
	all, err := st.ListAllServices(ctx)
	if err != nil {
		return 0, 0, err
	}

	activeCount := 0
	var toDeactivate []*models.Service
	var toReactivate []*models.Service
	for _, svc := range all {
		if svc.Active {
			activeCount++
		}
		if activeGroups[svc.Group] {
			if !svc.Active {
				toReactivate = append(toReactivate, svc)
			}
			continue
		}
		if svc.Active {
			toDeactivate = append(toDeactivate, svc)
		}
	}

	if activeCount > 0 && len(toDeactivate)*100 > maxDeletePercentage*activeCount {
		log.Warn("deactivation would exceed max delete percentage, aborting cleanup", map[string]interface{}{
			"would_deactivate": len(toDeactivate), "active": activeCount, "max_percent": maxDeletePercentage,
		})
		toDeactivate = nil
	}

	for _, svc := range toDeactivate {
		if err := st.DeactivateService(ctx, svc.ServiceID); err != nil {
			log.Warn("failed to deactivate service", map[string]interface{}{"service_id": svc.ServiceID, "error": err.Error()})
			continue
		}
		deactivated++
	}
	for _, svc := range toReactivate {
		if err := st.ReactivateService(ctx, svc.ServiceID); err != nil {
			log.Warn("failed to reactivate service", map[string]interface{}{"service_id": svc.ServiceID, "error": err.Error()})
			continue
		}
		reactivated++
	}

	return deactivated, reactivated, nil
}
