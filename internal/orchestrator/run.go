// Package orchestrator implements the Run Orchestrator (C10): for a
// requested (service, environment) pair it drives the Snapshot -> Drift ->
// Guardrail -> Triage -> Certify pipeline in strict order, persisting each
// stage's output so a failure partway through still leaves forensics behind.
// Grounded on supervisor_agent.py's role (receive request, create run,
// coordinate worker agents, persist results, make the final decision) though
// the Strands Graph-based agent coordination it wraps is replaced here with
// a plain sequential Go call chain, matching spec.md §4.10 exactly.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/catherinevee/certguard/internal/classify"
	"github.com/catherinevee/certguard/internal/drift"
	"github.com/catherinevee/certguard/internal/forge"
	"github.com/catherinevee/certguard/internal/guardrail"
	"github.com/catherinevee/certguard/internal/llm"
	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/metrics"
	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/score"
	"github.com/catherinevee/certguard/internal/store"
	"github.com/catherinevee/certguard/internal/triage"
)

var log = logging.WithComponent("orchestrator")

// Deps bundles every collaborator a Run needs.
type Deps struct {
	Forge   *forge.Client
	LLM     llm.Client
	Store   *store.Store
	Policy  drift.PolicyConfig
	TempDir string // base dir for clone/checkout working directories; os.TempDir() if empty
}

// Run drives one full pipeline invocation for (serviceID, environment),
// matching spec.md §4.10's orchestration sequence:
//
//	ensure_or_reuse_golden(service, env)            [C9 + C1 + C2]
//	drift_snapshot = create_drift_branch(service)   [C1 + C2]
//	materialise golden_tree, drift_tree             [C1: sparse checkout, env filter]
//	bundle = C5.run(golden_tree, drift_tree)
//	store.save_context_bundle(run, bundle)
//	C6.run(run) -> persists policy validation AND updates bundle deltas in place
//	C7.run(run) -> persists llm_output (reads redacted deltas)
//	C8.compute(run) -> persists certification
//
// Any stage's non-recoverable failure terminates the run with the error
// captured; artefacts already persisted by earlier stages remain in the
// Store for forensics. No stage is restarted implicitly.
func Run(ctx context.Context, deps Deps, serviceID, environment string) (*models.Certification, error) {
	svc, err := deps.Store.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load service %s: %w", serviceID, err)
	}

	runID := fmt.Sprintf("run_%s", uuid.NewString()[:12])
	run := &models.ValidationRun{RunID: runID, ServiceID: serviceID, Environment: environment, Status: models.RunRunning}
	if err := deps.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run %s: %w", runID, err)
	}
	log.Info("run started", map[string]interface{}{"run_id": runID, "service_id": serviceID, "environment": environment})

	cert, err := runPipeline(ctx, deps, svc, runID, environment)
	if err != nil {
		if uerr := deps.Store.UpdateRunStatus(ctx, runID, models.RunFailed, "stage_error", err.Error()); uerr != nil {
			log.Warn("failed to record run failure", map[string]interface{}{"run_id": runID, "error": uerr.Error()})
		}
		log.Warn("run failed", map[string]interface{}{"run_id": runID, "error": err.Error()})
		return nil, err
	}

	if err := deps.Store.UpdateRunStatus(ctx, runID, models.RunSucceeded, "", ""); err != nil {
		log.Warn("failed to mark run succeeded", map[string]interface{}{"run_id": runID, "error": err.Error()})
	}
	log.Info("run complete", map[string]interface{}{
		"run_id": runID, "decision": string(cert.Decision), "score": cert.ConfidenceScore,
	})
	return cert, nil
}

func runPipeline(ctx context.Context, deps Deps, svc *models.Service, runID, environment string) (*models.Certification, error) {
	projectPath, err := forge.ProjectPathFromRepoURL(svc.RepoURL)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	project, err := deps.Forge.GetProject(ctx, projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve project %s: %w", projectPath, err)
	}

	goldenBranch, err := ensureGolden(ctx, deps, project, svc, environment)
	if err != nil {
		return nil, fmt.Errorf("ensure golden branch: %w", err)
	}

	driftBranch, err := createDriftSnapshot(ctx, deps, project, svc, environment)
	if err != nil {
		return nil, fmt.Errorf("create drift snapshot: %w", err)
	}

	tempBase := deps.TempDir
	if tempBase == "" {
		tempBase = os.TempDir()
	}

	goldenRoot, err := forge.DefaultCloneDir(tempBase, "golden")
	if err != nil {
		return nil, fmt.Errorf("alloc golden workdir: %w", err)
	}
	defer os.RemoveAll(goldenRoot)

	driftRoot, err := forge.DefaultCloneDir(tempBase, "drift")
	if err != nil {
		return nil, fmt.Errorf("alloc drift workdir: %w", err)
	}
	defer os.RemoveAll(driftRoot)

	envFilter := classify.EnvironmentFilter(environment)
	if _, err := deps.Forge.SparseCheckout(ctx, project, goldenRoot, forge.CheckoutSpec{
		Branch: goldenBranch, Patterns: svc.ConfigPaths, Filter: envFilter,
	}); err != nil {
		return nil, fmt.Errorf("materialise golden tree: %w", err)
	}
	if _, err := deps.Forge.SparseCheckout(ctx, project, driftRoot, forge.CheckoutSpec{
		Branch: driftBranch, Patterns: svc.ConfigPaths, Filter: envFilter,
	}); err != nil {
		return nil, fmt.Errorf("materialise drift tree: %w", err)
	}

	meta := models.BundleMeta{RunID: runID, ServiceID: svc.ServiceID, Environment: environment, GeneratedAt: nowTime()}
	driftStart := time.Now()
	bundle, err := drift.Analyze(goldenRoot, driftRoot, meta, deps.Policy)
	metrics.Default.ObserveStage("drift", driftStart)
	if err != nil {
		return nil, fmt.Errorf("drift analysis: %w", err)
	}
	metrics.Default.RecordDeltas(countDeltasByCategory(bundle.Deltas))

	bundleID, err := deps.Store.SaveContextBundle(ctx, runID, bundle)
	if err != nil {
		return nil, fmt.Errorf("save context bundle: %w", err)
	}
	if err := deps.Store.SaveDeltas(ctx, runID, bundleID, bundle.Deltas); err != nil {
		return nil, fmt.Errorf("save deltas: %w", err)
	}

	guardrailStart := time.Now()
	policyValidation := guardrail.Validate(bundle, deps.Policy, runID, environment)
	metrics.Default.ObserveStage("guardrail", guardrailStart)
	if err := deps.Store.SavePolicyValidation(ctx, runID, &policyValidation); err != nil {
		return nil, fmt.Errorf("save policy validation: %w", err)
	}
	// Guardrail mutates bundle.Deltas in place (PII redaction, intent
	// tagging, policy re-validation); persist the redacted version so
	// Triage reads exactly what Guardrail produced, never the raw bundle.
	if err := deps.Store.UpdateContextBundleDeltas(ctx, bundleID, bundle.Deltas); err != nil {
		return nil, fmt.Errorf("update bundle deltas: %w", err)
	}

	triageStart := time.Now()
	llmOutput := triage.Analyze(ctx, deps.LLM, bundle, runID, environment)
	metrics.Default.ObserveStage("triage", triageStart)
	if err := deps.Store.SaveLLMOutput(ctx, runID, &llmOutput); err != nil {
		return nil, fmt.Errorf("save llm output: %w", err)
	}

	scoreStart := time.Now()
	cert := score.Calculate(score.Input{
		Violations:  policyValidation.Violations,
		RiskLevel:   llmOutput.OverallRiskLevel(),
		HighCount:   len(llmOutput.High),
		MediumCount: len(llmOutput.Medium),
		LowCount:    len(llmOutput.Low),
		Environment: environment,
	})
	metrics.Default.ObserveStage("score", scoreStart)
	cert.RunID = runID
	cert.ServiceID = svc.ServiceID
	cert.CreatedAt = nowTime()
	cert.CertifiedSnapshotBranch = driftBranch

	violationsCount := policyValidation.Totals.InvariantBreach + policyValidation.Totals.Suspect
	if err := deps.Store.SaveCertification(ctx, runID, &cert, violationsCount, len(llmOutput.High)); err != nil {
		return nil, fmt.Errorf("save certification: %w", err)
	}
	metrics.Default.RecordCertification(svc.ServiceID, environment, string(cert.Decision), cert.ConfidenceScore)

	if cert.Decision == models.DecisionAutoMerge {
		if err := activateSnapshotAsGolden(ctx, deps, svc, environment, driftBranch, cert.ConfidenceScore); err != nil {
			log.Warn("failed to promote certified snapshot to golden", map[string]interface{}{
				"run_id": runID, "error": err.Error(),
			})
		}
	}

	return &cert, nil
}

// ensureGolden returns the active golden branch name for (service,
// environment), creating one via an env-filtered orphan branch from the
// service's main branch if none is active yet, matching run_sync's own
// golden-branch-materialisation path (C9) reused here for the single-run
// case spec.md §4.10 names "ensure_or_reuse_golden".
func ensureGolden(ctx context.Context, deps Deps, project *forge.Project, svc *models.Service, environment string) (string, error) {
	existing, err := deps.Store.GetActiveGoldenBranch(ctx, svc.ServiceID, environment)
	if err == nil {
		return existing.BranchName, nil
	}
	if err != store.ErrNotFound {
		return "", err
	}

	branchName := newBranchName("golden", environment)
	_, err = deps.Forge.CreateOrphanBranch(ctx, project, forge.OrphanBranchSpec{
		ProjectID:     project.ID,
		SourceBranch:  svc.MainBranch,
		NewBranch:     branchName,
		CommitMessage: fmt.Sprintf("certguard: golden baseline for %s", environment),
		Filter:        classify.EnvironmentFilter(environment),
	})
	if err != nil {
		return "", fmt.Errorf("create golden branch: %w", err)
	}
	if err := deps.Store.ActivateGoldenBranch(ctx, &models.GoldenBranch{
		ServiceID: svc.ServiceID, Environment: environment, BranchName: branchName, BranchType: models.BranchGolden,
	}); err != nil {
		return "", fmt.Errorf("activate golden branch: %w", err)
	}
	return branchName, nil
}

// createDriftSnapshot commits an unfiltered full-tree snapshot of the
// service's current main branch state under a fresh drift branch name, the
// candidate side of the comparison. The env filter is applied later during
// materialisation, not here, so the snapshot itself is a faithful full
// capture of main at run time.
func createDriftSnapshot(ctx context.Context, deps Deps, project *forge.Project, svc *models.Service, environment string) (string, error) {
	branchName := newBranchName("drift", environment)
	_, err := deps.Forge.CreateOrphanBranch(ctx, project, forge.OrphanBranchSpec{
		ProjectID:     project.ID,
		SourceBranch:  svc.MainBranch,
		NewBranch:     branchName,
		CommitMessage: fmt.Sprintf("certguard: drift snapshot for %s", environment),
		Filter:        func(string) bool { return true },
	})
	if err != nil {
		return "", err
	}
	return branchName, nil
}

// activateSnapshotAsGolden promotes an AUTO_MERGE-certified drift snapshot
// into the new active golden baseline, so the next run compares against
// what was just certified rather than re-flagging the same accepted drift
// every time. This mirrors the original pipeline's practice of treating a
// clean validation as the new baseline.
func activateSnapshotAsGolden(ctx context.Context, deps Deps, svc *models.Service, environment, branchName string, confidenceScore int) error {
	s := confidenceScore
	return deps.Store.ActivateGoldenBranch(ctx, &models.GoldenBranch{
		ServiceID: svc.ServiceID, Environment: environment, BranchName: branchName,
		BranchType: models.BranchGolden, CertificationScore: &s,
	})
}

// newBranchName mirrors spec.md §6's naming convention:
// {golden|drift}_{env}_{YYYYMMDD_HHMMSS}_{6-hex-uuid}.
func newBranchName(kind, environment string) string {
	return fmt.Sprintf("%s_%s_%s_%s", kind, environment, time.Now().Format("20060102_150405"), uuid.NewString()[:6])
}

// nowTime is split out from time.Now so tests can be deterministic about
// what they assert without depending on wall-clock values.
func nowTime() time.Time { return time.Now() }

// countDeltasByCategory tallies bundle deltas for metrics.Registry.RecordDeltas.
func countDeltasByCategory(deltas []models.Delta) map[string]int {
	out := map[string]int{}
	for _, d := range deltas {
		out[string(d.Category)]++
	}
	return out
}
