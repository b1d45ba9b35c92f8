package cmd

import (
	"context"
	"fmt"

	"github.com/catherinevee/certguard/internal/appconfig"
	"github.com/catherinevee/certguard/internal/drift"
	"github.com/catherinevee/certguard/internal/forge"
	"github.com/catherinevee/certguard/internal/llm"
	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/notify"
	"github.com/catherinevee/certguard/internal/orchestrator"
	"github.com/catherinevee/certguard/internal/store"
)

// wired bundles every collaborator built from appconfig.Config, shared by
// the run/fleet/validate-roster subcommands so each one does not
// re-implement client construction.
type wired struct {
	cfg     *appconfig.Config
	forge   *forge.Client
	llm     llm.Client
	store   *store.Store
	policy  drift.PolicyConfig
	notify  notify.Sink
	tempDir string
}

var policyFile string

func wireUp(ctx context.Context) (*wired, error) {
	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Init(&logging.Config{Level: cfg.LogLevel, Format: "json", Output: "stdout"}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	forgeClient := forge.New(cfg.ForgeBaseURL, cfg.ForgeToken, forge.Committer{
		Name: cfg.GitCommitterName, Email: cfg.GitCommitterEmail,
	})

	llmClient, err := llm.NewBedrockClient(ctx, llm.Config{
		ModelID: cfg.LLMWorkerModelID, Region: cfg.LLMRegion, MaxRetries: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}

	policy, err := drift.LoadPolicyConfig(policyFile)
	if err != nil {
		st.Close()
		return nil, err
	}

	tempDir, err := cfg.TempBaseDir()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}

	return &wired{
		cfg: cfg, forge: forgeClient, llm: llmClient, store: st, policy: policy,
		notify:  notify.FromConfig(cfg.SlackWebhookURL, cfg.TeamsWebhookURL, nil),
		tempDir: tempDir,
	}, nil
}

func (w *wired) Close() error {
	return w.store.Close()
}

func (w *wired) orchestratorDeps() orchestrator.Deps {
	return orchestrator.Deps{
		Forge: w.forge, LLM: w.llm, Store: w.store, Policy: w.policy, TempDir: w.tempDir,
	}
}
