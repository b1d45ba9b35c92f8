package forge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CheckoutSpec configures a sparse_checkout call: which branch to read and
// which path patterns to materialise.
type CheckoutSpec struct {
	Branch   string
	Patterns []string   // gitignore-style patterns, non-cone sparse-checkout
	Filter   FileFilter // optional environment filter (§4.3), applied after Patterns
}

// SparseCheckout clones project at depth 1 into dest using git's non-cone
// sparse-checkout mode, materialising only the paths matching Patterns,
// then further dropping any path Filter rejects, matching
// sparse_checkout's "clone depth 1, sparse-checkout in non-cone mode,
// exclude .git/, apply env filter" contract. Returns the repo-relative
// paths actually left on disk.
func (c *Client) SparseCheckout(ctx context.Context, project *Project, dest string, spec CheckoutSpec) ([]string, error) {
	run := func(args ...string) (string, error) {
		return c.runGit(ctx, dest, args...)
	}

	if _, err := run("init", "-q"); err != nil {
		return nil, fmt.Errorf("git init: %w", err)
	}
	authURL := c.authenticatedCloneURL(project.WebURL)
	if _, err := run("remote", "add", "origin", authURL); err != nil {
		return nil, fmt.Errorf("git remote add: %w", err)
	}
	if _, err := run("sparse-checkout", "init", "--no-cone"); err != nil {
		return nil, fmt.Errorf("git sparse-checkout init: %w", err)
	}

	patterns := spec.Patterns
	if len(patterns) == 0 {
		patterns = []string{"/*"}
	}
	setArgs := append([]string{"sparse-checkout", "set", "--no-cone"}, patterns...)
	if _, err := run(setArgs...); err != nil {
		return nil, fmt.Errorf("git sparse-checkout set: %w", err)
	}

	if _, err := run("fetch", "--depth", "1", "origin", spec.Branch); err != nil {
		return nil, fmt.Errorf("git fetch %s: %w", spec.Branch, err)
	}
	if _, err := run("checkout", "FETCH_HEAD"); err != nil {
		return nil, fmt.Errorf("git checkout %s: %w", spec.Branch, err)
	}

	var materialised []string
	err := filepath.Walk(dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dest, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel = filepath.ToSlash(rel)
		if spec.Filter != nil && !spec.Filter(rel) {
			_ = os.Remove(path)
			return nil
		}
		materialised = append(materialised, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk materialised tree: %w", err)
	}

	c.log.Info("sparse checkout complete", map[string]interface{}{
		"project_id": project.ID, "branch": spec.Branch, "files": len(materialised),
	})
	return materialised, nil
}
