package forge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FileFilter decides whether a repo-relative path belongs in a golden or
// drift branch snapshot. The Config Classifier and environment tagger
// (internal/classify) supply the concrete filters; this package only knows
// how to drive git plumbing.
type FileFilter func(path string) bool

// OrphanBranchSpec describes the branch to materialise.
type OrphanBranchSpec struct {
	ProjectID     int
	SourceBranch  string // branch to read the tree from, e.g. "main"
	NewBranch     string
	CommitMessage string
	Filter        FileFilter
}

// OrphanBranchResult reports what was actually committed.
type OrphanBranchResult struct {
	FilesIncluded int
	CommitSHA     string
}

// CreateOrphanBranch builds a new branch with no parent history, containing
// only the blobs from SourceBranch that Filter accepts, preserving their
// original file mode and blob hash. This mirrors
// create_env_specific_config_branch's read-tree/update-index sequence:
// rather than checking out and deleting files, it builds the tree entry by
// entry from the source commit's object IDs, so history and large binary
// blobs from rejected files are never fetched into the working tree at all.
func (c *Client) CreateOrphanBranch(ctx context.Context, project *Project, spec OrphanBranchSpec) (*OrphanBranchResult, error) {
	workDir, err := os.MkdirTemp("", "certguard-orphan-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	run := func(args ...string) (string, error) {
		return c.runGit(ctx, workDir, args...)
	}

	if _, err := run("init", "-q"); err != nil {
		return nil, fmt.Errorf("git init: %w", err)
	}

	authURL := c.authenticatedCloneURL(project.WebURL)
	if _, err := run("remote", "add", "origin", authURL); err != nil {
		return nil, fmt.Errorf("git remote add: %w", err)
	}

	if _, err := run("fetch", "--depth", "1", "origin", spec.SourceBranch); err != nil {
		return nil, fmt.Errorf("git fetch %s: %w", spec.SourceBranch, err)
	}

	if _, err := run("checkout", "--orphan", spec.NewBranch, "FETCH_HEAD"); err != nil {
		return nil, fmt.Errorf("git checkout --orphan: %w", err)
	}
	// Clear whatever the orphan checkout staged; the tree is rebuilt
	// explicitly below, entry by entry.
	_, _ = run("rm", "-rf", "--cached", ".")

	if _, err := run("read-tree", "--empty"); err != nil {
		return nil, fmt.Errorf("git read-tree --empty: %w", err)
	}

	lsTree, err := run("ls-tree", "-r", "--name-only", "FETCH_HEAD")
	if err != nil {
		return nil, fmt.Errorf("git ls-tree: %w", err)
	}
	var allFiles []string
	for _, line := range strings.Split(lsTree, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			allFiles = append(allFiles, line)
		}
	}

	included := 0
	for _, path := range allFiles {
		if spec.Filter != nil && !spec.Filter(path) {
			continue
		}
		entry, err := run("ls-tree", "FETCH_HEAD", "--", path)
		if err != nil || strings.TrimSpace(entry) == "" {
			continue
		}
		mode, objType, hash, ok := parseLsTreeEntry(entry)
		if !ok || objType != "blob" {
			continue
		}
		cacheinfo := fmt.Sprintf("%s,%s,%s", mode, hash, path)
		if _, err := run("update-index", "--add", "--cacheinfo", cacheinfo); err != nil {
			c.log.Warn("could not stage file into orphan branch", map[string]interface{}{
				"path": path, "error": err.Error(),
			})
			continue
		}
		included++
	}

	if included == 0 {
		return nil, fmt.Errorf("no files matched filter for branch %s", spec.NewBranch)
	}

	if _, err := run("-c", "user.name="+c.committer.Name, "-c", "user.email="+c.committer.Email,
		"commit", "-q", "-m", spec.CommitMessage); err != nil {
		return nil, fmt.Errorf("git commit: %w", err)
	}

	sha, err := run("rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	sha = strings.TrimSpace(sha)

	if _, err := run("push", "--set-upstream", "origin", fmt.Sprintf("HEAD:refs/heads/%s", spec.NewBranch)); err != nil {
		return nil, fmt.Errorf("git push %s: %w", spec.NewBranch, err)
	}

	c.log.Info("created orphan branch", map[string]interface{}{
		"project_id": project.ID, "branch": spec.NewBranch, "files": included, "sha": sha,
	})
	return &OrphanBranchResult{FilesIncluded: included, CommitSHA: sha}, nil
}

// parseLsTreeEntry splits a single `git ls-tree` line of the form
// "<mode> <type> <hash>\t<path>" into its components.
func parseLsTreeEntry(line string) (mode, objType, hash string, ok bool) {
	line = strings.TrimSpace(line)
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return "", "", "", false
	}
	fields := strings.Fields(line[:tab])
	if len(fields) != 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// authenticatedCloneURL injects the client's token into an https clone URL,
// mirroring setup_git_auth's oauth2 token substitution.
func (c *Client) authenticatedCloneURL(webURL string) string {
	cloneURL := strings.TrimSuffix(webURL, "/") + ".git"
	if strings.HasPrefix(cloneURL, "https://") && c.token != "" {
		return strings.Replace(cloneURL, "https://", fmt.Sprintf("https://oauth2:%s@", c.token), 1)
	}
	return cloneURL
}

func (c *Client) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// DefaultCloneDir returns a fresh temp directory under base for one forge
// operation, suffixed with a purpose tag for easier debugging of stray dirs.
func DefaultCloneDir(base, purpose string) (string, error) {
	dir, err := os.MkdirTemp(base, "certguard-"+purpose+"-")
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}
