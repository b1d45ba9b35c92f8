package forge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Project is the subset of a GitLab project resource the pipeline needs.
type Project struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Path              string `json:"path"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	WebURL            string `json:"web_url"`
	HTTPURLToRepo     string `json:"http_url_to_repo"`
	Description       string `json:"description"`
	Archived          bool   `json:"archived"`
}

// Branch is the subset of a GitLab branch resource the pipeline needs.
type Branch struct {
	Name    string `json:"name"`
	Commit  struct {
		ID string `json:"id"`
	} `json:"commit"`
}

const perPage = 100

// ListGroupProjects returns every project in groupID, including
// subgroups, paginating through the full result set. This backs Fleet
// Sync's per-group discovery pass.
func (c *Client) ListGroupProjects(ctx context.Context, groupID string) ([]Project, error) {
	var all []Project
	page := 1
	for {
		var batch []Project
		q := url.Values{
			"include_subgroups": {"true"},
			"per_page":          {strconv.Itoa(perPage)},
			"page":              {strconv.Itoa(page)},
			"archived":          {"false"},
		}
		if err := c.do(ctx, "GET", "/groups/"+url.PathEscape(groupID)+"/projects", q, nil, &batch); err != nil {
			return nil, fmt.Errorf("list projects for group %s (page %d): %w", groupID, page, err)
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			break
		}
		page++
	}
	c.log.Debug("listed group projects", map[string]interface{}{"group_id": groupID, "count": len(all)})
	return all, nil
}

// GetProject fetches a single project by numeric ID or URL-encoded path.
func (c *Client) GetProject(ctx context.Context, idOrPath string) (*Project, error) {
	var p Project
	if err := c.do(ctx, "GET", "/projects/"+url.PathEscape(idOrPath), nil, nil, &p); err != nil {
		return nil, fmt.Errorf("get project %s: %w", idOrPath, err)
	}
	return &p, nil
}

// ProjectHasBranch is the fast-path existence check spec.md §4.1 calls for:
// a single branch lookup rather than a full clone, so Fleet Sync's
// bounded-worker probing pass can run hundreds of checks cheaply.
func (c *Client) ProjectHasBranch(ctx context.Context, projectID int, branch string) (bool, error) {
	var b Branch
	err := c.do(ctx, "GET", fmt.Sprintf("/projects/%d/repository/branches/%s", projectID, url.PathEscape(branch)), nil, nil, &b)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check branch %s on project %d: %w", branch, projectID, err)
	}
	return true, nil
}

// ListBranchesByPrefix lists every branch on projectID whose name starts
// with prefix, mirroring list_branches_by_pattern's prefix-matching mode.
func (c *Client) ListBranchesByPrefix(ctx context.Context, projectID int, prefix string) ([]string, error) {
	var names []string
	page := 1
	for {
		var batch []Branch
		q := url.Values{
			"search":   {"^" + prefix},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		if err := c.do(ctx, "GET", fmt.Sprintf("/projects/%d/repository/branches", projectID), q, nil, &batch); err != nil {
			return nil, fmt.Errorf("list branches for project %d (page %d): %w", projectID, page, err)
		}
		for _, b := range batch {
			names = append(names, b.Name)
		}
		if len(batch) < perPage {
			break
		}
		page++
	}
	return names, nil
}

// DeleteBranch removes branch from projectID's remote, mirroring
// delete_remote_branch.
func (c *Client) DeleteBranch(ctx context.Context, projectID int, branch string) error {
	err := c.do(ctx, "DELETE", fmt.Sprintf("/projects/%d/repository/branches/%s", projectID, url.PathEscape(branch)), nil, nil, nil)
	if err == ErrNotFound {
		return nil
	}
	return err
}

// ProjectPathFromRepoURL extracts the group/project path GitLab's API
// expects from a repo clone URL, matching cleanup_services_without_main.py's
// check_main_branch_exists' strip-scheme-and-.git-suffix parsing.
func ProjectPathFromRepoURL(repoURL string) (string, error) {
	trimmed := strings.TrimSuffix(repoURL, ".git")
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse repo url: %w", err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("no project path in repo url %q", repoURL)
	}
	return path, nil
}
