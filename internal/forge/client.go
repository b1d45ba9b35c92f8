// Package forge implements the Forge Client (C1): all interaction with the
// upstream Git hosting API (GitLab-compatible REST v4) plus the local git
// plumbing needed to materialise environment-filtered orphan branches.
// It is grounded on shared/git_operations.py, generalised from GitPython's
// subprocess-backed porcelain calls to Go's exec.Command over the system
// git binary, with HTTP calls routed through a retrying client instead of
// git's own transport.
package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/retry"
)

// Client talks to a GitLab-compatible forge over its REST v4 API and drives
// the local git binary for branch materialisation.
type Client struct {
	baseURL    string
	token      string
	httpClient *retryablehttp.Client
	committer  Committer
	log        *logging.Logger
}

// Committer identifies the author/committer used for orphan-branch commits.
type Committer struct {
	Name  string
	Email string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPTimeout overrides the per-request HTTP timeout (default 30s).
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.HTTPClient.Timeout = d }
}

// New builds a Client against baseURL (e.g. "https://gitlab.example.com")
// authenticating with a personal/project access token.
func New(baseURL, token string, committer Committer, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil // the teacher routes retryablehttp's own logging through
	// our structured logger only at the call site, not via its plain logger.
	rc.HTTPClient.Timeout = 30 * time.Second

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: rc,
		committer:  committer,
		log:        logging.WithComponent("forge"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is returned for non-2xx responses, classified as retryable or
// terminal by the retry package.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("forge API error: status=%d body=%s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	return retry.Do(ctx, retry.ForgeHTTPPolicy(), func(ctx context.Context) error {
		var reader *bytes.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(b)
		} else {
			reader = bytes.NewReader(nil)
		}

		full := c.baseURL + "/api/v4" + path
		if len(query) > 0 {
			full += "?" + query.Encode()
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, method, full, reader)
		if err != nil {
			return err
		}
		req.Header.Set("PRIVATE-TOKEN", c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retry.TransientError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return retry.ErrAuth
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &retry.TransientError{Err: &apiError{Status: resp.StatusCode}}
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode >= 400 {
			return &apiError{Status: resp.StatusCode}
		}

		if out != nil {
			dec := json.NewDecoder(resp.Body)
			return dec.Decode(out)
		}
		return nil
	})
}
