package drift

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/catherinevee/certguard/internal/models"
	"github.com/pmezard/go-difflib/difflib"
)

const maxHunksPerFile = 400

// Hunk is one parsed "@@ -a,b +c,d @@" region of a unified diff.
type Hunk struct {
	Header   string
	Body     string
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@.*$`)

// HunksForFile produces code_hunk deltas plus the raw unidiff text for one
// modified file, matching _hunks_for_file: prefer `git diff --no-index`,
// fall back to a difflib-built unified diff when git is unavailable or
// produces nothing (e.g. the working tree itself isn't a git repo).
func HunksForFile(goldenPath, candidatePath, rel string) ([]models.Delta, string, error) {
	patch, err := gitDiffNoIndex(candidatePath, goldenPath)
	if err != nil {
		log.Debug("git diff --no-index unavailable, using difflib fallback", map[string]interface{}{
			"file": rel, "error": err.Error(),
		})
	}
	if strings.TrimSpace(patch) == "" {
		a, errA := os.ReadFile(goldenPath)
		b, errB := os.ReadFile(candidatePath)
		if errA != nil && errB != nil {
			return nil, "", nil
		}
		patch = difflibGitlikePatch(string(b), string(a), rel)
	}

	ext := strings.ToLower(filepath.Ext(goldenPath))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(candidatePath))
	}

	var deltas []models.Delta
	used := 0
	for _, h := range parseGitPatchHunks(patch) {
		if used >= maxHunksPerFile {
			break
		}
		if looksCommentOnly(h.Body, ext) {
			continue
		}
		snippet := h.Header + "\n" + h.Body
		if len(snippet) > 4000 {
			snippet = snippet[:4000]
		}
		id := fmt.Sprintf("hunk:%s:%d-%d->%d-%d", rel, h.OldStart, h.OldStart+h.OldLines-1, h.NewStart, h.NewStart+h.NewLines-1)
		loc := models.Locator{
			Type:       models.LocatorUnidiff,
			Value:      fmt.Sprintf("%s#%d-%d-%d-%d", rel, h.OldStart, h.OldLines, h.NewStart, h.NewLines),
			OldStart:   h.OldStart,
			OldLines:   h.OldLines,
			NewStart:   h.NewStart,
			NewLines:   h.NewLines,
			HunkHeader: h.Header,
		}
		d := newDelta(id, models.CategoryCodeHunk, rel, loc, "", "")
		d.CodeSnippet = snippet
		deltas = append(deltas, d)
		used++
	}
	return deltas, patch, nil
}

// gitDiffNoIndex shells out to `git diff --no-index --binary -U3 a b`,
// matching _git_diff_no_index. git diff --no-index exits 1 on any
// difference, which is not an error for this caller's purposes.
func gitDiffNoIndex(a, b string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-index", "--binary", "-U3", "--", a, b)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return stdout.String(), nil
		}
		return "", fmt.Errorf("git diff --no-index: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// difflibGitlikePatch builds a unified diff between b (new) and a (old) text
// using go-difflib when the system git binary can't be invoked, matching
// _difflib_gitlike_patch's role as a pure-library fallback.
func difflibGitlikePatch(b, a, rel string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "a/" + rel,
		ToFile:   "b/" + rel,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return out
}

// parseGitPatchHunks splits a unified-diff body into its @@ ... @@ hunks,
// matching _parse_git_patch_hunks.
func parseGitPatchHunks(patch string) []Hunk {
	var hunks []Hunk
	lines := strings.Split(patch, "\n")
	var cur *Hunk
	var body strings.Builder

	flush := func() {
		if cur != nil {
			cur.Body = strings.TrimSuffix(body.String(), "\n")
			hunks = append(hunks, *cur)
		}
	}

	for _, line := range lines {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			oldStart, _ := strconv.Atoi(m[1])
			oldLines := 1
			if m[2] != "" {
				oldLines, _ = strconv.Atoi(m[2])
			}
			newStart, _ := strconv.Atoi(m[3])
			newLines := 1
			if m[4] != "" {
				newLines, _ = strconv.Atoi(m[4])
			}
			cur = &Hunk{Header: line, OldStart: oldStart, OldLines: oldLines, NewStart: newStart, NewLines: newLines}
			body.Reset()
			continue
		}
		if cur != nil && len(line) > 0 && (line[0] == ' ' || line[0] == '+' || line[0] == '-') {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()
	return hunks
}

var commentPrefixByExt = map[string]string{
	".py": "#", ".rb": "#", ".sh": "#", ".yml": "#", ".yaml": "#",
	".properties": "#", ".conf": "#", ".cfg": "#", ".ini": ";",
	".java": "//", ".go": "//", ".ts": "//", ".js": "//", ".c": "//",
	".cpp": "//", ".h": "//", ".hpp": "//", ".cs": "//", ".groovy": "//",
	".gradle": "//", ".kts": "//",
}

// looksCommentOnly reports whether every changed line (+/-) in body is a
// comment line for the given extension, matching _looks_comment_only.
func looksCommentOnly(body, ext string) bool {
	prefix, ok := commentPrefixByExt[ext]
	if !ok {
		return false
	}
	any := false
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if line[0] != '+' && line[0] != '-' {
			continue
		}
		content := strings.TrimSpace(line[1:])
		if content == "" {
			continue
		}
		any = true
		if !strings.HasPrefix(content, prefix) {
			return false
		}
	}
	return any
}

// IsText reports whether path looks like a text file (no NUL byte in the
// first 8KB and valid UTF-8), matching _is_text's heuristic.
func IsText(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 8192)
	n, _ := f.Read(buf)
	chunk := buf[:n]
	if bytes.IndexByte(chunk, 0) >= 0 {
		return false
	}
	return utf8.Valid(chunk)
}
