// Package safety confines tool file access to the session spill directory.
package safety

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/petasbytes/toolguard/internal/spill"
)

// ToolError is a machine-readable error body for surfacing back to the agent as JSON.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool_result payloads small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// ResolveRoot makes root absolute and resolves symlinks where possible so
// later boundary checks are reliable. An empty root means the working directory.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "getwd")
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "abs(%s)", root)
	}
	// EvalSymlinks fails for a directory that does not exist yet; keep the absolute path.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

// ValidateSpillPath resolves p against absRoot and returns an absolute path
// inside it. Absolute inputs are accepted when they land inside the root, which
// is how truncation notices cite spill files. Parent traversal, symlink escapes
// and anything that is not a spill file are rejected with a ToolError.
func ValidateSpillPath(absRoot, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ToolError{Code: "ERR_INVALID_PATH", Message: "path is required"}
	}

	candidate := filepath.Clean(p)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}

	// Resolve the whole candidate if it exists, else its parent, so a
	// symlinked ancestor cannot hide an escape.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if parent, err2 := filepath.EvalSymlinks(filepath.Dir(candidate)); err2 == nil {
		candidate = filepath.Join(parent, filepath.Base(candidate))
	}

	if !within(absRoot, candidate) {
		return "", ToolError{Code: "ERR_PATH_OUTSIDE_SANDBOX", Message: "requested path resolves outside the tool output directory"}
	}
	if !spill.IsSpillFile(filepath.Base(candidate)) {
		return "", ToolError{Code: "ERR_NOT_TOOL_OUTPUT", Message: "only saved tool output files can be read"}
	}
	return candidate, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
