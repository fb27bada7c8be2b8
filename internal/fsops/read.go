package fsops

import (
	"os"

	"github.com/petasbytes/toolguard/internal/safety"
)

// ReadFile reads a spill file addressed by a path relative to the root or an
// absolute path inside it. Policy violations come back as safety.ToolError.
func (r Root) ReadFile(p string) (string, error) {
	absPath, err := safety.ValidateSpillPath(r.dir, p)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", safety.ToolError{Code: "ERR_NOT_FOUND", Message: "no saved tool output at that path"}
		}
		return "", err
	}
	if fi.IsDir() {
		return "", safety.ToolError{Code: "ERR_NOT_A_FILE", Message: "path is a directory"}
	}

	b, err := os.ReadFile(absPath)
	if err != nil {
		return "", err // standard error for I/O issues (not policy)
	}
	return string(b), nil
}
