// Package fsops reads saved tool output files under a single root directory.
package fsops

import (
	"github.com/petasbytes/toolguard/internal/safety"
)

// Root is a resolved directory holding spill files, usually a session's directory.
type Root struct {
	dir string
}

// NewRoot resolves dir once so every later check compares against the same absolute path.
func NewRoot(dir string) (Root, error) {
	abs, err := safety.ResolveRoot(dir)
	if err != nil {
		return Root{}, err
	}
	return Root{dir: abs}, nil
}

func (r Root) Dir() string { return r.dir }
