package tools_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petasbytes/toolguard/internal/fsops"
)

// newRoot creates a spill root populated with files.
func newRoot(t *testing.T, files map[string]string) fsops.Root {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("prepare: %v", err)
		}
	}
	root, err := fsops.NewRoot(dir)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root
}
