package fsops_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/petasbytes/toolguard/internal/fsops"
	"github.com/petasbytes/toolguard/internal/safety"
)

func setupRoot(t *testing.T, files map[string]string) fsops.Root {
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

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var te safety.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ToolError, got %T: %v", err, err)
	}
	if te.Code != code {
		t.Fatalf("unexpected code: got %s want %s", te.Code, code)
	}
}

func TestReadFile_HappyPath(t *testing.T) {
	root := setupRoot(t, map[string]string{"s.tool_result.a.txt": "hello world"})

	got, err := root.ReadFile("s.tool_result.a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}

	got, err = root.ReadFile(filepath.Join(root.Dir(), "s.tool_result.a.txt"))
	if err != nil || got != "hello world" {
		t.Fatalf("absolute path: got %q err %v", got, err)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	root := setupRoot(t, nil)
	_, err := root.ReadFile("s.tool_result.missing.txt")
	requireCode(t, err, "ERR_NOT_FOUND")
}

func TestReadFile_DirectoryIsNotAFile(t *testing.T) {
	root := setupRoot(t, nil)
	if err := os.Mkdir(filepath.Join(root.Dir(), "d.tool_result.x.txt"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	_, err := root.ReadFile("d.tool_result.x.txt")
	requireCode(t, err, "ERR_NOT_A_FILE")
}

func TestReadFile_TranscriptIsNotReadable(t *testing.T) {
	root := setupRoot(t, map[string]string{"s.jsonl": "{}"})
	_, err := root.ReadFile("s.jsonl")
	requireCode(t, err, "ERR_NOT_TOOL_OUTPUT")
}

func TestReadFile_Traversal(t *testing.T) {
	root := setupRoot(t, nil)
	_, err := root.ReadFile("../../x.tool_result.a.txt")
	requireCode(t, err, "ERR_PATH_OUTSIDE_SANDBOX")
}

func TestListSpills_OnlySpillFilesSorted(t *testing.T) {
	root := setupRoot(t, map[string]string{
		"s.tool_result.b.txt": "",
		"s.tool_result.a.txt": "",
		"s.jsonl":             "",
		"notes.txt":           "",
	})
	if err := os.Mkdir(filepath.Join(root.Dir(), "sub.tool_result.c.txt"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	names, err := root.ListSpills()
	if err != nil {
		t.Fatalf("ListSpills: %v", err)
	}
	want := []string{"s.tool_result.a.txt", "s.tool_result.b.txt"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("got %v want %v", names, want)
	}
}

func TestListSpills_MissingRootIsEmpty(t *testing.T) {
	root, err := fsops.NewRoot(filepath.Join(t.TempDir(), "not-yet"))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	names, err := root.ListSpills()
	if err != nil || len(names) != 0 {
		t.Fatalf("got %v, %v", names, err)
	}
}
