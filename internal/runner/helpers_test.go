package runner_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/toolguard/internal/fsops"
	"github.com/petasbytes/toolguard/internal/runner"
	"github.com/petasbytes/toolguard/internal/transcript"
	"github.com/petasbytes/toolguard/tools"
)

type capture struct {
	method string
	url    string
	body   []byte
}

type fakeTransport struct {
	respStatus int
	respBody   []byte
	captured   *capture
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if f.captured != nil {
		f.captured.method = req.Method
		f.captured.url = req.URL.String()
		f.captured.body = b
	}
	resp := &http.Response{
		StatusCode: f.respStatus,
		Body:       io.NopCloser(bytes.NewReader(f.respBody)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newClientWithTransport(rt http.RoundTripper) *anthropic.Client {
	c := anthropic.NewClient(
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return &c
}

// newRunner wires a runner to a fake provider answering with resp.
func newRunner(t *testing.T, resp string, budget int, defs ...tools.ToolDefinition) (*runner.Runner, *capture) {
	t.Helper()
	if defs == nil {
		root, err := fsops.NewRoot(t.TempDir())
		if err != nil {
			t.Fatalf("NewRoot: %v", err)
		}
		defs = tools.Registry(root)
	}
	c := &capture{}
	cli := newClientWithTransport(&fakeTransport{respStatus: 200, respBody: []byte(resp), captured: c})
	return runner.New(cli, defs, budget), c
}

// observe turns on the JSONL trail in a per-test directory.
func observe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_ARTIFACTS_DIR", dir)
	return dir
}

func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

// lastEvent returns the newest event with the given name.
func lastEvent(events []map[string]any, name string) map[string]any {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i]["event"] == name {
			return events[i]
		}
	}
	return nil
}

func userText(s string) transcript.Entry {
	return transcript.UserEntry{Content: []transcript.Block{transcript.TextBlock{Text: s}}}
}

const emptyResponse = `{"content":[],"role":"assistant"}`
