package sizeguard_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/toolguard/internal/sizeguard"
	"github.com/petasbytes/toolguard/internal/spill"
	"github.com/petasbytes/toolguard/internal/transcript"
)

func result(id string, blocks ...transcript.Block) transcript.ToolResultEntry {
	return transcript.ToolResultEntry{CallID: id, ToolName: "bash", Content: blocks}
}

func text(s string) transcript.TextBlock { return transcript.TextBlock{Text: s} }

func onlyText(t *testing.T, e transcript.ToolResultEntry, i int) string {
	t.Helper()
	tb, ok := e.Content[i].(transcript.TextBlock)
	require.True(t, ok, "block %d is %T", i, e.Content[i])
	return tb.Text
}

func failingStore() spill.Writer {
	return spill.WriterFunc(func(string, string, string) spill.Outcome {
		return spill.Outcome{Err: os.ErrPermission}
	})
}

func TestCap_UnderLimit_Unchanged(t *testing.T) {
	calls := 0
	store := spill.WriterFunc(func(string, string, string) spill.Outcome {
		calls++
		return spill.Outcome{}
	})
	g := sizeguard.New(sizeguard.DefaultLimits(), store)

	in := result("c1", text(strings.Repeat("a", 2000)), text(strings.Repeat("b", 2000)))
	out := g.Cap(in, sizeguard.Meta{SessionPath: "/tmp/s.jsonl", CallID: "c1"})
	require.Equal(t, in, out)
	require.Zero(t, calls, "no spill below the soft limit")
}

func TestCapEntry_NonResultPassThrough(t *testing.T) {
	g := sizeguard.New(sizeguard.DefaultLimits(), failingStore())
	in := transcript.UserEntry{Content: []transcript.Block{text(strings.Repeat("u", 9000))}}
	require.Equal(t, transcript.Entry(in), g.CapEntry(in, sizeguard.Meta{}))
}

// 5000 repeated characters and no session storage.
func TestCap_NoStorage_InlineOnly(t *testing.T) {
	g := sizeguard.New(sizeguard.DefaultLimits(), nil)

	out := g.Cap(result("c1", text(strings.Repeat("x", 5000))), sizeguard.Meta{CallID: "c1"})
	got := onlyText(t, out, 0)

	require.True(t, strings.HasPrefix(got, strings.Repeat("x", 1000)+"\n\n["))
	require.True(t, strings.HasSuffix(got, "]\n\n"+strings.Repeat("x", 1000)))
	require.Contains(t, got, "original length 5000 characters")
	require.Contains(t, got, "kept the first 1000 and the last 1000 characters")
	require.Contains(t, got, "could not be persisted")
}

func TestCap_SpillsToSessionDirectory(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "sess.jsonl")
	g := sizeguard.New(sizeguard.DefaultLimits(), spill.FileStore{})

	body := strings.Repeat("0123456789", 600)
	out := g.Cap(result("call_7", text(body)), sizeguard.Meta{SessionPath: session, CallID: "call_7"})

	wantPath := filepath.Join(dir, "sess.tool_result.call_7.txt")
	b, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	require.Equal(t, body, string(b))

	got := onlyText(t, out, 0)
	require.Contains(t, got, "Full output saved to "+wantPath)
	require.Contains(t, got, "original length 6000 characters")
	require.NotContains(t, got, "could not be persisted")
}

func TestCap_SpillsJoinedTextButKeepsSmallBlocks(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "s.jsonl")
	g := sizeguard.New(sizeguard.DefaultLimits(), spill.FileStore{})

	img := transcript.ImageBlock{MIMEType: "image/png", Data: "iVBOR"}
	a := strings.Repeat("a", 3000)
	b := strings.Repeat("b", 3000)
	in := result("c2", text(a), img, text(b))

	out := g.Cap(in, sizeguard.Meta{SessionPath: session, CallID: "c2"})
	// No single block is over the limit, so content is untouched.
	require.Equal(t, in.Content, out.Content)

	spilled, err := os.ReadFile(spill.PathFor(session, "c2"))
	require.NoError(t, err)
	require.Equal(t, a+"\n"+b, string(spilled))
}

func TestCap_OnlyOversizedBlocksReplaced(t *testing.T) {
	g := sizeguard.New(sizeguard.DefaultLimits(), failingStore())

	small := strings.Repeat("s", 100)
	big := strings.Repeat("B", 4500)
	img := transcript.ImageBlock{MIMEType: "image/jpeg", Data: "/9j/"}
	out := g.Cap(result("c3", text(small), img, text(big)), sizeguard.Meta{CallID: "c3"})

	require.Len(t, out.Content, 3)
	require.Equal(t, small, onlyText(t, out, 0))
	require.Equal(t, img, out.Content[1])
	require.Contains(t, onlyText(t, out, 2), "original length 4500 characters")
	require.Equal(t, "c3", out.CallID)
	require.Equal(t, "bash", out.ToolName)
}

func TestCap_NoCallID_UsesTimestampQualifier(t *testing.T) {
	var gotQualifier string
	store := spill.WriterFunc(func(base, q, _ string) spill.Outcome {
		gotQualifier = q
		return spill.Outcome{Path: spill.PathFor(base, q)}
	})
	fixed := time.UnixMilli(1700000000123)
	g := sizeguard.New(sizeguard.DefaultLimits(), store, sizeguard.WithClock(func() time.Time { return fixed }))

	out := g.Cap(result("", text(strings.Repeat("z", 4001))), sizeguard.Meta{SessionPath: "/s/x.jsonl"})
	require.Equal(t, "1700000000123", gotQualifier)
	require.Contains(t, onlyText(t, out, 0), "/s/x.tool_result.1700000000123.txt")
}

func TestSplit_HeadSnapsBackToLineBreak(t *testing.T) {
	g := sizeguard.New(sizeguard.DefaultLimits(), nil)

	// Newline at index 900 lies in the last 20% of the 1000 rune head window.
	s := strings.Repeat("h", 900) + "\n" + strings.Repeat("m", 5000)
	rec := g.Split(s)
	require.Equal(t, 900, rec.HeadChars)
	require.Equal(t, strings.Repeat("h", 900), rec.Head)

	// Newline at index 500 is too early; no snapping.
	s = strings.Repeat("h", 500) + "\n" + strings.Repeat("m", 5000)
	rec = g.Split(s)
	require.Equal(t, 1000, rec.HeadChars)
}

func TestSplit_TailSnapsForwardToLineBreak(t *testing.T) {
	g := sizeguard.New(sizeguard.DefaultLimits(), nil)

	// Tail window is the last 1000 runes; the newline sits 100 runes into it.
	s := strings.Repeat("m", 5000) + strings.Repeat("t", 100) + "\n" + strings.Repeat("e", 899)
	rec := g.Split(s)
	require.Equal(t, strings.Repeat("e", 899), rec.Tail)
	require.Equal(t, 899, rec.TailChars)

	// Newline 500 runes into the tail window is outside the first 20%.
	s = strings.Repeat("m", 5000) + strings.Repeat("t", 500) + "\n" + strings.Repeat("e", 499)
	rec = g.Split(s)
	require.Equal(t, 1000, rec.TailChars)
}

func TestSplit_RatiosAreTunable(t *testing.T) {
	limits := sizeguard.DefaultLimits()
	limits.HeadSnapRatio = 0.4
	g := sizeguard.New(limits, nil)

	s := strings.Repeat("h", 500) + "\n" + strings.Repeat("m", 5000)
	require.Equal(t, 500, g.Split(s).HeadChars)

	// Newline 500 runes into the tail window: ignored at 0.2, used at 0.6.
	s = strings.Repeat("m", 5000) + strings.Repeat("t", 500) + "\n" + strings.Repeat("e", 499)
	require.Equal(t, 1000, g.Split(s).TailChars)

	limits.TailSnapRatio = 0.6
	g = sizeguard.New(limits, nil)
	rec := g.Split(s)
	require.Equal(t, 499, rec.TailChars)
	require.Equal(t, strings.Repeat("e", 499), rec.Tail)

	// A tail ratio of 0.05 no longer reaches a newline 100 runes in.
	limits = sizeguard.DefaultLimits()
	limits.TailSnapRatio = 0.05
	g = sizeguard.New(limits, nil)
	s = strings.Repeat("m", 5000) + strings.Repeat("t", 100) + "\n" + strings.Repeat("e", 899)
	require.Equal(t, 1000, g.Split(s).TailChars)
}

func TestSplit_RetentionLargerThanHalf(t *testing.T) {
	limits := sizeguard.Limits{SoftLimit: 10, Retention: 8, HeadSnapRatio: 0.8, TailSnapRatio: 0.2}
	g := sizeguard.New(limits, nil)

	rec := g.Split("abcdefghijkl") // 12 runes
	require.Equal(t, 8, rec.HeadChars)
	require.Equal(t, 4, rec.TailChars)
	require.Equal(t, "abcdefgh", rec.Head)
	require.Equal(t, "ijkl", rec.Tail)
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	g := sizeguard.New(sizeguard.Limits{SoftLimit: 4, Retention: 2, HeadSnapRatio: 0.8, TailSnapRatio: 0.2}, nil)
	rec := g.Split("世界和平你好")
	require.Equal(t, 6, rec.OriginalChars)
	require.Equal(t, "世界", rec.Head)
	require.Equal(t, "你好", rec.Tail)
}

func TestCap_Deterministic(t *testing.T) {
	g := sizeguard.New(sizeguard.DefaultLimits(), failingStore())
	in := result("c9", text(strings.Repeat("line of text\n", 800)))
	a := g.Cap(in, sizeguard.Meta{CallID: "c9"})
	b := g.Cap(in, sizeguard.Meta{CallID: "c9"})
	require.Equal(t, a, b)
}

func TestCapProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	limits := sizeguard.DefaultLimits()
	g := sizeguard.New(limits, failingStore())

	// build makes a text of n runes with a line break every stride runes.
	build := func(n, stride int) string {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			if i%stride == stride-1 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte('x')
			}
		}
		return sb.String()
	}

	properties.Property("within the soft limit the entry is unchanged", prop.ForAll(
		func(n, stride int) bool {
			in := result("p", text(build(n, stride)))
			out := g.Cap(in, sizeguard.Meta{CallID: "p"})
			return onlyTextEqual(in, out)
		},
		gen.IntRange(0, limits.SoftLimit),
		gen.IntRange(1, 400),
	))

	properties.Property("over the limit the notice reports exact sizes", prop.ForAll(
		func(n, stride int) bool {
			s := build(n, stride)
			out := g.Cap(result("p", text(s)), sizeguard.Meta{CallID: "p"})
			rec := g.Split(s)
			got := out.Content[0].(transcript.TextBlock).Text
			return rec.OriginalChars == n &&
				rec.HeadChars == utf8.RuneCountInString(rec.Head) &&
				rec.TailChars == utf8.RuneCountInString(rec.Tail) &&
				rec.HeadChars <= limits.Retention &&
				rec.TailChars <= limits.Retention &&
				got == rec.Head+sizeguard.Notice(rec)+rec.Tail &&
				strings.Contains(got, "original length "+strconv.Itoa(n)+" characters") &&
				strings.HasPrefix(s, rec.Head) &&
				strings.HasSuffix(s, rec.Tail)
		},
		gen.IntRange(limits.SoftLimit+1, 20000),
		gen.IntRange(1, 400),
	))

	properties.TestingRun(t)
}

func onlyTextEqual(a, b transcript.ToolResultEntry) bool {
	if len(a.Content) != len(b.Content) {
		return false
	}
	for i := range a.Content {
		if a.Content[i] != b.Content[i] {
			return false
		}
	}
	return true
}
