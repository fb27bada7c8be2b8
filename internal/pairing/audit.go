package pairing

import (
	"fmt"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// ViolationKind classifies a pairing problem found by Audit.
type ViolationKind string

const (
	// UnresolvedCall is a call still open when an unrelated entry was recorded.
	UnresolvedCall ViolationKind = "unresolved_call"
	// OrphanResult is a result whose id matches no open call.
	OrphanResult ViolationKind = "orphan_result"
)

type Violation struct {
	Kind   ViolationKind
	Index  int // entry index where the problem was detected
	CallID string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s call_id=%q at entry %d", v.Kind, v.CallID, v.Index)
}

// Report summarizes an audit.
type Report struct {
	Entries    int
	Calls      int
	Results    int
	Synthetic  int
	Violations []Violation
	// Dangling holds calls still open at the end of the transcript. A live
	// session legitimately ends this way, so they are not violations.
	Dangling []string
}

// OK reports whether no violations were found.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Audit walks entries in order and reports every place where a tool call is
// not resolved before an unrelated entry. Open calls are closed by user and
// custom entries and by assistant entries that issue new calls; an assistant
// entry with no calls leaves them open.
func Audit(entries []transcript.Entry) Report {
	rep := Report{Entries: len(entries)}
	var open []string
	openSet := map[string]struct{}{}

	closeAll := func(idx int) {
		for _, id := range open {
			rep.Violations = append(rep.Violations, Violation{Kind: UnresolvedCall, Index: idx, CallID: id})
		}
		open = nil
		openSet = map[string]struct{}{}
	}

	for i, e := range entries {
		switch v := e.(type) {
		case transcript.ToolResultEntry:
			rep.Results++
			if v.Synthetic {
				rep.Synthetic++
			}
			id := v.ResolvedCallID()
			if _, ok := openSet[id]; !ok {
				rep.Violations = append(rep.Violations, Violation{Kind: OrphanResult, Index: i, CallID: id})
				continue
			}
			delete(openSet, id)
			open = remove(open, id)
		case transcript.AssistantEntry:
			calls := v.ToolCalls()
			// A text-only assistant entry leaves open calls pending.
			if len(calls) > 0 {
				closeAll(i)
			}
			for _, c := range calls {
				rep.Calls++
				if _, dup := openSet[c.ID]; dup {
					continue
				}
				open = append(open, c.ID)
				openSet[c.ID] = struct{}{}
			}
		default:
			closeAll(i)
		}
	}
	rep.Dangling = open
	return rep
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
