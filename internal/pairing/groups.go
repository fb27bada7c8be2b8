// Package pairing groups transcript entries into units that keep tool calls
// and their results together, audits transcripts for broken pairing, and
// selects budgeted send windows that never split a call from its results.
package pairing

import (
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupCall
)

// Group describes a contiguous span of entries [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive
	End   int // exclusive
}

// GroupEntries groups entries into atomic units that preserve call/result pairing.
// Invariants:
//   - A call group is an assistant entry with tool calls followed by consecutive
//     tool results covering exactly its call ids.
//   - Results may arrive in any order; an error result counts the same as any other.
//   - Anything that does not satisfy the above becomes a singleton.
func GroupEntries(entries []transcript.Entry) []Group {
	groups := make([]Group, 0, len(entries))
	for i := 0; i < len(entries); {
		if end, ok := callGroupEnd(entries, i); ok {
			groups = append(groups, Group{Kind: GroupCall, Start: i, End: end})
			i = end
			continue
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// callGroupEnd reports the exclusive end of the call group starting at i.
func callGroupEnd(entries []transcript.Entry, i int) (int, bool) {
	asst, ok := entries[i].(transcript.AssistantEntry)
	if !ok {
		return 0, false
	}
	want := callIDs(asst)
	if len(want) == 0 {
		return 0, false
	}

	seen := make(map[string]struct{}, len(want))
	j := i + 1
	for ; j < len(entries) && len(seen) < len(want); j++ {
		r, ok := entries[j].(transcript.ToolResultEntry)
		if !ok {
			break
		}
		id := r.ResolvedCallID()
		if _, ok := want[id]; !ok {
			log.Debug().Int("idx", i).Str("call_id", id).Str("reason", "extra_result").Msg("pairing: exclude group")
			return 0, false
		}
		if _, dup := seen[id]; dup {
			log.Debug().Int("idx", i).Str("call_id", id).Str("reason", "duplicate_result").Msg("pairing: exclude group")
			return 0, false
		}
		seen[id] = struct{}{}
	}
	if len(seen) < len(want) {
		log.Debug().Int("idx", i).Str("reason", "missing_results").Msg("pairing: exclude group")
		return 0, false
	}
	return j, true
}

func callIDs(e transcript.AssistantEntry) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, c := range e.ToolCalls() {
		if c.ID != "" {
			ids[c.ID] = struct{}{}
		}
	}
	return ids
}
