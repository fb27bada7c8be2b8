package pairing

import (
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolguard/internal/transcript"
)

// Stats summarizes the result of window preparation.
//
// Fields:
//   - Total: estimated tokens for included groups only.
//   - Budget: the input token budget used.
//   - IncludedGroups: number of groups included.
//   - SkippedGroups: total groups minus IncludedGroups.
//   - DroppedOrphans: leading result singletons removed from the window.
//   - OverBudgetNewest: true when the newest single group alone exceeds Budget.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	DroppedOrphans   int
	OverBudgetNewest bool
}

// PrepareSendWindow returns a suffix of entries (oldest→newest) that fits within
// budget using the TokenCounter, without splitting groups.
//
// Rules:
//   - Include whole groups scanning newest→oldest while total ≤ budget.
//   - If the newest group alone exceeds budget, return an empty window and set OverBudgetNewest.
//   - If budget ≤ 0, return an empty window (OverBudgetNewest set when any groups exist).
//   - A window never starts with a tool result; leading result singletons are dropped.
func PrepareSendWindow(entries []transcript.Entry, budget int, c TokenCounter) ([]transcript.Entry, Stats) {
	if len(entries) == 0 {
		return nil, Stats{Budget: budget}
	}

	groups := GroupEntries(entries)
	if budget <= 0 {
		return nil, Stats{Budget: budget, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	total := 0
	included := 0
	startIdx := len(groups)
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], entries)
		if included == 0 && cost > budget {
			log.Debug().Int("budget", budget).Int("cost", cost).Msg("pairing: newest group over budget")
			return nil, Stats{Budget: budget, SkippedGroups: len(groups), OverBudgetNewest: true}
		}
		if total+cost > budget {
			break
		}
		total += cost
		included++
		startIdx = gi
	}

	dropped := 0
	for startIdx < len(groups) && isResultSingleton(groups[startIdx], entries) {
		total -= c.CountGroup(groups[startIdx], entries)
		startIdx++
		included--
		dropped++
	}
	if included == 0 {
		return nil, Stats{Budget: budget, SkippedGroups: len(groups), DroppedOrphans: dropped}
	}

	return entries[groups[startIdx].Start:], Stats{
		Total:          total,
		Budget:         budget,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
		DroppedOrphans: dropped,
	}
}

func isResultSingleton(g Group, entries []transcript.Entry) bool {
	if g.Kind != GroupSingleton {
		return false
	}
	_, ok := entries[g.Start].(transcript.ToolResultEntry)
	return ok
}
