package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolguard/internal/metrics"
	"github.com/petasbytes/toolguard/internal/pairing"
	"github.com/petasbytes/toolguard/internal/reconcile"
	"github.com/petasbytes/toolguard/internal/telemetry"
	"github.com/petasbytes/toolguard/internal/transcript"
	"github.com/petasbytes/toolguard/tools"
)

const defaultMaxTokens = 1024

type Runner struct {
	Client    *anthropic.Client
	Tools     []tools.ToolDefinition
	Budget    int
	Counter   pairing.TokenCounter
	Sanitizer reconcile.Sanitizer
	MaxTokens int64
}

// New returns a Runner that windows each request to budget estimated tokens.
func New(client *anthropic.Client, toolDefs []tools.ToolDefinition, budget int) *Runner {
	return &Runner{
		Client:    client,
		Tools:     toolDefs,
		Budget:    budget,
		Counter:   pairing.HeuristicCounter{},
		Sanitizer: reconcile.DefaultSanitizer,
		MaxTokens: defaultMaxTokens,
	}
}

func (r *Runner) anthropicTools() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.Tools))
	for _, t := range r.Tools {
		out = append(out, t.Param())
	}
	return out
}

// RunOneStep sends a pair-safe window of entries and returns the assistant
// entry together with the results of the tool calls it made. Calls the
// sanitizer would drop are not executed, so every returned result matches a
// call the transcript will record.
func (r *Runner) RunOneStep(ctx context.Context, model anthropic.Model, entries []transcript.Entry) (transcript.AssistantEntry, []transcript.ToolResultEntry, error) {
	if r.Budget <= 0 {
		return transcript.AssistantEntry{}, nil, errors.Errorf("token budget must be positive, got %d", r.Budget)
	}

	window, stats := pairing.PrepareSendWindow(entries, r.Budget, r.Counter)

	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = fmt.Sprintf("turn-%d", time.Now().UnixNano())
	}
	ctx = telemetry.WithTurnID(ctx, turnID)

	telemetry.EmitWithContext(ctx, "window_prepared", map[string]any{
		"model":              string(model),
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"dropped_orphans":    stats.DroppedOrphans,
		"over_budget_newest": stats.OverBudgetNewest,
	})
	log.Debug().
		Str("model", string(model)).
		Int("budget", stats.Budget).
		Int("est_total", stats.Total).
		Int("groups_in", stats.IncludedGroups).
		Int("groups_skip", stats.SkippedGroups).
		Bool("newest_over", stats.OverBudgetNewest).
		Msg("window prepared")

	// With result caps the newest group should always fit within the budget.
	// If not, treat it as a misconfiguration and fail before calling the API.
	if stats.OverBudgetNewest {
		return transcript.AssistantEntry{}, nil, errors.New("windowing: newest group exceeds token budget; increase budget with headroom or lower soft_limit")
	}

	msg, err := r.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: r.MaxTokens,
		Messages:  transcript.ToMessageParams(window),
		Tools:     r.anthropicTools(),
	})
	if err != nil {
		return transcript.AssistantEntry{}, nil, errors.Wrap(err, "messages.new")
	}

	asst := transcript.FromMessage(msg)
	cleaned := r.Sanitizer.Sanitize([]transcript.Entry{asst})
	if len(cleaned) == 0 {
		log.Warn().Str("turn_id", turnID).Msg("assistant response had no usable content")
		return transcript.AssistantEntry{Model: asst.Model, StopReason: asst.StopReason}, nil, nil
	}
	if a, ok := cleaned[0].(transcript.AssistantEntry); ok {
		asst = a
	}

	calls := asst.ToolCalls()
	results := make([]transcript.ToolResultEntry, 0, len(calls))
	for _, c := range calls {
		results = append(results, r.execTool(ctx, c))
	}
	return asst, results, nil
}

func (r *Runner) execTool(ctx context.Context, call transcript.ToolCallBlock) transcript.ToolResultEntry {
	var def *tools.ToolDefinition
	for i := range r.Tools {
		if r.Tools[i].Name == call.Name {
			def = &r.Tools[i]
			break
		}
	}

	result := func(text string, isErr bool) transcript.ToolResultEntry {
		return transcript.ToolResultEntry{
			CallID:   call.ID,
			ToolName: call.Name,
			Content:  []transcript.Block{transcript.TextBlock{Text: text}},
			IsError:  isErr,
		}
	}

	// Payloads are never emitted; only sizes and a generic error string.
	emit := func(durationMs int64, output string, errStr string) {
		fields := map[string]any{
			"tool_name":   call.Name,
			"call_id":     call.ID,
			"duration_ms": durationMs,
			"input_size":  len(call.Arguments),
			"output_size": len(output),
			"error":       nil,
		}
		if errStr != "" {
			fields["error"] = errStr
		}
		for k, v := range metrics.CountFeatures(output).Fields() {
			fields["output_"+k] = v
		}
		telemetry.EmitWithContext(ctx, "tool_exec", fields)
	}

	start := time.Now()
	if def == nil {
		emit(time.Since(start).Milliseconds(), "", "tool not found")
		return result("tool not found", true)
	}

	input := call.Arguments
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	resp, err := def.Function(input)
	if err != nil {
		emit(time.Since(start).Milliseconds(), "", "tool error")
		// The detailed message goes back to the model, not to telemetry.
		return result(err.Error(), true)
	}
	emit(time.Since(start).Milliseconds(), resp, "")
	return result(resp, false)
}
