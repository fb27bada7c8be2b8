// Package runner coordinates message exchange with the Anthropic Messages API
// and dispatches tool calls.
//
// The runner reads transcript entries and produces new ones; it never writes
// the transcript itself. Callers append the assistant entry and its results
// through a reconcile.Guard so every recorded call gets a result.
//
// Flow:
//
//	user(text) -> assistant(tool_call) -> tool_result... -> assistant(text)
package runner
