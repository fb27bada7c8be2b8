package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/petasbytes/toolguard/internal/fsops"
	"github.com/petasbytes/toolguard/internal/provider"
	"github.com/petasbytes/toolguard/internal/runner"
	"github.com/petasbytes/toolguard/internal/session"
	"github.com/petasbytes/toolguard/internal/telemetry"
	"github.com/petasbytes/toolguard/internal/transcript"
	"github.com/petasbytes/toolguard/tools"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; resumes --session when given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, root, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to resume (default: new session)")
	return cmd
}

func runChat(cmd *cobra.Command, root *rootOptions, sessionID string) error {
	// SDK also reads the key; fail early with a clear message.
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return errors.New("missing ANTHROPIC_API_KEY; export it before running")
	}
	cfg, err := root.load()
	if err != nil {
		return err
	}

	// Graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sess, err := session.Open(ctx, cfg, sessionID)
	if err != nil {
		return err
	}
	defer func() {
		// ctx may be cancelled by now; the final flush must still reach the store.
		if err := sess.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("close session")
		}
	}()
	ctx = telemetry.WithSessionID(ctx, sess.ID)

	spillRoot, err := fsops.NewRoot(sess.Dir())
	if err != nil {
		return err
	}
	r := runner.New(provider.NewAnthropicClient(), tools.Registry(spillRoot), cfg.TokenBudget)
	model := provider.Model(cfg.Model)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chat with Claude, session %s (Ctrl-C to quit)\n", sess.ID)

	// stdin reader goroutine -> lines into channel
	scanner := bufio.NewScanner(cmd.InOrStdin())
	inputCh := make(chan string)
	go func() {
		defer close(inputCh)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

outer:
	for {
		fmt.Fprint(out, "\u001b[94mYou\u001b[0m: ")
		var (
			text string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nExiting...")
			break outer
		case text, ok = <-inputCh:
			if !ok {
				break outer
			}
		}

		turnCtx := telemetry.WithTurnID(ctx, fmt.Sprintf("turn-%d", time.Now().UnixNano()))
		if _, err := sess.Append(turnCtx, transcript.UserEntry{Content: []transcript.Block{transcript.TextBlock{Text: text}}}); err != nil {
			return err
		}
		if err := runTurn(turnCtx, cmd, sess, r, model); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("stdin read error")
	}
	return nil
}

// runTurn steps the model until it stops calling tools.
func runTurn(ctx context.Context, cmd *cobra.Command, sess *session.Session, r *runner.Runner, model anthropic.Model) error {
	for {
		entries, err := sess.Entries(ctx)
		if err != nil {
			return err
		}
		asst, results, err := r.RunOneStep(ctx, model, entries)
		if err != nil {
			return err
		}
		for _, b := range asst.Content {
			if tb, ok := b.(transcript.TextBlock); ok && tb.Text != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\u001b[93mClaude\u001b[0m: %s\n", tb.Text)
			}
		}

		rec, err := sess.Append(ctx, asst)
		if err != nil {
			return err
		}
		if !rec.Persisted() {
			log.Warn().Msg("assistant response dropped; ending turn")
			return nil
		}
		for _, res := range results {
			if _, err := sess.Append(ctx, res); err != nil {
				return err
			}
		}
		if len(results) == 0 {
			return nil
		}
	}
}
