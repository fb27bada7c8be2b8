package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/petasbytes/toolguard/internal/pairing"
	"github.com/petasbytes/toolguard/memory"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check <transcript>",
		Short: "Audit a transcript for tool calls without adjacent results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := root.load(); err != nil {
				return err
			}
			entries, err := memory.LoadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rep := pairing.Audit(entries)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d entries, %d calls, %d results (%d synthetic)\n",
				args[0], rep.Entries, rep.Calls, rep.Results, rep.Synthetic)
			for _, v := range rep.Violations {
				fmt.Fprintf(out, "  violation: %s\n", v)
			}
			for _, id := range rep.Dangling {
				fmt.Fprintf(out, "  dangling: call_id=%q\n", id)
			}

			if !rep.OK() {
				return errors.Errorf("%d pairing violations", len(rep.Violations))
			}
			if strict && len(rep.Dangling) > 0 {
				return errors.Errorf("%d dangling calls", len(rep.Dangling))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Also fail on calls still open at the end")
	return cmd
}
