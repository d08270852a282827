package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <name>",
		Short: "Print the full event history of one file",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	name := args[0]

	state, err := openSyncState(cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer state.Close()

	h, err := state.list.ByName(name)
	if err != nil {
		return fmt.Errorf("looking up %q: %w", name, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file_id: %s\n", h.ID())

	for _, ev := range h.Events() {
		when := time.Unix(0, ev.When*100).UTC().Format(time.RFC3339Nano)

		fmt.Fprintf(out, "%s  %-8s  name=%q", when, ev.Type, ev.Name)

		if ev.SHA1 != "" {
			fmt.Fprintf(out, "  sha1=%s  size=%d", ev.SHA1, ev.Size)
		}

		fmt.Fprintln(out)
	}

	return nil
}
