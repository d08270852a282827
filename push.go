package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/distribox/distribox/internal/transport"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-peer <addr>",
		Short: "Build a bundle from the local Version List and send it to one peer",
		Long: `Builds a bundle of the entire local Version List and sends it to the peer
at addr over the Peer Transport, independent of the watch loop's own
idle-triggered pushes.`,
		Args: cobra.ExactArgs(1),
		RunE: runPush,
	}
}

func runPush(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	addr := args[0]

	state, err := openSyncState(cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer state.Close()

	digest, payload, err := buildBundle(state)
	if err != nil {
		return fmt.Errorf("building bundle: %w", err)
	}

	if err := transport.Send(cmd.Context(), addr, digest, payload); err != nil {
		return fmt.Errorf("pushing bundle to %s: %w", addr, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pushed bundle %s to %s\n", digest, addr)

	return nil
}
