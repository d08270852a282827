package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running watch process to push to known peers immediately",
		Long: `Sends SIGHUP to the daemon recorded in the sync root's PID file, asking it
to push a bundle to every known peer right away instead of waiting for the
next idle boundary. Fails if no watch process is running for this root.`,
		Args: cobra.NoArgs,
		RunE: runReload,
	}
}

func runReload(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	layout := layoutFor(cc.Cfg)
	pidPath := filepath.Join(layout.metaDir, "distribox.pid")

	if err := sendSIGHUP(pidPath); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "sent reload signal")

	return nil
}
