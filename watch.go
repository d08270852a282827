package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/distribox/distribox/internal/controller"
	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/transport"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [root]",
		Short: "Watch the sync root and replicate changes with known peers",
		Long: `Run the Change Detector against the configured sync root, maintain the
local Version List, listen for bundles pushed by peers, and push a bundle of
the entire local Version List to every known peer whenever the detector goes
idle. An explicit root argument overrides sync.root from the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	if len(args) == 1 {
		cc.Cfg.Sync.Root = args[0]
	}

	state, err := openSyncState(cc.Cfg, logger)
	if err != nil {
		return err
	}
	defer state.Close()

	pidPath := filepath.Join(state.layout.metaDir, "distribox.pid")

	cleanupPID, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanupPID()

	ctx := shutdownContext(context.Background(), logger)

	debounce, err := time.ParseDuration(cc.Cfg.Sync.DebounceInterval)
	if err != nil {
		return fmt.Errorf("parsing sync.debounce_interval: %w", err)
	}

	idx := controller.NewPathIndex(state.list)
	det := detector.New(detector.Config{
		Root:            cc.Cfg.Sync.Root,
		MetadataDirName: cc.Cfg.Sync.MetadataDirName,
		PollInterval:    debounce,
	}, state.pool, idx, state.mute, logger)

	ctrl := controller.New(state.list, det, state.layout.versionListPath, state.mu, logger)
	ctrl.OnIdle(func() { pushToKnownPeers(ctx, cc.Cfg, state, logger) })
	ctrl.OnNotify(func(n detector.Notification) { printNotification(cmd, n) })

	notifyReload(ctx, logger, func() { pushToKnownPeers(ctx, cc.Cfg, state, logger) })

	server := transport.NewServer(state.acceptor, logger)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe(ctx, cc.Cfg.Peers.ListenAddr) }()

	logger.Info("watching sync root",
		slog.String("root", cc.Cfg.Sync.Root),
		slog.String("listen_addr", cc.Cfg.Peers.ListenAddr),
		slog.Int("known_peers", len(cc.Cfg.Peers.KnownPeers)),
	)

	runErr := ctrl.Run(ctx)

	if err := <-serveErr; err != nil {
		logger.Error("peer transport server stopped with an error", slog.String("error", err.Error()))
	}

	return runErr
}

// printNotification writes one canonical event line to stdout, per §6
// "Events to subscribers" — the detector's idle signal included.
func printNotification(cmd *cobra.Command, n detector.Notification) {
	out := cmd.OutOrStdout()

	switch n.Type {
	case detector.Renamed:
		fmt.Fprintf(out, "%s %q -> %q\n", n.Type, n.OldName, n.Name)
	case detector.Idle:
		fmt.Fprintln(out, "idle")
	default:
		fmt.Fprintf(out, "%s %q\n", n.Type, n.Name)
	}
}
