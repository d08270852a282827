package main

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/distribox/distribox/internal/config"
	"github.com/distribox/distribox/internal/transport"
)

// pushToKnownPeers builds one bundle from the entire current Version List
// and dispatches it to every configured peer concurrently. A peer that
// rejects or is unreachable only logs a warning — per §9, bundle delivery
// is best-effort and will simply be retried on the next idle boundary.
func pushToKnownPeers(ctx context.Context, cfg *config.Config, state *syncState, logger *slog.Logger) {
	if len(cfg.Peers.KnownPeers) == 0 {
		return
	}

	digest, payload, err := buildBundle(state)
	if err != nil {
		logger.Error("building bundle for peer push", slog.String("error", err.Error()))
		return
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, addr := range cfg.Peers.KnownPeers {
		addr := addr

		g.Go(func() error {
			if err := transport.Send(ctx, addr, digest, payload); err != nil {
				logger.Warn("pushing bundle to peer failed",
					slog.String("peer", addr), slog.String("error", err.Error()))

				return nil
			}

			logger.Info("pushed bundle to peer", slog.String("peer", addr), slog.String("digest", digest))

			return nil
		})
	}

	_ = g.Wait()
}

// buildBundle packages every history currently in the Version List,
// reads the resulting archive into memory, and removes the scratch file.
// The returned digest is the archive's SHA-1, which doubles as the
// bundle's identity in the peer's Bundle Ledger.
func buildBundle(state *syncState) (digest string, payload []byte, err error) {
	histories := state.list.Histories()

	archivePath, err := state.builder.Build(histories)
	if err != nil {
		return "", nil, err
	}
	defer os.Remove(archivePath)

	payload, err = os.ReadFile(archivePath)
	if err != nil {
		return "", nil, fmt.Errorf("reading built bundle archive: %w", err)
	}

	sum := sha1.Sum(payload)

	return hex.EncodeToString(sum[:]), payload, nil
}
