package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/distribox/distribox/internal/blobpool"
	"github.com/distribox/distribox/internal/bundle"
	"github.com/distribox/distribox/internal/config"
	"github.com/distribox/distribox/internal/detector"
	"github.com/distribox/distribox/internal/ledger"
	"github.com/distribox/distribox/internal/versionlist"
)

// dataLayout is the set of filesystem paths distribox keeps under a sync
// root's metadata directory.
type dataLayout struct {
	metaDir         string
	poolDir         string
	versionListPath string
	tmpDir          string
	ledgerPath      string
}

func layoutFor(cfg *config.Config) dataLayout {
	metaDir := filepath.Join(cfg.Sync.Root, cfg.Sync.MetadataDirName)

	return dataLayout{
		metaDir:         metaDir,
		poolDir:         filepath.Join(metaDir, "data"),
		versionListPath: filepath.Join(metaDir, "VersionList.txt"),
		tmpDir:          filepath.Join(metaDir, "tmp"),
		ledgerPath:      filepath.Join(metaDir, "ledger.db"),
	}
}

// syncState bundles the components shared by every command that touches a
// sync root: the blob pool, the loaded Version List, the Bundle Ledger, and
// the mutex/mute pair that keep a live watch loop and a one-shot command
// from corrupting each other's view of the working tree.
type syncState struct {
	layout   dataLayout
	pool     *blobpool.Pool
	list     *versionlist.List
	ledger   *ledger.Ledger
	mu       *sync.Mutex
	mute     *detector.Mute
	acceptor *bundle.Acceptor
	builder  *bundle.Builder
}

// openSyncState opens the blob pool and Bundle Ledger and loads the Version
// List for cfg's sync root, creating the metadata directory layout if this
// is the first run.
func openSyncState(cfg *config.Config, logger *slog.Logger) (*syncState, error) {
	layout := layoutFor(cfg)

	pool, err := blobpool.Open(layout.poolDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening blob pool: %w", err)
	}

	list, err := versionlist.Load(layout.versionListPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading version list: %w", err)
	}

	led, err := ledger.Open(layout.ledgerPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening bundle ledger: %w", err)
	}

	mu := &sync.Mutex{}
	mute := detector.NewMute()
	archiver := bundle.NewZipArchiver()

	acceptor := bundle.NewAcceptor(list, pool, cfg.Sync.Root, layout.versionListPath, layout.tmpDir, archiver, mute, led, mu, logger)
	builder := bundle.NewBuilder(pool, layout.tmpDir, archiver)

	return &syncState{
		layout:   layout,
		pool:     pool,
		list:     list,
		ledger:   led,
		mu:       mu,
		mute:     mute,
		acceptor: acceptor,
		builder:  builder,
	}, nil
}

func (s *syncState) Close() error {
	return s.ledger.Close()
}
