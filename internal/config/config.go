// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for distribox. Grounded on the teacher's
// internal/config package (a single decode over the defaults, strict unknown-key detection,
// XDG-aware path resolution), reduced from a multi-profile/multi-drive
// schema to the single sync root this system manages.
package config

// Config is the top-level configuration structure, decoded from a single
// TOML document.
type Config struct {
	Sync    SyncConfig    `toml:"sync"`
	Peers   PeersConfig   `toml:"peers"`
	Logging LoggingConfig `toml:"logging"`
}

// SyncConfig controls the synced working tree and the Change Detector.
type SyncConfig struct {
	Root             string `toml:"root"`
	MetadataDirName  string `toml:"metadata_dir"`
	DebounceInterval string `toml:"debounce_interval"`
}

// PeersConfig controls the Peer Transport.
type PeersConfig struct {
	ListenAddr      string   `toml:"listen_addr"`
	KnownPeers      []string `toml:"known_peers"`
	TransferWorkers int      `toml:"transfer_workers"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
