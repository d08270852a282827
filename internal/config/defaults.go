package config

// Default values for configuration options — the base that the config file
// overrides (the --verbose/--quiet flags then override only the log level;
// there is no environment-variable layer), chosen to work for most users
// without any config file at all.
const (
	defaultMetadataDirName  = ".Distribox"
	defaultDebounceInterval = "2s"
	defaultListenAddr       = ":7493"
	defaultTransferWorkers  = 4
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding (so unset fields retain
// defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			MetadataDirName:  defaultMetadataDirName,
			DebounceInterval: defaultDebounceInterval,
		},
		Peers: PeersConfig{
			ListenAddr:      defaultListenAddr,
			TransferWorkers: defaultTransferWorkers,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
