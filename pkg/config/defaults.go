package config

import (
	"os"
	"path/filepath"
)

// Default returns a GlobalConfig with sensible default values and no
// watched folders; the operator must add at least one before Validate
// passes.
func Default() *GlobalConfig {
	return &GlobalConfig{
		Folders: nil,
		Actions: map[string]ActionDef{},
		Defaults: RestPostConfig{
			PostFileContents:               false,
			ProcessedFolder:                "processed",
			MoveProcessedFiles:             false,
			IncludeSubdirectories:          false,
			DebounceMs:                     500,
			Retries:                        2,
			RetryDelayMs:                   500,
			WaitForFileReadyMs:             2000,
			DiscardZeroByteFiles:           true,
			MaxContentBytes:                10 * 1024 * 1024,
			StreamingThresholdBytes:        1024 * 1024,
			EnableCircuitBreaker:           true,
			CircuitBreakerFailureThreshold: 5,
			CircuitBreakerOpenDurationMs:   60000,
		},
		ExternalProcessDefaults: ExternalProcessConfig{
			ExecutionTimeoutMs: 30000,
			IgnoreOutput:       false,
		},
		Watcher: WatcherTuning{
			MaxRestartAttempts:  5,
			RestartDelayMs:      1000,
			InternalBufferBytes: 64 * 1024,
		},
		ChannelCapacity:   1000,
		SenderParallelism: 4,
		Diagnostics: DiagnosticsConfig{
			URLPrefix: "http://127.0.0.1:9191",
		},
		Storage: StorageConfig{
			PostedCachePersist: false,
			DBPath:             defaultDBPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}

// defaultDBPath returns the default database file path used when
// Storage.PostedCachePersist is enabled without an explicit DBPath.
//
// Returns: ~/.config/filewatchrest/posted.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./posted.db"
	}

	return filepath.Join(homeDir, ".config", "filewatchrest", "posted.db")
}

// DefaultConfigPath returns the default configuration file path used by
// resolveConfigPath's last-resort fallback.
//
// Returns: ~/.config/filewatchrest/config.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "filewatchrest", "config.yaml")
}
