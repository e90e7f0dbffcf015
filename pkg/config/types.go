// Package config provides configuration management for filewatchrest.
//
// Configuration is loaded from a single YAML file (plain JSON also
// parses, YAML being a superset). Every per-action field is optional: a
// nil/omitted value means "inherit the global default", merged by
// Resolve. The file itself can be hot-reloaded without restarting the
// process (see Watcher in watch.go).
//
// Example usage:
//
//	cfg, err := config.LoadFromFile("/etc/filewatchrest/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("watching: %v\n", cfg.Folders)
package config

import "time"

// ActionKind discriminates the two action variants a folder can dispatch.
type ActionKind string

const (
	// ActionRestPost posts a notification (optionally with file contents)
	// to a REST endpoint.
	ActionRestPost ActionKind = "rest_post"

	// ActionExternalProcess runs an external program per arrived file.
	ActionExternalProcess ActionKind = "external_process"
)

// WatchedFolder is one directory to observe, with an optional named action.
// An empty ActionName resolves to a RestPost action built entirely from
// global defaults.
type WatchedFolder struct {
	Path       string `yaml:"path"`
	ActionName string `yaml:"action_name,omitempty"`
}

// ActionDef is a named, partially-specified action. Every RestPost/
// ExternalProcess field is a pointer: nil means "inherit global".
type ActionDef struct {
	Kind            ActionKind               `yaml:"kind"`
	RestPost        *RestPostOverride        `yaml:"rest_post,omitempty"`
	ExternalProcess *ExternalProcessOverride `yaml:"external_process,omitempty"`
}

// RestPostOverride holds the per-action overrides for a RestPost action.
// See RestPostConfig for field semantics; every field here is optional.
type RestPostOverride struct {
	Endpoint                       *string  `yaml:"endpoint,omitempty"`
	Bearer                         *string  `yaml:"bearer,omitempty"`
	PostFileContents               *bool    `yaml:"post_file_contents,omitempty"`
	ProcessedFolder                *string  `yaml:"processed_folder,omitempty"`
	MoveProcessedFiles             *bool    `yaml:"move_processed_files,omitempty"`
	AllowedExtensions              []string `yaml:"allowed_extensions,omitempty"`
	ExcludePatterns                []string `yaml:"exclude_patterns,omitempty"`
	IncludeSubdirectories          *bool    `yaml:"include_subdirectories,omitempty"`
	DebounceMs                     *int     `yaml:"debounce_ms,omitempty"`
	Retries                        *int     `yaml:"retries,omitempty"`
	RetryDelayMs                   *int     `yaml:"retry_delay_ms,omitempty"`
	WaitForFileReadyMs             *int     `yaml:"wait_for_file_ready_ms,omitempty"`
	DiscardZeroByteFiles           *bool    `yaml:"discard_zero_byte_files,omitempty"`
	MaxContentBytes                *int64   `yaml:"max_content_bytes,omitempty"`
	StreamingThresholdBytes        *int64   `yaml:"streaming_threshold_bytes,omitempty"`
	EnableCircuitBreaker           *bool    `yaml:"enable_circuit_breaker,omitempty"`
	CircuitBreakerFailureThreshold *int     `yaml:"circuit_breaker_failure_threshold,omitempty"`
	CircuitBreakerOpenDurationMs   *int     `yaml:"circuit_breaker_open_duration_ms,omitempty"`
}

// ExternalProcessOverride holds per-action overrides for an ExternalProcess
// action. Every field is optional.
type ExternalProcessOverride struct {
	Executable         *string  `yaml:"executable,omitempty"`
	Argv               []string `yaml:"argv,omitempty"`
	ExecutionTimeoutMs *int     `yaml:"execution_timeout_ms,omitempty"`
	IgnoreOutput       *bool    `yaml:"ignore_output,omitempty"`
}

// RestPostConfig is the fully resolved, non-optional RestPost action view
// produced by Resolve.
type RestPostConfig struct {
	Endpoint                       string   `yaml:"endpoint"`
	Bearer                         string   `yaml:"bearer,omitempty"`
	PostFileContents               bool     `yaml:"post_file_contents"`
	ProcessedFolder                string   `yaml:"processed_folder"`
	MoveProcessedFiles             bool     `yaml:"move_processed_files"`
	AllowedExtensions              []string `yaml:"allowed_extensions,omitempty"`
	ExcludePatterns                []string `yaml:"exclude_patterns,omitempty"`
	IncludeSubdirectories          bool     `yaml:"include_subdirectories"`
	DebounceMs                     int      `yaml:"debounce_ms"`
	Retries                        int      `yaml:"retries"`
	RetryDelayMs                   int      `yaml:"retry_delay_ms"`
	WaitForFileReadyMs             int      `yaml:"wait_for_file_ready_ms"`
	DiscardZeroByteFiles           bool     `yaml:"discard_zero_byte_files"`
	MaxContentBytes                int64    `yaml:"max_content_bytes"`
	StreamingThresholdBytes        int64    `yaml:"streaming_threshold_bytes"`
	EnableCircuitBreaker           bool     `yaml:"enable_circuit_breaker"`
	CircuitBreakerFailureThreshold int      `yaml:"circuit_breaker_failure_threshold"`
	CircuitBreakerOpenDurationMs   int      `yaml:"circuit_breaker_open_duration_ms"`
}

// ExternalProcessConfig is the fully resolved ExternalProcess action view.
type ExternalProcessConfig struct {
	Executable         string   `yaml:"executable"`
	Argv               []string `yaml:"argv,omitempty"`
	ExecutionTimeoutMs int      `yaml:"execution_timeout_ms"`
	IgnoreOutput       bool     `yaml:"ignore_output"`
}

// EffectiveConfig is the fully resolved per-path view: global defaults
// overlaid with the action referenced by the owning watched folder.
type EffectiveConfig struct {
	Kind            ActionKind
	FolderPath      string
	RestPost        RestPostConfig
	ExternalProcess ExternalProcessConfig
}

// WatcherTuning holds global-only watcher knobs.
type WatcherTuning struct {
	MaxRestartAttempts  int `yaml:"max_restart_attempts"`
	RestartDelayMs      int `yaml:"restart_delay_ms"`
	InternalBufferBytes int `yaml:"internal_buffer_bytes"`
}

// DiagnosticsConfig holds global-only diagnostics HTTP server settings.
type DiagnosticsConfig struct {
	URLPrefix   string `yaml:"url_prefix"`
	BearerToken string `yaml:"bearer_token,omitempty"`
}

// StorageConfig controls PostedCache persistence. The default is
// in-memory; operators who want dedupe to survive a restart opt into
// the bbolt-backed store.
type StorageConfig struct {
	PostedCachePersist bool   `yaml:"posted_cache_persist"`
	DBPath             string `yaml:"db_path,omitempty"`
}

// LoggingConfig mirrors logger.Config, plus an optional structured
// event-trail file. When EventFile is set, every processed-file event is
// appended there in EventFormat ("csv" or "ndjson"); the CSV variant
// guarantees the Timestamp,Level,Message,Category,Exception,StatusCode
// header.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Output      string `yaml:"output"`
	Format      string `yaml:"format"`
	EventFile   string `yaml:"event_file,omitempty"`
	EventFormat string `yaml:"event_format,omitempty"`
}

// GlobalConfig is the complete application configuration.
//
// Invariants:
//   - Every duration/byte field in Defaults/ExternalProcessDefaults/Watcher
//     must be non-negative.
//   - Every WatchedFolder.Path must be non-empty.
//   - Every WatchedFolder.ActionName, if set, must reference an entry in
//     Actions.
//   - ChannelCapacity and SenderParallelism must be > 0.
type GlobalConfig struct {
	Folders                 []WatchedFolder       `yaml:"folders"`
	Actions                 map[string]ActionDef  `yaml:"actions"`
	Defaults                RestPostConfig        `yaml:"defaults"`
	ExternalProcessDefaults ExternalProcessConfig `yaml:"external_process_defaults"`
	Watcher                 WatcherTuning         `yaml:"watcher"`
	ChannelCapacity         int                   `yaml:"channel_capacity"`
	SenderParallelism       int                   `yaml:"sender_parallelism"`
	Diagnostics             DiagnosticsConfig     `yaml:"diagnostics"`
	Storage                 StorageConfig         `yaml:"storage"`
	Logging                 LoggingConfig         `yaml:"logging"`
}

// DurationMs converts a resolved *Ms field into a time.Duration, used by
// the resilience and sender packages.
func DurationMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
