package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoFolders is returned when no watched folders are configured.
	ErrNoFolders = errors.New("no watched folders configured")

	// ErrEmptyFolderPath is returned when a watched folder has an empty path.
	ErrEmptyFolderPath = errors.New("watched folder path must not be empty")

	// ErrUnknownAction is returned when a folder references an action name
	// that has no entry in Actions.
	ErrUnknownAction = errors.New("watched folder references unknown action")

	// ErrInvalidChannelCapacity is returned when ChannelCapacity is <= 0.
	ErrInvalidChannelCapacity = errors.New("invalid channel capacity: must be > 0")

	// ErrInvalidSenderParallelism is returned when SenderParallelism is <= 0.
	ErrInvalidSenderParallelism = errors.New("invalid sender parallelism: must be > 0")

	// ErrInvalidWatcherTuning is returned when a watcher tuning field is negative.
	ErrInvalidWatcherTuning = errors.New("invalid watcher tuning: fields must be non-negative")

	// ErrInvalidEndpoint is returned when a RestPost endpoint is not a
	// syntactically valid absolute URI.
	ErrInvalidEndpoint = errors.New("invalid rest_post endpoint: must be an absolute URI")

	// ErrInvalidExtension is returned when an AllowedExtensions entry is
	// neither dot-prefixed nor a glob pattern.
	ErrInvalidExtension = errors.New("invalid allowed extension: must start with '.' or contain a glob wildcard")

	// ErrNegativeField is returned when a millisecond/byte field is negative.
	ErrNegativeField = errors.New("invalid configuration: numeric fields must be non-negative")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidEventFormat is returned when the event-trail format is
	// neither csv nor ndjson.
	ErrInvalidEventFormat = errors.New("invalid event format: must be csv or ndjson")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")

	// ErrInvalidActionKind is returned when an ActionDef.Kind is neither
	// rest_post nor external_process.
	ErrInvalidActionKind = errors.New("invalid action kind: must be rest_post or external_process")
)
