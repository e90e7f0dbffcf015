package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks GlobalConfig's invariants: numeric millisecond/byte
// fields must be non-negative, Endpoint must be a syntactically valid
// absolute URI, and AllowedExtensions entries must begin with "." or be
// glob patterns.
//
// Thread-safety: read-only and safe for concurrent use.
func (c *GlobalConfig) Validate() error {
	if len(c.Folders) == 0 {
		return ErrNoFolders
	}

	for _, f := range c.Folders {
		if strings.TrimSpace(f.Path) == "" {
			return ErrEmptyFolderPath
		}
		if f.ActionName != "" {
			if _, ok := c.Actions[f.ActionName]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownAction, f.ActionName)
			}
		}
	}

	if c.ChannelCapacity <= 0 {
		return ErrInvalidChannelCapacity
	}
	if c.SenderParallelism <= 0 {
		return ErrInvalidSenderParallelism
	}

	if c.Watcher.MaxRestartAttempts < 0 || c.Watcher.RestartDelayMs < 0 || c.Watcher.InternalBufferBytes < 0 {
		return ErrInvalidWatcherTuning
	}

	if err := validateRestPost(&c.Defaults); err != nil {
		return err
	}
	if c.ExternalProcessDefaults.ExecutionTimeoutMs < 0 {
		return ErrNegativeField
	}

	for name, action := range c.Actions {
		switch action.Kind {
		case ActionRestPost, "":
			if action.RestPost != nil {
				if err := validateRestPostOverride(action.RestPost); err != nil {
					return fmt.Errorf("action %q: %w", name, err)
				}
			}
		case ActionExternalProcess:
			if action.ExternalProcess != nil && action.ExternalProcess.ExecutionTimeoutMs != nil && *action.ExternalProcess.ExecutionTimeoutMs < 0 {
				return fmt.Errorf("action %q: %w", name, ErrNegativeField)
			}
		default:
			return fmt.Errorf("action %q: %w", name, ErrInvalidActionKind)
		}
	}

	if c.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			return ErrInvalidLogLevel
		}
	}
	if c.Logging.Format != "" {
		validFormats := map[string]bool{"text": true, "json": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			return ErrInvalidLogFormat
		}
	}
	if c.Logging.EventFormat != "" {
		validEventFormats := map[string]bool{"csv": true, "ndjson": true}
		if !validEventFormats[strings.ToLower(c.Logging.EventFormat)] {
			return ErrInvalidEventFormat
		}
	}

	return nil
}

func validateRestPost(r *RestPostConfig) error {
	if r.Endpoint != "" {
		if err := validateEndpoint(r.Endpoint); err != nil {
			return err
		}
	}
	if r.DebounceMs < 0 || r.Retries < 0 || r.RetryDelayMs < 0 || r.WaitForFileReadyMs < 0 ||
		r.MaxContentBytes < 0 || r.StreamingThresholdBytes < 0 ||
		r.CircuitBreakerFailureThreshold < 0 || r.CircuitBreakerOpenDurationMs < 0 {
		return ErrNegativeField
	}
	for _, ext := range r.AllowedExtensions {
		if err := validateExtension(ext); err != nil {
			return err
		}
	}
	return nil
}

func validateRestPostOverride(r *RestPostOverride) error {
	if r.Endpoint != nil && *r.Endpoint != "" {
		if err := validateEndpoint(*r.Endpoint); err != nil {
			return err
		}
	}
	negatives := []*int{r.DebounceMs, r.Retries, r.RetryDelayMs, r.WaitForFileReadyMs,
		r.CircuitBreakerFailureThreshold, r.CircuitBreakerOpenDurationMs}
	for _, n := range negatives {
		if n != nil && *n < 0 {
			return ErrNegativeField
		}
	}
	if r.MaxContentBytes != nil && *r.MaxContentBytes < 0 {
		return ErrNegativeField
	}
	if r.StreamingThresholdBytes != nil && *r.StreamingThresholdBytes < 0 {
		return ErrNegativeField
	}
	for _, ext := range r.AllowedExtensions {
		if err := validateExtension(ext); err != nil {
			return err
		}
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidEndpoint, endpoint)
	}
	return nil
}

// validateExtension accepts both dot-prefixed literal extensions and glob
// patterns; config authors may mix both styles in one list.
func validateExtension(ext string) error {
	if ext == "" {
		return fmt.Errorf("%w: empty entry", ErrInvalidExtension)
	}
	if strings.HasPrefix(ext, ".") {
		return nil
	}
	if strings.ContainsAny(ext, "*?[") {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
}
