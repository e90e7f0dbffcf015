package config

import "fmt"

// Resolve merges an ActionDef (looked up by folder.ActionName) over global
// defaults to produce the EffectiveConfig for a watched folder: each
// field is the action's override when set, the global default otherwise.
//
// Folder-prefix matching itself lives in pkg/watchermgr (TryResolve); this
// function performs only the action-over-global merge once the owning
// folder is known.
func Resolve(folder WatchedFolder, global *GlobalConfig) (EffectiveConfig, error) {
	if folder.ActionName == "" {
		return EffectiveConfig{
			Kind:       ActionRestPost,
			FolderPath: folder.Path,
			RestPost:   global.Defaults,
		}, nil
	}

	action, ok := global.Actions[folder.ActionName]
	if !ok {
		return EffectiveConfig{}, fmt.Errorf("%w: %s", ErrUnknownAction, folder.ActionName)
	}

	kind := action.Kind
	if kind == "" {
		kind = ActionRestPost
	}

	eff := EffectiveConfig{Kind: kind, FolderPath: folder.Path}

	switch kind {
	case ActionRestPost:
		eff.RestPost = mergeRestPost(action.RestPost, global.Defaults)
	case ActionExternalProcess:
		eff.ExternalProcess = mergeExternalProcess(action.ExternalProcess, global.ExternalProcessDefaults)
	default:
		return EffectiveConfig{}, fmt.Errorf("%w: %s", ErrInvalidActionKind, kind)
	}

	return eff, nil
}

// mergeRestPost merges override over base, field by field: override.field
// wins only when non-nil.
func mergeRestPost(override *RestPostOverride, base RestPostConfig) RestPostConfig {
	result := base
	if override == nil {
		return result
	}

	if override.Endpoint != nil {
		result.Endpoint = *override.Endpoint
	}
	if override.Bearer != nil {
		result.Bearer = *override.Bearer
	}
	if override.PostFileContents != nil {
		result.PostFileContents = *override.PostFileContents
	}
	if override.ProcessedFolder != nil {
		result.ProcessedFolder = *override.ProcessedFolder
	}
	if override.MoveProcessedFiles != nil {
		result.MoveProcessedFiles = *override.MoveProcessedFiles
	}
	if override.AllowedExtensions != nil {
		result.AllowedExtensions = override.AllowedExtensions
	}
	if override.ExcludePatterns != nil {
		result.ExcludePatterns = override.ExcludePatterns
	}
	if override.IncludeSubdirectories != nil {
		result.IncludeSubdirectories = *override.IncludeSubdirectories
	}
	if override.DebounceMs != nil {
		result.DebounceMs = *override.DebounceMs
	}
	if override.Retries != nil {
		result.Retries = *override.Retries
	}
	if override.RetryDelayMs != nil {
		result.RetryDelayMs = *override.RetryDelayMs
	}
	if override.WaitForFileReadyMs != nil {
		result.WaitForFileReadyMs = *override.WaitForFileReadyMs
	}
	if override.DiscardZeroByteFiles != nil {
		result.DiscardZeroByteFiles = *override.DiscardZeroByteFiles
	}
	if override.MaxContentBytes != nil {
		result.MaxContentBytes = *override.MaxContentBytes
	}
	if override.StreamingThresholdBytes != nil {
		result.StreamingThresholdBytes = *override.StreamingThresholdBytes
	}
	if override.EnableCircuitBreaker != nil {
		result.EnableCircuitBreaker = *override.EnableCircuitBreaker
	}
	if override.CircuitBreakerFailureThreshold != nil {
		result.CircuitBreakerFailureThreshold = *override.CircuitBreakerFailureThreshold
	}
	if override.CircuitBreakerOpenDurationMs != nil {
		result.CircuitBreakerOpenDurationMs = *override.CircuitBreakerOpenDurationMs
	}

	return result
}

func mergeExternalProcess(override *ExternalProcessOverride, base ExternalProcessConfig) ExternalProcessConfig {
	result := base
	if override == nil {
		return result
	}

	if override.Executable != nil {
		result.Executable = *override.Executable
	}
	if override.Argv != nil {
		result.Argv = override.Argv
	}
	if override.ExecutionTimeoutMs != nil {
		result.ExecutionTimeoutMs = *override.ExecutionTimeoutMs
	}
	if override.IgnoreOutput != nil {
		result.IgnoreOutput = *override.IgnoreOutput
	}

	return result
}
