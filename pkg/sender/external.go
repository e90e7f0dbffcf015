package sender

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/trackd/filewatchrest/pkg/config"
)

// DispatchExternalProcess runs cfg.Executable with cfg.Argv (each entry's
// literal "{path}" placeholder substituted with path; if no entry carries
// the placeholder, path is appended as the final argument), bounded by
// cfg.ExecutionTimeoutMs. Unlike RestPost actions, ExternalProcess
// actions are not debounced or posted-cache-filtered: the Worker invokes
// this directly from its change callback.
func (p *Pool) DispatchExternalProcess(ctx context.Context, path string, cfg config.ExternalProcessConfig) error {
	timeout := config.DurationMs(cfg.ExecutionTimeoutMs)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := make([]string, len(cfg.Argv))
	substituted := false
	for i, a := range cfg.Argv {
		argv[i] = strings.ReplaceAll(a, "{path}", path)
		if argv[i] != a {
			substituted = true
		}
	}
	if !substituted {
		argv = append(argv, path)
	}

	cmd := exec.CommandContext(runCtx, cfg.Executable, argv...)
	if cfg.IgnoreOutput {
		cmd.Stdout = nil
		cmd.Stderr = nil
	}

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		p.log.Warn("external process action timed out", "path", path, "executable", cfg.Executable, "timeout", timeout)
		return fmt.Errorf("external process timed out after %s: %w", timeout, runCtx.Err())
	}
	if err != nil {
		return fmt.Errorf("external process failed: %w", err)
	}
	return nil
}
