package sender

import (
	"context"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/trackd/filewatchrest/pkg/config"
)

// readyPollInterval is how often WaitForReady retries a shared-read open
// while waiting for a file to settle.
const readyPollInterval = 50 * time.Millisecond

// Result is the outcome of running the state machine once for a path.
// ProcessPath is exported so tests can drive the state machine directly
// without going through the worker pool.
type Result struct {
	Skipped    bool // CheckPosted/ResolveConfig short-circuited
	Success    bool
	StatusCode int
	Err        error
}

// ProcessPath runs the full state machine for path: CheckPosted ->
// ResolveConfig -> WaitForReady -> BuildNotification -> Dispatch ->
// Interpret -> Archive.
func (p *Pool) ProcessPath(ctx context.Context, path string) Result {
	if p.diag.IsPosted(path) {
		return Result{Skipped: true}
	}

	effective, _, err := p.resolver.TryResolve(path)
	if err != nil || effective.Kind != config.ActionRestPost {
		return Result{Skipped: true, Err: ErrNotRestPost}
	}
	cfg := effective.RestPost

	if err := p.waitForReady(ctx, path, cfg); err != nil {
		p.diag.RecordFileEvent(path, false, nil)
		return Result{Success: false, Err: err}
	}

	notification, err := p.buildNotification(path, cfg)
	if err != nil {
		p.log.Warn("failed to build notification, sending metadata only", "path", path, "error", err)
	}

	outcome := p.dispatch(ctx, notification, cfg)

	return p.interpret(path, notification, cfg, outcome)
}

func (p *Pool) process(ctx context.Context, path string) {
	p.ProcessPath(ctx, path)
}

// waitForReady polls until the file can be opened for shared reading
// (and, when contents are posted, is non-empty). If WaitForFileReadyMs
// is 0, the file is considered immediately ready.
func (p *Pool) waitForReady(ctx context.Context, path string, cfg config.RestPostConfig) error {
	if cfg.WaitForFileReadyMs <= 0 {
		return nil
	}

	deadline := time.Now().Add(config.DurationMs(cfg.WaitForFileReadyMs))
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		ready, size := p.checkReady(path, cfg)
		if ready {
			return nil
		}

		if time.Now().After(deadline) {
			if size == 0 && cfg.DiscardZeroByteFiles {
				return ErrFileNeverReady
			}
			return nil // proceed anyway; DiscardZeroByteFiles is false
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pool) checkReady(path string, cfg config.RestPostConfig) (ready bool, size int64) {
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return false, 0
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, 0
	}
	size = info.Size()

	if !cfg.PostFileContents {
		return true, size
	}
	return size > 0, size
}

// buildNotification stats the file and, when configured and within the
// content cap, reads its contents.
func (p *Pool) buildNotification(path string, cfg config.RestPostConfig) (Notification, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Notification{Path: path}, err
	}

	n := Notification{
		Path:          path,
		FileSize:      info.Size(),
		LastWriteTime: info.ModTime(),
	}

	if !cfg.PostFileContents {
		return n, nil
	}
	if info.Size() > cfg.MaxContentBytes {
		return n, nil
	}

	content, err := p.readFile(path, info.Size())
	if err != nil {
		return n, err
	}
	if !utf8.ValidString(content) {
		p.log.Warn("file content is not valid UTF-8, sending metadata only", "path", path)
		return n, nil
	}
	n.Content = content
	return n, nil
}

// readFile reads the whole file, routing through the pooled buffer for
// files larger than pooledBufferThreshold.
func (p *Pool) readFile(path string, size int64) (string, error) {
	if size <= pooledBufferThreshold {
		data, err := os.ReadFile(path) // nolint:gosec
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	bufPtr := p.bufPool.Get().(*[]byte)
	defer p.bufPool.Put(bufPtr)

	buf := (*bufPtr)[:0]
	if cap(buf) < int(size) {
		buf = make([]byte, 0, size)
	}

	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return "", err
	}
	defer f.Close()

	chunk := make([]byte, 32*1024)
	for {
		n, readErr := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", readErr
		}
	}

	*bufPtr = buf
	return string(buf), nil
}
