package watchermgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/diagnostics"
	"github.com/trackd/filewatchrest/pkg/logger"
)

func newTestManager(t *testing.T) (*Manager, *diagnostics.Diagnostics) {
	t.Helper()
	diag := diagnostics.New(diagnostics.NewMemoryPostedCache())
	return New(diag, logger.Noop()), diag
}

func testGlobalConfig(folders ...string) *config.GlobalConfig {
	cfg := config.Default()
	for _, f := range folders {
		cfg.Folders = append(cfg.Folders, config.WatchedFolder{Path: f})
	}
	cfg.Defaults.Endpoint = "https://example.com/hook"
	cfg.Watcher.MaxRestartAttempts = 2
	cfg.Watcher.RestartDelayMs = 10
	return cfg
}

func TestStartRegistersWatchersWithDiagnostics(t *testing.T) {
	dir := t.TempDir()
	m, diag := newTestManager(t)
	defer m.Close()

	cfg := testGlobalConfig(dir)
	if err := m.Start(cfg, nil, nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	status := diag.GetStatus()
	if len(status.ActiveWatchers) != 1 {
		t.Fatalf("expected 1 active watcher, got %d", len(status.ActiveWatchers))
	}
}

func TestStartTwiceFails(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t)
	defer m.Close()

	cfg := testGlobalConfig(dir)
	if err := m.Start(cfg, nil, nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(cfg, nil, nil, nil); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestCreateEventForwarded(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t)
	defer m.Close()

	events := make(chan FileEvent, 4)
	cfg := testGlobalConfig(dir)

	if err := m.Start(cfg, func(ev FileEvent, _ config.EffectiveConfig) {
		events <- ev
	}, nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != Created && ev.Kind != Changed {
			t.Errorf("expected Created or Changed, got %v", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for file event")
	}
}

func TestTryResolveLongestPrefixMatch(t *testing.T) {
	dirOuter := t.TempDir()
	dirInner := filepath.Join(dirOuter, "inner")
	if err := os.Mkdir(dirInner, 0755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	m, _ := newTestManager(t)
	defer m.Close()

	cfg := testGlobalConfig(dirOuter, dirInner)
	if err := m.Start(cfg, nil, nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, folder, err := m.TryResolve(filepath.Join(dirInner, "x.txt"))
	if err != nil {
		t.Fatalf("TryResolve() error = %v", err)
	}
	if filepath.Clean(folder) != filepath.Clean(dirInner) {
		t.Errorf("expected longest-prefix match %q, got %q", dirInner, folder)
	}
}

func TestTryResolveRequiresSegmentBoundary(t *testing.T) {
	base := t.TempDir()
	watched := filepath.Join(base, "inbox")
	sibling := filepath.Join(base, "inbox2")
	for _, dir := range []string{watched, sibling} {
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
	}

	m, _ := newTestManager(t)
	defer m.Close()

	cfg := testGlobalConfig(watched)
	if err := m.Start(cfg, nil, nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, _, err := m.TryResolve(filepath.Join(sibling, "x.txt")); err != ErrNoResolution {
		t.Fatalf("expected sibling folder with shared name prefix to not resolve, got %v", err)
	}
}

func TestTryResolveNoMatch(t *testing.T) {
	m, _ := newTestManager(t)
	defer m.Close()

	if _, _, err := m.TryResolve("/nowhere/x.txt"); err != ErrNoResolution {
		t.Fatalf("expected ErrNoResolution, got %v", err)
	}
}

func TestStopAllUnregistersWatchers(t *testing.T) {
	dir := t.TempDir()
	m, diag := newTestManager(t)

	cfg := testGlobalConfig(dir)
	if err := m.Start(cfg, nil, nil, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.StopAll()

	status := diag.GetStatus()
	if len(status.ActiveWatchers) != 0 {
		t.Fatalf("expected 0 active watchers after StopAll, got %d", len(status.ActiveWatchers))
	}
}

func TestOnExhaustedCalledOnceAfterRestartBoundExceeded(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t)
	defer m.Close()

	cfg := testGlobalConfig(dir)
	cfg.Watcher.MaxRestartAttempts = 1
	cfg.Watcher.RestartDelayMs = 1

	exhausted := make(chan string, 4)
	if err := m.Start(cfg, nil, nil, func(folder string) {
		exhausted <- folder
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.mu.Lock()
	var entry *folderEntry
	for _, e := range m.entries {
		entry = e
	}
	m.mu.Unlock()

	// Simulate repeated watcher errors exceeding MaxRestartAttempts.
	m.handleError(entry, os.ErrClosed)
	time.Sleep(20 * time.Millisecond)
	m.handleError(entry, os.ErrClosed)
	time.Sleep(20 * time.Millisecond)

	select {
	case <-exhausted:
	case <-time.After(time.Second):
		t.Fatal("expected onExhausted to fire after restart attempts exceeded")
	}

	select {
	case <-exhausted:
		t.Fatal("onExhausted fired more than once")
	default:
	}
}
