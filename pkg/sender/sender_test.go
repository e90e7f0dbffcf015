package sender

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/diagnostics"
	"github.com/trackd/filewatchrest/pkg/logger"
	"github.com/trackd/filewatchrest/pkg/resilience"
)

// mockResolver implements Resolver for testing.
type mockResolver struct {
	effective config.EffectiveConfig
	folder    string
	err       error
}

func (m *mockResolver) TryResolve(path string) (config.EffectiveConfig, string, error) {
	return m.effective, m.folder, m.err
}

// mockDispatcher implements Dispatcher for testing, recording each call's
// notification size via the request factory.
type mockDispatcher struct {
	outcome      resilience.Outcome
	lastEndpoint string
	calls        int
}

func (m *mockDispatcher) Execute(ctx context.Context, endpointKey string, policy resilience.Policy, factory resilience.RequestFactory) resilience.Outcome {
	m.calls++
	m.lastEndpoint = endpointKey
	_, _ = factory(ctx) // exercise request construction the way the real engine would
	return m.outcome
}

func restPostEffective(endpoint string, overrides func(*config.RestPostConfig)) config.EffectiveConfig {
	cfg := config.RestPostConfig{
		Endpoint:                endpoint,
		PostFileContents:        true,
		MaxContentBytes:         10240,
		StreamingThresholdBytes: 1024,
		Retries:                 1,
	}
	if overrides != nil {
		overrides(&cfg)
	}
	return config.EffectiveConfig{Kind: config.ActionRestPost, RestPost: cfg}
}

func newTestPool(t *testing.T, resolver Resolver, dispatcher Dispatcher) (*Pool, *diagnostics.Diagnostics) {
	t.Helper()
	diag := diagnostics.New(diagnostics.NewMemoryPostedCache())
	pool := New(make(chan string), 1, resolver, diag, dispatcher, logger.Noop())
	return pool, diag
}

func TestProcessPathSkipsAlreadyPosted(t *testing.T) {
	diag := diagnostics.New(diagnostics.NewMemoryPostedCache())
	require.NoError(t, diag.MarkPosted("/watch/a.txt", true))

	resolver := &mockResolver{}
	dispatcher := &mockDispatcher{}
	pool := New(make(chan string), 1, resolver, diag, dispatcher, logger.Noop())

	result := pool.ProcessPath(context.Background(), "/watch/a.txt")

	assert.True(t, result.Skipped)
	assert.Equal(t, 0, dispatcher.calls)
}

func TestProcessPathSkipsNonRestPostAction(t *testing.T) {
	resolver := &mockResolver{effective: config.EffectiveConfig{Kind: config.ActionExternalProcess}}
	dispatcher := &mockDispatcher{}
	pool, _ := newTestPool(t, resolver, dispatcher)

	result := pool.ProcessPath(context.Background(), "/watch/a.txt")

	assert.True(t, result.Skipped)
	assert.Equal(t, 0, dispatcher.calls)
}

func TestProcessPathHappyPathJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	resolver := &mockResolver{effective: restPostEffective("https://example.com/hook", nil)}
	dispatcher := &mockDispatcher{outcome: resilience.Outcome{Success: true, Attempts: 1, LastStatus: 200}}
	pool, diag := newTestPool(t, resolver, dispatcher)

	result := pool.ProcessPath(context.Background(), path)

	require.True(t, result.Success)
	assert.Equal(t, 1, dispatcher.calls)
	assert.True(t, diag.IsPosted(path))
}

func TestProcessPathStreamingThresholdBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boundary.bin")

	// Exactly at StreamingThresholdBytes: must use JSON, not multipart.
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0644))

	resolver := &mockResolver{effective: restPostEffective("https://example.com/hook", nil)}
	dispatcher := &mockDispatcher{outcome: resilience.Outcome{Success: true, LastStatus: 200}}
	pool, _ := newTestPool(t, resolver, dispatcher)

	n, err := pool.buildNotification(path, resolver.effective.RestPost)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n.FileSize)

	assert.False(t, useMultipartFor(n, resolver.effective.RestPost), "size == StreamingThresholdBytes must use JSON")

	pool.dispatch(context.Background(), n, resolver.effective.RestPost)
}

func TestProcessPathStreamingThresholdPlusOneUsesMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boundary.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 1025), 0644))

	resolver := &mockResolver{effective: restPostEffective("https://example.com/hook", nil)}
	n, err := (&Pool{log: logger.Noop()}).buildNotification(path, resolver.effective.RestPost)
	require.NoError(t, err)

	assert.True(t, useMultipartFor(n, resolver.effective.RestPost), "size == StreamingThresholdBytes+1 must use multipart")
}

func TestArchiveAppliesTimestampPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	pool := &Pool{log: logger.Noop()}
	cfg := config.RestPostConfig{ProcessedFolder: "done"}

	require.NoError(t, pool.archive(path, cfg))

	entries, err := os.ReadDir(filepath.Join(dir, "done"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "a.txt")
	assert.Regexp(t, `^\d{8}_\d{6}_\d{3}_a\.txt$`, entries[0].Name())
}

func TestDispatchExternalProcessRunsWithPathSubstitution(t *testing.T) {
	pool := &Pool{log: logger.Noop()}
	cfg := config.ExternalProcessConfig{
		Executable:         "/bin/sh",
		Argv:               []string{"-c", "test -f \"$0\""},
		ExecutionTimeoutMs: 2000,
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	cfg.Argv = []string{"-c", "test -f \"$0\"", "{path}"}
	err := pool.DispatchExternalProcess(context.Background(), path, cfg)
	assert.NoError(t, err)
}
