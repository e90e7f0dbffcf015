package config

import (
	"path/filepath"
	"testing"
)

func validConfig() *GlobalConfig {
	cfg := Default()
	cfg.Folders = []WatchedFolder{{Path: "/watch/inbox"}}
	cfg.Defaults.Endpoint = "https://example.com/hook"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GlobalConfig)
		wantErr error
	}{
		{
			name:    "valid default",
			mutate:  func(c *GlobalConfig) {},
			wantErr: nil,
		},
		{
			name:    "no folders",
			mutate:  func(c *GlobalConfig) { c.Folders = nil },
			wantErr: ErrNoFolders,
		},
		{
			name:    "empty folder path",
			mutate:  func(c *GlobalConfig) { c.Folders[0].Path = "" },
			wantErr: ErrEmptyFolderPath,
		},
		{
			name:    "unknown action",
			mutate:  func(c *GlobalConfig) { c.Folders[0].ActionName = "missing" },
			wantErr: ErrUnknownAction,
		},
		{
			name:    "zero channel capacity",
			mutate:  func(c *GlobalConfig) { c.ChannelCapacity = 0 },
			wantErr: ErrInvalidChannelCapacity,
		},
		{
			name:    "zero sender parallelism",
			mutate:  func(c *GlobalConfig) { c.SenderParallelism = 0 },
			wantErr: ErrInvalidSenderParallelism,
		},
		{
			name:    "negative restart attempts",
			mutate:  func(c *GlobalConfig) { c.Watcher.MaxRestartAttempts = -1 },
			wantErr: ErrInvalidWatcherTuning,
		},
		{
			name:    "bad endpoint",
			mutate:  func(c *GlobalConfig) { c.Defaults.Endpoint = "not-a-url" },
			wantErr: ErrInvalidEndpoint,
		},
		{
			name:    "bad extension",
			mutate:  func(c *GlobalConfig) { c.Defaults.AllowedExtensions = []string{"txt"} },
			wantErr: ErrInvalidExtension,
		},
		{
			name:    "good extension glob",
			mutate:  func(c *GlobalConfig) { c.Defaults.AllowedExtensions = []string{"*.txt"} },
			wantErr: nil,
		},
		{
			name:    "bad log level",
			mutate:  func(c *GlobalConfig) { c.Logging.Level = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() = nil, want error wrapping %v", tt.wantErr)
			}
		})
	}
}

func TestLoadFromFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := validConfig()
	cfg.Folders = append(cfg.Folders, WatchedFolder{Path: "/watch/second", ActionName: "archive"})
	cfg.Actions["archive"] = ActionDef{
		Kind: ActionRestPost,
		RestPost: &RestPostOverride{
			Endpoint: strPtr("https://example.com/archive"),
		},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if len(loaded.Folders) != 2 {
		t.Fatalf("expected 2 folders, got %d", len(loaded.Folders))
	}
	if loaded.Folders[1].ActionName != "archive" {
		t.Errorf("expected second folder action 'archive', got %q", loaded.Folders[1].ActionName)
	}
	if got := loaded.Actions["archive"].RestPost.Endpoint; got == nil || *got != "https://example.com/archive" {
		t.Errorf("expected archive endpoint to round-trip, got %v", got)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestResolveInheritsGlobalDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.DebounceMs = 750

	eff, err := Resolve(WatchedFolder{Path: "/watch/inbox"}, cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if eff.RestPost.DebounceMs != 750 {
		t.Errorf("expected inherited DebounceMs 750, got %d", eff.RestPost.DebounceMs)
	}
	if eff.RestPost.Endpoint != cfg.Defaults.Endpoint {
		t.Errorf("expected inherited endpoint %q, got %q", cfg.Defaults.Endpoint, eff.RestPost.Endpoint)
	}
}

func TestResolveOverridesWinOverDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Actions["fast"] = ActionDef{
		Kind: ActionRestPost,
		RestPost: &RestPostOverride{
			DebounceMs: intPtr(10),
		},
	}

	eff, err := Resolve(WatchedFolder{Path: "/watch/fast", ActionName: "fast"}, cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if eff.RestPost.DebounceMs != 10 {
		t.Errorf("expected overridden DebounceMs 10, got %d", eff.RestPost.DebounceMs)
	}
	// Non-overridden fields still inherit from global.
	if eff.RestPost.Retries != cfg.Defaults.Retries {
		t.Errorf("expected inherited Retries %d, got %d", cfg.Defaults.Retries, eff.RestPost.Retries)
	}
}

func TestResolveUnknownAction(t *testing.T) {
	cfg := validConfig()
	_, err := Resolve(WatchedFolder{Path: "/watch/x", ActionName: "nope"}, cfg)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
