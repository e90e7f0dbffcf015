// Package main provides the filewatchrest CLI application.
//
// FileWatchRest watches a set of folders for files matching configured
// patterns and dispatches each match to a REST endpoint or a local
// external process. It runs as a long-lived headless service; see
// showUsage for the command surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/worker"
)

// version is set during build time.
var version = "dev"

// globalOptions holds global flags that apply to the run command.
type globalOptions struct {
	configPath string
	configFlag string
	noWatch    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	configShort := flag.String("c", "", "path to configuration file (shorthand)")
	showVersion := flag.Bool("version", false, "show version information")
	noWatch := flag.Bool("no-watch", false, "disable configuration hot-reload")

	flag.Parse()

	if *showVersion {
		fmt.Printf("filewatchrest %s\n", version)
		return nil
	}

	args := flag.Args()
	command := "run"
	if len(args) > 0 {
		command = args[0]
	}

	globalOpts := globalOptions{
		configFlag: *configPath,
		configPath: *configShort,
		noWatch:    *noWatch,
	}

	switch command {
	case "run", "":
		return runServeCommand(globalOpts, args)
	case "validate":
		return runValidateCommand(globalOpts, args)
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServeCommand resolves the configuration path and runs the Worker
// until interrupted or a watched folder's restarts are exhausted.
func runServeCommand(globalOpts globalOptions, args []string) error {
	positional := args
	if len(positional) > 0 && positional[0] == "run" {
		positional = positional[1:]
	}

	path, err := resolveConfigPath(globalOpts, positional, os.Getenv, fileExists)
	if err != nil {
		return err
	}

	w, err := worker.New(worker.Options{
		ConfigPath: path,
		Watch:      !globalOpts.noWatch,
	})
	if err != nil {
		return fmt.Errorf("initialize worker: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = w.Run(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runValidateCommand loads and validates a configuration file without
// starting the watcher, reporting the first failing invariant.
func runValidateCommand(globalOpts globalOptions, args []string) error {
	path, err := resolveConfigPath(globalOpts, args[1:], os.Getenv, fileExists)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}

	fmt.Printf("%s: valid (%d folder(s) configured)\n", path, len(cfg.Folders))
	return nil
}

// configPathEnvVar is the environment variable consulted by
// resolveConfigPath when no flag or positional argument names a config
// file.
const configPathEnvVar = "FILEWATCHREST_CONFIG"

// resolveConfigPath implements the config path discovery precedence:
// --config > -c > positional argv (if the file exists) > env variable >
// the package default path.
func resolveConfigPath(opts globalOptions, positional []string, getenv func(string) string, exists func(string) bool) (string, error) {
	if opts.configFlag != "" {
		return opts.configFlag, nil
	}
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	if len(positional) > 0 && exists(positional[0]) {
		return positional[0], nil
	}
	if env := getenv(configPathEnvVar); env != "" {
		return env, nil
	}
	return config.DefaultConfigPath(), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && !info.IsDir()
}

// showUsage displays usage information.
func showUsage() error {
	usage := `FileWatchRest - folder watcher with REST/external-process dispatch

Usage:
  filewatchrest [flags] [command] [config-path]

Commands:
  run         Start watching configured folders (default command)
  validate    Load and validate a configuration file, then exit
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -c          Path to configuration file (shorthand)
  -version    Show version information
  -no-watch   Disable configuration hot-reload

Config path discovery (highest precedence first):
  1. -config flag
  2. -c flag
  3. positional argument, if it names an existing file
  4. %s environment variable
  5. %s

Examples:
  # Start the watcher using default config discovery
  filewatchrest run

  # Start with an explicit config file
  filewatchrest -config ./filewatchrest.yaml run

  # Validate a config file without starting the watcher
  filewatchrest validate ./filewatchrest.yaml

Version: %s
`

	fmt.Printf(usage, configPathEnvVar, config.DefaultConfigPath(), version)
	return nil
}
