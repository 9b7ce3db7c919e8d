package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/patchlay/internal/config"
	"github.com/danieljhkim/patchlay/internal/engine"
	"github.com/danieljhkim/patchlay/internal/fsops"
	"github.com/danieljhkim/patchlay/internal/gitx"
	"github.com/danieljhkim/patchlay/internal/hash"
	"github.com/danieljhkim/patchlay/internal/stores"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"checkout":        config.KeyCheckout,
	"store":           config.KeyStore,
	"manifest":        config.KeyManifest,
	"ordering":        config.KeyOrdering,
	"manifest-policy": config.KeyManifestPolicy,
	"jobs":            config.KeyJobs,
}

// loadConfig merges defaults, the config file, environment and the flags
// the command accepts.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := loader.BindFlag(key, flag); err != nil {
			return nil, err
		}
	}

	dir, err := config.WorkingDir()
	if err != nil {
		return nil, err
	}

	cfg, err := loader.Load(configFile, dir)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds the stderr logger for a configuration.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", config.ErrInvalidConfig, err)
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})), nil
}

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine(cmd *cobra.Command) (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(
		gitx.NewRealGitRepo(cfg.Git),
		fsops.NewRealFS(),
		hash.NewSHA256Hasher(),
		engine.Options{
			Manifest:       cfg.Manifest,
			Ordering:       stores.Ordering(cfg.Ordering),
			ManifestPolicy: engine.ManifestPolicy(cfg.ManifestPolicy),
			Jobs:           cfg.Jobs,
			Logger:         logger,
		},
	)
	return eng, cfg, nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	out, err := formatJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}

// printOpError prints the path and tool diagnostic of an engine failure.
func printOpError(err error) {
	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		return
	}
	PrintError(fmt.Sprintf("%s: %s", opErr.Path, opErr.Kind))
	if diag := opErr.Diagnostic(); diag != "" {
		PrintDiagnostic(diag)
	}
}
