// Package config manages patchlay configuration.
//
// Values are layered with viper: built-in defaults, an optional
// .patchlay.yaml in the working directory (or an explicit --config file),
// PATCHLAY_* environment variables, and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/danieljhkim/patchlay/internal/stores"
)

// Configuration keys.
const (
	KeyCheckout       = "checkout"
	KeyStore          = "store"
	KeyManifest       = "manifest"
	KeyOrdering       = "ordering"
	KeyManifestPolicy = "manifest_policy"
	KeyJobs           = "jobs"
	KeyGit            = "git"
	KeyLogLevel       = "log_level"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PATCHLAY"

// ConfigName is the base name of the optional project config file.
const ConfigName = ".patchlay"

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains everything an engine invocation needs to know.
type Config struct {
	// Checkout is the checkout root (a wrapper directory containing src/ is accepted)
	Checkout string `mapstructure:"checkout"`

	// Store is the artifact store root
	Store string `mapstructure:"store"`

	// Manifest is the file name of the explicit ordering manifest inside the store
	Manifest string `mapstructure:"manifest"`

	// Ordering selects the store ordering strategy: auto, explicit or implicit
	Ordering string `mapstructure:"ordering"`

	// ManifestPolicy decides what regenerate does with an existing manifest
	ManifestPolicy string `mapstructure:"manifest_policy"`

	// Jobs bounds parallel diff generation during regenerate
	Jobs int `mapstructure:"jobs"`

	// Git is the git executable name or path
	Git string `mapstructure:"git"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Checkout:       filepath.Join("build", "src"),
		Store:          filepath.Join("resources", "patches"),
		Manifest:       stores.DefaultManifest,
		Ordering:       string(stores.OrderingAuto),
		ManifestPolicy: string(stores.ManifestRewrite),
		Jobs:           4,
		Git:            "git",
		LogLevel:       "info",
	}
}

// Loader builds a Config from defaults, file, environment and flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults and environment binding in place.
func NewLoader() *Loader {
	v := viper.New()
	def := Default()
	v.SetDefault(KeyCheckout, def.Checkout)
	v.SetDefault(KeyStore, def.Store)
	v.SetDefault(KeyManifest, def.Manifest)
	v.SetDefault(KeyOrdering, def.Ordering)
	v.SetDefault(KeyManifestPolicy, def.ManifestPolicy)
	v.SetDefault(KeyJobs, def.Jobs)
	v.SetDefault(KeyGit, def.Git)
	v.SetDefault(KeyLogLevel, def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlag binds a command-line flag to a configuration key.
// A flag that was not set on the command line does not override lower layers.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %q", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file (if any) and returns the merged configuration.
// An explicit file that cannot be read is an error; a missing .patchlay.yaml
// in dir is not.
func (l *Loader) Load(file, dir string) (*Config, error) {
	if file != "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		l.v.SetConfigName(ConfigName)
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(dir)
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolve(dir)
	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Validate checks enum values and bounds.
func (c *Config) Validate() error {
	switch stores.Ordering(c.Ordering) {
	case stores.OrderingAuto, stores.OrderingExplicit, stores.OrderingImplicit:
	default:
		return fmt.Errorf("%w: ordering must be auto, explicit or implicit, got %q", ErrInvalidConfig, c.Ordering)
	}

	switch stores.ManifestPolicy(c.ManifestPolicy) {
	case stores.ManifestRewrite, stores.ManifestPreserve, stores.ManifestDrop:
	default:
		return fmt.Errorf("%w: manifest_policy must be rewrite, preserve or drop, got %q", ErrInvalidConfig, c.ManifestPolicy)
	}

	if c.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be at least 1, got %d", ErrInvalidConfig, c.Jobs)
	}

	if c.Manifest == "" || strings.ContainsAny(c.Manifest, `/\`) {
		return fmt.Errorf("%w: manifest must be a plain file name, got %q", ErrInvalidConfig, c.Manifest)
	}

	if c.Git == "" {
		return fmt.Errorf("%w: git executable must not be empty", ErrInvalidConfig)
	}

	return nil
}

// resolve makes relative checkout and store paths absolute against dir.
func (c *Config) resolve(dir string) {
	if c.Checkout != "" && !filepath.IsAbs(c.Checkout) {
		c.Checkout = filepath.Join(dir, c.Checkout)
	}
	if c.Store != "" && !filepath.IsAbs(c.Store) {
		c.Store = filepath.Join(dir, c.Store)
	}
}

// WorkingDir returns the directory relative paths are resolved against.
func WorkingDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return cwd, nil
}
