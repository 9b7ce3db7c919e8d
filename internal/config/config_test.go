package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/patchlay/internal/stores"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewLoader().Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "build", "src"), cfg.Checkout)
	assert.Equal(t, filepath.Join(dir, "resources", "patches"), cfg.Store)
	assert.Equal(t, "series", cfg.Manifest)
	assert.Equal(t, string(stores.OrderingAuto), cfg.Ordering)
	assert.Equal(t, string(stores.ManifestRewrite), cfg.ManifestPolicy)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, "git", cfg.Git)
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	content := "checkout: /abs/chromium/src\nstore: overrides\njobs: 2\nordering: explicit\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".patchlay.yaml"), []byte(content), 0644))

	loader := NewLoader()
	cfg, err := loader.Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "/abs/chromium/src", cfg.Checkout)
	assert.Equal(t, filepath.Join(dir, "overrides"), cfg.Store)
	assert.Equal(t, 2, cfg.Jobs)
	assert.Equal(t, string(stores.OrderingExplicit), cfg.Ordering)
	assert.Equal(t, filepath.Join(dir, ".patchlay.yaml"), loader.ConfigFileUsed())
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".patchlay.yaml"), []byte("jobs: 2\n"), 0644))
	t.Setenv("PATCHLAY_JOBS", "7")
	t.Setenv("PATCHLAY_MANIFEST_POLICY", "preserve")

	cfg, err := NewLoader().Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Jobs)
	assert.Equal(t, string(stores.ManifestPreserve), cfg.ManifestPolicy)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("PATCHLAY_STORE", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store", "", "")
	require.NoError(t, flags.Parse([]string{"--store", "/from/flag"}))

	loader := NewLoader()
	require.NoError(t, loader.BindFlag(KeyStore, flags.Lookup("store")))

	cfg, err := loader.Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Store)
}

func TestLoad_UnsetFlagKeepsEnv(t *testing.T) {
	t.Setenv("PATCHLAY_STORE", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store", "", "")
	require.NoError(t, flags.Parse(nil))

	loader := NewLoader()
	require.NoError(t, loader.BindFlag(KeyStore, flags.Lookup("store")))

	cfg, err := loader.Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Store)
}

func TestBindFlag_Nil(t *testing.T) {
	assert.Error(t, NewLoader().BindFlag(KeyStore, nil))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "bad ordering", mutate: func(c *Config) { c.Ordering = "random" }, wantError: true},
		{name: "bad policy", mutate: func(c *Config) { c.ManifestPolicy = "merge" }, wantError: true},
		{name: "zero jobs", mutate: func(c *Config) { c.Jobs = 0 }, wantError: true},
		{name: "manifest with separator", mutate: func(c *Config) { c.Manifest = "a/series" }, wantError: true},
		{name: "empty manifest", mutate: func(c *Config) { c.Manifest = "" }, wantError: true},
		{name: "empty git", mutate: func(c *Config) { c.Git = "" }, wantError: true},
		{name: "explicit preserve", mutate: func(c *Config) {
			c.Ordering = string(stores.OrderingExplicit)
			c.ManifestPolicy = string(stores.ManifestPreserve)
		}},
		{name: "implicit drop", mutate: func(c *Config) {
			c.Ordering = string(stores.OrderingImplicit)
			c.ManifestPolicy = string(stores.ManifestDrop)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateAcceptsEveryStoreEnum(t *testing.T) {
	orderings := []stores.Ordering{stores.OrderingAuto, stores.OrderingExplicit, stores.OrderingImplicit}
	policies := []stores.ManifestPolicy{stores.ManifestRewrite, stores.ManifestPreserve, stores.ManifestDrop}

	for _, ordering := range orderings {
		for _, policy := range policies {
			cfg := Default()
			cfg.Ordering = string(ordering)
			cfg.ManifestPolicy = string(policy)
			assert.NoError(t, cfg.Validate(), "%s/%s", ordering, policy)
		}
	}
}
