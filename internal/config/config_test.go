package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() Config {
	cfg := Default()
	cfg.Input = "/data/dataset-ds000228"
	cfg.Output = "/results"
	cfg.Atlas = "Schaefer2018"
	cfg.Dimension = "400"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30, cfg.Workers)
	assert.Equal(t, []string{"age", "gender"}, cfg.Covariates)
	assert.Equal(t, "mean_framewise_displacement", cfg.MotionColumn)
	assert.Equal(t, "strict", cfg.AlignPolicy)
	assert.Equal(t, 1.0, cfg.Resolution)
	assert.NoError(t, valid().Validate())
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"no input":      func(c *Config) { c.Input = "" },
		"no output":     func(c *Config) { c.Output = "" },
		"no atlas":      func(c *Config) { c.Atlas = "" },
		"no dimension":  func(c *Config) { c.Dimension = "" },
		"workers":       func(c *Config) { c.Workers = -1 },
		"resolution":    func(c *Config) { c.Resolution = 0 },
		"alpha":         func(c *Config) { c.Alpha = 1 },
		"max fd":        func(c *Config) { c.MaxMeanFD = -0.1 },
		"motion as cov": func(c *Config) { c.Covariates = append(c.Covariates, c.MotionColumn) },
		"empty cov":     func(c *Config) { c.Covariates = []string{" "} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("DATA=/env/dataset-ds000001\nRESULT=/env/out\n"), 0o644))

	t.Setenv(EnvData, "")
	t.Setenv(EnvResult, "")
	os.Unsetenv(EnvData)
	os.Unsetenv(EnvResult)

	cfg := Default()
	cfg.Output = "/explicit"
	require.NoError(t, LoadEnv(&cfg, env))
	assert.Equal(t, "/env/dataset-ds000001", cfg.Input)
	assert.Equal(t, "/explicit", cfg.Output)

	missing := Default()
	require.NoError(t, LoadEnv(&missing, filepath.Join(dir, "absent.env")))
}

func TestParseStrategies(t *testing.T) {
	got, err := ParseStrategies([]byte("strategies:\n  - baseline\n  - scrubbing.5+gsr\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"baseline", "scrubbing.5+gsr"}, got)

	for name, doc := range map[string]string{
		"empty":     "strategies: []\n",
		"duplicate": "strategies: [simple, simple]\n",
		"glob":      "strategies: [simple*]\n",
		"blank":     "strategies: ['']\n",
		"malformed": "strategies: {simple: 1}\n",
	} {
		_, err := ParseStrategies([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadStrategies(t *testing.T) {
	def, err := LoadStrategies("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategies, def)
	def[0] = "changed"
	assert.Equal(t, "baseline", DefaultStrategies[0])

	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategies: [compcor, aroma]\n"), 0o644))
	got, err := LoadStrategies(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"compcor", "aroma"}, got)

	_, err = LoadStrategies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveStrategies(t *testing.T) {
	cfg := valid()
	got, err := cfg.ResolveStrategies()
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategies, got)

	cfg.StrategyFile = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Strategies = []string{" compcor", "simple+gsr"}
	got, err = cfg.ResolveStrategies()
	require.NoError(t, err)
	assert.Equal(t, []string{"compcor", "simple+gsr"}, got)

	cfg.Strategies = []string{"compcor", "compcor"}
	_, err = cfg.ResolveStrategies()
	assert.Error(t, err)

	cfg.Strategies = nil
	_, err = cfg.ResolveStrategies()
	assert.Error(t, err, "registry file is read when no names are given")
}
