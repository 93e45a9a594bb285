package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

// defineAllFlags mirrors the flag set registered by the root command.
func defineAllFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Config file")
	flags.String("profile", "", "Config profile")
	flags.BoolP("verbose", "v", false, "Verbose logging")
	flags.String("data-root", DefaultDataRoot, "Data root")
	flags.StringSlice("actor", nil, "Actors")
	flags.Int("batch-size", workflow.DefaultBatchSize, "Batch size")
	flags.Int("concurrency", workflow.DefaultConcurrency, "Concurrency")
	flags.Bool("no-lock", false, "Disable lock")
	flags.String("database", "", "Database path")
	flags.String("default-encoding", "", "Default encoding")
	flags.Duration("interval", 0, "Interval")
	flags.String("metrics-textfile", "", "Metrics textfile")
	flags.Bool("no-tui", false, "Disable TUI")
	flags.String("output-format", string(DefaultOutputFormat), "Output format")
}

func newFlags(t *testing.T, set map[string]string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	defineAllFlags(flags)
	for k, v := range set {
		require.NoError(t, flags.Set(k, v), "setting flag %s", k)
	}
	return flags
}

// isolate keeps config discovery away from the developer's real home directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoadAndValidate_Defaults(t *testing.T) {
	isolate(t)

	s, logger, err := LoadAndValidate("", "", "1.0.0", newFlags(t, nil))
	require.NoError(t, err)
	require.NotNil(t, logger)

	cwd, _ := filepath.Abs(".")
	assert.Equal(t, cwd, s.DataRoot)
	assert.Equal(t, actors.Names(), s.Actors)
	assert.Equal(t, workflow.DefaultBatchSize, s.BatchSize)
	assert.Equal(t, workflow.DefaultConcurrency, s.Concurrency)
	assert.False(t, s.DisableLock)
	assert.Equal(t, time.Duration(0), s.Interval)
	assert.Equal(t, OutputFormatText, s.OutputFormat)
	assert.True(t, s.TuiEnabled)
	assert.False(t, s.Verbose)
	assert.Empty(t, s.DatabasePath)
	assert.Empty(t, s.ConfigFilePath)
	assert.Equal(t, "1.0.0", s.AppVersion)
	assert.NotNil(t, s.Logger)
}

func TestLoadAndValidate_ConfigFile_YAML(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	cfg := createTempConfigFile(t, fmt.Sprintf(`
dataRoot: %s
actors: [public-api-queries]
batchSize: 10
concurrency: 3
disableLock: true
databasePath: analytics.duckdb
defaultEncoding: windows-1252
interval: 5m
outputFormat: json
tuiEnabled: false
`, root))

	s, _, err := LoadAndValidate(cfg, "", "dev", newFlags(t, nil))
	require.NoError(t, err)

	assert.Equal(t, cfg, s.ConfigFilePath)
	assert.Equal(t, root, s.DataRoot)
	assert.Equal(t, []string{"public-api-queries"}, s.Actors)
	assert.Equal(t, 10, s.BatchSize)
	assert.Equal(t, 3, s.Concurrency)
	assert.True(t, s.DisableLock)
	assert.True(t, filepath.IsAbs(s.DatabasePath))
	assert.Equal(t, "windows-1252", s.DefaultEncoding)
	assert.Equal(t, 5*time.Minute, s.Interval)
	assert.Equal(t, OutputFormatJSON, s.OutputFormat)
	assert.False(t, s.TuiEnabled)
}

func TestLoadAndValidate_MissingExplicitConfigFile(t *testing.T) {
	isolate(t)
	_, _, err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml"), "", "dev", newFlags(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadAndValidate_Profile(t *testing.T) {
	isolate(t)
	cfg := createTempConfigFile(t, `
batchSize: 50
profiles:
  ci:
    batchSize: 5
    tuiEnabled: false
`)

	s, _, err := LoadAndValidate(cfg, "ci", "dev", newFlags(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "ci", s.ProfileName)
	assert.Equal(t, 5, s.BatchSize)
	assert.False(t, s.TuiEnabled)

	_, _, err = LoadAndValidate(cfg, "missing", "dev", newFlags(t, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrConfigValidation)
	assert.Contains(t, err.Error(), "profile 'missing' not found")
}

func TestLoadAndValidate_EnvVarOverride(t *testing.T) {
	isolate(t)
	t.Setenv("EESANALYTICS_BATCHSIZE", "25")
	t.Setenv("EESANALYTICS_OUTPUTFORMAT", "json")

	s, _, err := LoadAndValidate("", "", "dev", newFlags(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 25, s.BatchSize)
	assert.Equal(t, OutputFormatJSON, s.OutputFormat)
}

func TestLoadAndValidate_FlagOverride(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	flags := newFlags(t, map[string]string{
		"data-root":   root,
		"actor":       "public-zip-downloads",
		"batch-size":  "7",
		"no-lock":     "true",
		"no-tui":      "true",
		"interval":    "1m",
		"verbose":     "true",
		"concurrency": "2",
	})

	s, _, err := LoadAndValidate("", "", "dev", flags)
	require.NoError(t, err)
	assert.Equal(t, root, s.DataRoot)
	assert.Equal(t, []string{"public-zip-downloads"}, s.Actors)
	assert.Equal(t, 7, s.BatchSize)
	assert.Equal(t, 2, s.Concurrency)
	assert.True(t, s.DisableLock)
	assert.False(t, s.TuiEnabled)
	assert.Equal(t, time.Minute, s.Interval)
	assert.True(t, s.Verbose)
}

func TestLoadAndValidate_Precedence(t *testing.T) {
	isolate(t)
	cfg := createTempConfigFile(t, "batchSize: 10\n")
	t.Setenv("EESANALYTICS_BATCHSIZE", "20")

	s, _, err := LoadAndValidate(cfg, "", "dev", newFlags(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 20, s.BatchSize, "env should override file")

	s, _, err = LoadAndValidate(cfg, "", "dev", newFlags(t, map[string]string{"batch-size": "30"}))
	require.NoError(t, err)
	assert.Equal(t, 30, s.BatchSize, "flag should override env")
}

func TestLoadAndValidate_DuplicateActors(t *testing.T) {
	isolate(t)
	flags := newFlags(t, map[string]string{"actor": "public-api-queries,public-api-queries"})

	s, _, err := LoadAndValidate("", "", "dev", flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"public-api-queries"}, s.Actors)
}

func TestLoadAndValidate_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name     string
		flags    map[string]string
		contains string
	}{
		{"Unknown actor", map[string]string{"actor": "nope"}, "unknown actor 'nope'"},
		{"Negative batch size", map[string]string{"batch-size": "-1"}, "key 'batchSize'"},
		{"Negative concurrency", map[string]string{"concurrency": "-2"}, "key 'concurrency'"},
		{"Negative interval", map[string]string{"interval": "-1m"}, "key 'interval'"},
		{"Bad output format", map[string]string{"output-format": "xml"}, "key 'outputFormat'"},
		{"Bad encoding", map[string]string{"default-encoding": "klingon"}, "key 'defaultEncoding'"},
		{"Empty data root", map[string]string{"data-root": ""}, "data root is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			_, _, err := LoadAndValidate("", "", "dev", newFlags(t, tc.flags))
			require.Error(t, err)
			assert.ErrorIs(t, err, workflow.ErrConfigValidation)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestLoadAndValidate_VerboseLogger(t *testing.T) {
	isolate(t)

	_, logger, err := LoadAndValidate("", "", "dev", newFlags(t, nil))
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	_, logger, err = LoadAndValidate("", "", "dev", newFlags(t, map[string]string{"verbose": "true"}))
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
