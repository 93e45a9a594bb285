package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	root.SetOut(stdoutBuf)
	root.SetErr(stderrBuf)
	root.SetArgs(args)

	err = root.Execute()
	return stdoutBuf.String(), stderrBuf.String(), err
}

func TestRootCmdHelp(t *testing.T) {
	stdout, stderr, err := executeCommand(newRootCmd(), "--help")

	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "ees-analytics")
	assert.Contains(t, stdout, "--version")
}

func TestRootCmdHelp_AllFlagsPresent(t *testing.T) {
	cmd := newRootCmd()
	stdout, _, err := executeCommand(cmd, "--help")
	require.NoError(t, err)

	check := func(f *pflag.Flag) {
		assert.Contains(t, stdout, "--"+f.Name, "Help output should contain flag --%s", f.Name)
		if f.Shorthand != "" {
			assert.Contains(t, stdout, "-"+f.Shorthand+",", "Help output should contain shorthand -%s", f.Shorthand)
		}
	}
	cmd.Flags().VisitAll(check)
	cmd.PersistentFlags().VisitAll(check)
}

func TestRootCmdVersion(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	version, commit, date = "test-1.2.3", "testcommit123", "2024-01-01T10:00:00Z"
	defer func() {
		version, commit, date = originalVersion, originalCommit, originalDate
	}()

	stdout, stderr, err := executeCommand(newRootCmd(), "--version")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, fmt.Sprintf("ees-analytics version %s (commit: %s, built: %s)\n", version, commit, date), stdout)
}

func TestRootCmdFlagParsingErrors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{"Unknown flag", []string{"--unknown-flag"}, "unknown flag: --unknown-flag"},
		{"Invalid int", []string{"--batch-size", "abc"}, `invalid argument "abc" for "--batch-size" flag`},
		{"Invalid duration", []string{"--interval", "soon"}, `invalid argument "soon" for "--interval" flag`},
		{"Positional args", []string{"extra"}, `unknown command "extra"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, err := executeCommand(newRootCmd(), tc.args...)
			require.Error(t, err)
			assert.Contains(t, stderr, tc.errorMsg)
		})
	}
}

func TestRootCmd_ValidationErrorIsReported(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, stderr, err := executeCommand(newRootCmd(), "--data-root", t.TempDir(), "--actor", "nope", "--no-tui")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown actor 'nope'")
}

func TestRootCmd_RunsOnceWithJSONOutput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()

	stdout, _, err := executeCommand(newRootCmd(),
		"--data-root", root,
		"--no-tui",
		"--output-format", "json",
		"--metrics-textfile", filepath.Join(t.TempDir(), "ees.prom"),
	)
	require.NoError(t, err)

	var results []struct {
		Actor   string `json:"actor"`
		Skipped bool   `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Skipped, "actor %s has no source directory", r.Actor)
	}
}
