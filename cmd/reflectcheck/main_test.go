package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/pkg/reflectcheck"
)

func sampleResult() *reflectcheck.Result {
	return &reflectcheck.Result{
		Findings: []reflectcheck.Finding{
			{
				Rule:       "RC0001",
				Message:    "no member of 'Test' matches the supplied arguments",
				Pattern:    "named-member-invocation",
				Signature:  "ConsoleApp1.Test.Mx(int)",
				Suggestion: "M",
				Position:   reflectcheck.Position{File: "Program.cs", Line: 3, Column: 5},
			},
			{
				Rule:       "RC0001",
				Message:    "no member of 'Test' matches the supplied arguments",
				Position:   reflectcheck.Position{File: "Program.cs", Line: 9, Column: 5},
				Suppressed: true,
			},
		},
		Stats: reflectcheck.Stats{Files: 2, Findings: 1, Suppressed: 1},
	}
}

func TestFormatTextOutput(t *testing.T) {
	out := formatTextOutput(sampleResult(), &Config{})
	assert.Equal(t, "Program.cs:3:5 RC0001 no member of 'Test' matches the supplied arguments (did you mean \"M\"?)\n", out)

	out = formatTextOutput(sampleResult(), &Config{Verbose: true})
	assert.Contains(t, out, "\n    requested ConsoleApp1.Test.Mx(int) via named-member-invocation\n")

	assert.Empty(t, formatTextOutput(&reflectcheck.Result{}, &Config{}))
}

func TestFormatJSONOutput(t *testing.T) {
	out, err := formatJSONOutput(sampleResult())
	require.NoError(t, err)

	var decoded jOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded.Findings, 2)
	assert.Equal(t, 1, decoded.Stats.Findings)
	assert.Equal(t, version, decoded.Version)
	_, err = time.Parse(time.RFC3339, decoded.Timestamp)
	assert.NoError(t, err)

	out, err = formatJSONOutput(&reflectcheck.Result{})
	require.NoError(t, err)
	assert.Contains(t, out, `"findings": []`)
}

func TestNewRunLayersFlagsOverConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".reflectcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skip_generated: false\nexclude: [\"gen/**\"]\n"), 0o644))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--exclude", "tmp/**"}))
	t.Cleanup(func() { cfg = Config{} })

	cfg.Paths = []string{dir}
	r, err := newRun(cmd, &cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp/**", "gen/**"}, r.loader.Exclude)
	assert.Equal(t, []string{dir}, r.loader.Paths)

	cfg.ConfigFile = filepath.Join(dir, "missing.yaml")
	_, err = newRun(cmd, &cfg)
	require.Error(t, err)
}

func TestCodedError(t *testing.T) {
	err := errWithCode(nil, exitFindings)
	assert.Empty(t, err.Error())

	var cErr *codedError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, exitFindings, cErr.code)
}

func TestDebouncerCoalesces(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	for range 5 {
		d.trigger()
	}
	select {
	case <-d.C():
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	select {
	case <-d.C():
		t.Fatal("debouncer fired twice for one burst")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIgnoredDir(t *testing.T) {
	for _, name := range []string{"bin", "obj", ".git", ".vs", "node_modules"} {
		assert.True(t, ignoredDir(name), name)
	}
	assert.False(t, ignoredDir("src"))
}
