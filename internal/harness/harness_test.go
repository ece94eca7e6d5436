package harness

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/pkg/reflectcheck"
)

// TestAll runs all integration tests.
func TestAll(t *testing.T) {
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "get current file path")

	harnessDir := filepath.Dir(filename)
	testdataDir := filepath.Join(harnessDir, "..", "..", "testdata")

	testCases := discoverTestCases(t, testdataDir)
	require.NotEmpty(t, testCases, "no test cases found")

	if testing.Verbose() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			if tc.Description != "" {
				t.Log(tc.Description)
			}

			result := NewHarness().Run(t, tc)
			if result.Skipped {
				t.Skipf("Test skipped: %s", result.Message)
				return
			}

			if !result.Success {
				t.Errorf("Test failed: %s", result.Message)
			}
		})
	}
}

func discoverTestCases(t *testing.T, root string) []*TestCase {
	t.Helper()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	var testCases []*TestCase
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txtar" {
			continue
		}

		// Skip realworld tests when running in short mode.
		if strings.HasPrefix(entry.Name(), "realworld-") && testing.Short() {
			continue
		}

		testCases = append(testCases, LoadTestCase(t, filepath.Join(root, entry.Name())))
	}

	return testCases
}

func TestParseMarkers(t *testing.T) {
	src := []byte(`class P
{
  void Run ()
  {
    Activator.CreateInstance(typeof(Test), "x"); // want RC0001 "Test"
    Make(); // want RC0001 RC0900
    // not a marker: want
  }
}
`)
	markers, err := parseMarkers("P.cs", src)
	require.NoError(t, err)
	assert.Equal(t, []ExpectedFinding{
		{Rule: "RC0001", File: "P.cs", Line: 5, Message: "Test"},
		{Rule: "RC0001", File: "P.cs", Line: 6},
		{Rule: "RC0900", File: "P.cs", Line: 6},
	}, markers)

	_, err = parseMarkers("Bad.cs", []byte("Call(); // want something\n"))
	require.ErrorContains(t, err, "Bad.cs:1")
}

func TestLoadTestCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txtar")
	require.NoError(t, os.WriteFile(path, []byte(`Two configurations over one file.
-- expected.yaml --
configurations:
  - name: default
  - name: quiet
    internal_errors: false
    exclude: ["gen/**"]
    skip_markers: true
-- src/P.cs --
class P { void Run () { X(); } } // want RC0001
`), 0o644))

	tc := LoadTestCase(t, path)
	assert.Equal(t, "sample", tc.Name)
	assert.Equal(t, "Two configurations over one file.", tc.Description)
	assert.Contains(t, tc.Files, "src/P.cs")
	assert.NotContains(t, tc.Files, expectedFile)
	require.Len(t, tc.Configurations, 2)

	quiet := tc.Configurations[1]
	assert.True(t, quiet.SkipMarkers)
	assert.Equal(t, []string{"gen/**"}, quiet.Exclude)
	require.NotNil(t, quiet.InternalErrors)
	assert.False(t, quiet.analyzerOptions().InternalErrors)
	assert.True(t, tc.Configurations[0].analyzerOptions().InternalErrors)
	assert.Equal(t, []ExpectedFinding{{Rule: "RC0001", File: "src/P.cs", Line: 1}}, tc.Markers)

	dir := WriteFixture(t, tc)
	data, err := os.ReadFile(filepath.Join(dir, "src", "P.cs"))
	require.NoError(t, err)
	assert.Equal(t, tc.Files["src/P.cs"], data)
}

func TestValidateResults(t *testing.T) {
	actual := []reflectcheck.Finding{
		{Rule: "RC0001", Message: "no member of 'Test' matches the supplied arguments", Suggestion: "M", Position: reflectcheck.Position{File: "a.cs", Line: 3}},
		{Rule: "RC0001", Position: reflectcheck.Position{File: "a.cs", Line: 9}},
	}
	expected := []ExpectedFinding{
		{Rule: "RC0001", File: "a.cs", Line: 3, Message: "'Test'", Suggestion: "M"},
		{Rule: "RC0001", File: "b.cs", Line: 1},
	}

	var res ConfigurationResult
	validateResults(&res, expected, actual)
	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Should have been reported: b.cs:1 RC0001",
		"Should not have been reported: a.cs:9 RC0001: ",
	}, res.Details)

	res = ConfigurationResult{}
	validateResults(&res, expected[:1], actual[:1])
	assert.True(t, res.Success, res.Details)
}
