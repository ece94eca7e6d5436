package harness

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"
)

// expectedFile is the archive member holding the configurations.
const expectedFile = "expected.yaml"

var (
	wantRe  = regexp.MustCompile(`//\s*want\s+(.*)$`)
	entryRe = regexp.MustCompile(`(RC\d{4})(?:\s+"([^"]*)")?`)
)

// LoadTestCase loads a test case from a txtar archive. Source files become
// fixture files, expected.yaml provides the configurations and every
// "// want RC0001 "message"" comment announces a finding on its line.
func LoadTestCase(t *testing.T, path string) *TestCase {
	t.Helper()

	ar, err := txtar.ParseFile(path)
	require.NoError(t, err)

	tc := &TestCase{
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Description: strings.TrimSpace(string(ar.Comment)),
		Files:       make(map[string][]byte),
	}
	for _, f := range ar.Files {
		if f.Name == expectedFile {
			require.NoError(t, yaml.Unmarshal(f.Data, tc), "%s: %s", path, expectedFile)
			continue
		}
		tc.Files[f.Name] = f.Data
		markers, err := parseMarkers(f.Name, f.Data)
		require.NoError(t, err, path)
		tc.Markers = append(tc.Markers, markers...)
	}

	if len(tc.Configurations) == 0 {
		tc.Configurations = []Configuration{{Name: "default"}}
	}
	return tc
}

// parseMarkers collects the // want comments of one fixture file.
func parseMarkers(name string, data []byte) ([]ExpectedFinding, error) {
	var markers []ExpectedFinding
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		m := wantRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		entries := entryRe.FindAllStringSubmatch(m[1], -1)
		if len(entries) == 0 {
			return nil, fmt.Errorf("%s:%d: malformed want comment %q", name, line, m[0])
		}
		for _, e := range entries {
			markers = append(markers, ExpectedFinding{
				Rule:    e[1],
				File:    name,
				Line:    line,
				Message: e[2],
			})
		}
	}
	return markers, sc.Err()
}

// WriteFixture writes the test case files into a fresh directory and
// returns it.
func WriteFixture(t *testing.T, tc *TestCase) string {
	t.Helper()

	dir := t.TempDir()
	for name, data := range tc.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

// CloneRepository clones the repository of a real-world test case and
// returns the directory to analyze.
func CloneRepository(t *testing.T, repoCfg *RepoConfig) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	cloneDir := filepath.Join(t.TempDir(), "repo")
	err := cloneRepository(repoCfg.URL, cloneDir, repoCfg.Ref)
	require.NoError(t, err)

	if repoCfg.Subdir != "" {
		return filepath.Join(cloneDir, repoCfg.Subdir)
	}
	return cloneDir
}

// cloneRepository clones a git repository to the specified directory and checks out the given ref
func cloneRepository(url, dir, ref string) error {
	// Use shallow clone with depth 1 to get only the latest commit.
	args := []string{"clone", "--depth", "1"}

	// If a specific ref is provided, fetch only that ref.
	if ref != "" {
		args = append(args, "--branch", ref)
	}

	// Add --single-branch to avoid fetching other branches.
	args = append(args, "--single-branch", url, dir)

	cmd := exec.Command("git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", cmd.String(), err, bytes.TrimSpace(out))
	}
	return nil
}
