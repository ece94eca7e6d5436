package harness

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/reflectcheck/pkg/reflectcheck"
)

// Configuration is one analyzer setup to run a test case with.
type Configuration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	Options `yaml:",inline"`

	// SkipMarkers ignores the // want markers of the fixture sources.
	SkipMarkers bool `yaml:"skip_markers,omitempty"`

	// ExpectedFindings lists findings in addition to the // want markers.
	ExpectedFindings []ExpectedFinding `yaml:"expected_findings"`

	// ExpectedErrors lists any expected error messages for this configuration.
	ExpectedErrors []string `yaml:"expected_errors"`
}

// TestCase represents a single test scenario.
type TestCase struct {
	// Name is the archive name without extension.
	Name string `yaml:"-"`

	// Description is the archive comment.
	Description string `yaml:"-"`

	// Files maps slash-separated paths to fixture contents.
	Files map[string][]byte `yaml:"-"`

	// Markers are the findings announced by // want comments.
	Markers []ExpectedFinding `yaml:"-"`

	// Repository contains optional git repository configuration for external testing.
	Repository *RepoConfig `yaml:"repository,omitempty"`

	// Configurations defines the analyzer setups to test.
	Configurations []Configuration `yaml:"configurations"`
}

// ExpectedFinding represents a finding the analyzer must report.
type ExpectedFinding struct {
	// Rule is the rule ID, e.g. RC0001.
	Rule string `yaml:"rule"`

	// File is the path relative to the fixture root.
	File string `yaml:"file"`

	// Line is the 1-based line of the reported call.
	Line int `yaml:"line"`

	// Message, when set, must be contained in the finding message.
	Message string `yaml:"message,omitempty"`

	// Suggestion, when set, must equal the finding suggestion.
	Suggestion string `yaml:"suggestion,omitempty"`
}

func (e ExpectedFinding) key() string {
	return fmt.Sprintf("%s:%d %s", e.File, e.Line, e.Rule)
}

// RepoConfig represents configuration for testing external repositories.
type RepoConfig struct {
	// URL is the git repository URL.
	URL string `yaml:"url"`

	// Ref is the git reference (commit, branch, or tag) to checkout.
	Ref string `yaml:"ref"`

	// Subdir is an optional subdirectory within the repository to test.
	Subdir string `yaml:"subdir,omitempty"`
}

// TestHarness manages test execution.
type TestHarness struct{}

// NewHarness creates a new test harness.
func NewHarness() *TestHarness {
	return &TestHarness{}
}

// Run executes a test case with all its configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.Configurations, "test case has no configurations")

	var dir string
	if tc.Repository != nil {
		dir = CloneRepository(t, tc.Repository)
	} else {
		dir = WriteFixture(t, tc)
	}

	var results []ConfigurationResult
	var allSuccess = true

	// Run each configuration.
	for _, cfg := range tc.Configurations {
		cfgResult := h.runConfiguration(t, tc, dir, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	// Create overall result message.
	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.Configurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.Configurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration executes analysis for a single configuration.
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, dir string, cfg Configuration) *ConfigurationResult {
	t.Helper()

	result, err := analyze(t, dir, cfg.Options)
	if err != nil {
		// Check if this error was expected.
		for _, expectedErr := range cfg.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}

	expected := cfg.ExpectedFindings
	if !cfg.SkipMarkers {
		expected = append(slices.Clone(tc.Markers), expected...)
	}
	return validateConfigurationResults(cfg, dir, expected, result)
}

func analyze(t *testing.T, dir string, opts Options) (*reflectcheck.Result, error) {
	t.Helper()
	sources, err := reflectcheck.LoadSources(t.Context(), opts.loaderOptions(dir))
	if err != nil {
		return nil, err
	}
	analyzer, err := reflectcheck.NewAnalyzer(opts.analyzerOptions())
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(t.Context(), sources)
}

// validateConfigurationResults compares actual results with expected for a specific configuration.
func validateConfigurationResults(cfg Configuration, dir string, expected []ExpectedFinding, result *reflectcheck.Result) *ConfigurationResult {
	cfgResult := ConfigurationResult{
		Configuration: cfg,
		Result:        result,
	}

	// First validate the configuration has valid expected findings.
	if err := validateExpectedFindings(expected); err != nil {
		cfgResult.Success = false
		cfgResult.Message = fmt.Sprintf("Invalid expected.yaml: %v", err)
		cfgResult.Details = []string{err.Error()}
		return &cfgResult
	}

	var actual []reflectcheck.Finding
	for _, f := range result.Reported() {
		f.Position.File = relativeFile(dir, f.Position.File)
		actual = append(actual, f)
	}

	validateResults(&cfgResult, expected, actual)
	return &cfgResult
}

// ConfigurationResult represents the result of running a single configuration.
type ConfigurationResult struct {
	// Configuration is the configuration that was run.
	Configuration Configuration

	// Result is the raw result from the analyzer.
	Result *reflectcheck.Result

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Skipped indicates if the test was skipped.
	Skipped bool

	// Message provides a summary of the result.
	Message string
}

// validateExpectedFindings validates that expected findings have required fields.
func validateExpectedFindings(expected []ExpectedFinding) error {
	for i, exp := range expected {
		switch {
		case strings.TrimSpace(exp.Rule) == "":
			return fmt.Errorf("expected finding at index %d has empty or missing 'rule' field", i)
		case exp.File == "":
			return fmt.Errorf("expected finding at index %d has empty or missing 'file' field", i)
		case exp.Line <= 0:
			return fmt.Errorf("expected finding at index %d has no positive 'line'", i)
		}
	}
	return nil
}

func validateResults(cfgResult *ConfigurationResult, expected []ExpectedFinding, actual []reflectcheck.Finding) {
	expectedMap := make(map[string]ExpectedFinding)
	for _, e := range expected {
		expectedMap[e.key()] = e
	}

	actualMap := make(map[string]reflectcheck.Finding)
	for _, a := range actual {
		actualMap[findingKey(a)] = a
	}

	var details []string
	success := true

	// Check for missing expected findings.
	var missing []string
	for key := range expectedMap {
		if _, found := actualMap[key]; !found {
			missing = append(missing, key)
			success = false
		}
	}

	// Check for unexpected findings.
	var unexpected []string
	for key, act := range actualMap {
		if _, found := expectedMap[key]; !found {
			unexpected = append(unexpected, fmt.Sprintf("%s: %s", key, act.Message))
			success = false
		}
	}

	// Sort for consistent output.
	sort.Strings(missing)
	sort.Strings(unexpected)

	for _, m := range missing {
		details = append(details, "Should have been reported: "+m)
	}
	for _, u := range unexpected {
		details = append(details, "Should not have been reported: "+u)
	}

	for key, exp := range expectedMap {
		act, found := actualMap[key]
		if !found {
			continue
		}
		if exp.Message != "" && !strings.Contains(act.Message, exp.Message) {
			details = append(details, fmt.Sprintf("Message mismatch for %s: expected %q in %q", key, exp.Message, act.Message))
			success = false
		}
		if exp.Suggestion != "" && act.Suggestion != exp.Suggestion {
			details = append(details, fmt.Sprintf("Suggestion mismatch for %s: expected %q, got %q", key, exp.Suggestion, act.Suggestion))
			success = false
		}
	}

	var message string
	if success {
		message = fmt.Sprintf("All %d expected findings reported", len(expected))
	} else {
		message = fmt.Sprintf("Test failed: %d missing, %d unexpected", len(missing), len(unexpected))
	}

	cfgResult.Success = success
	cfgResult.Message = message
	cfgResult.Details = details
}

func findingKey(f reflectcheck.Finding) string {
	return fmt.Sprintf("%s:%d %s", f.Position.File, f.Position.Line, f.Rule)
}

// relativeFile returns the slash-separated path of file below dir.
func relativeFile(dir, file string) string {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return filepath.Base(file)
	}
	return filepath.ToSlash(rel)
}
