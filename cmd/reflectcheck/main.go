// Package main implements the CLI driver for the reflectcheck linter.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/reflectcheck/pkg/reflectcheck"
)

// Config holds all command-line configuration options for reflectcheck.
type Config struct {
	Paths          []string // files and directories to analyze
	Verbose        bool     // enables detailed output and statistics
	JSON           bool     // enables JSON output format
	ConfigFile     string   // explicit config file; otherwise looked up in the working directory
	Profile        bool     // enables CPU and memory profiling
	SkipGenerated  bool     // skip files with generated code markers
	Exclude        []string // doublestar patterns of files to skip
	NoInternalErrs bool     // hide RC0900 findings
	Watch          bool     // re-run on file changes
}

const (
	exitFindings = 1
	exitError    = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reflectcheck [paths...]",
		Short: "Verify reflection and other indirect calls in C# code",
		Long: `reflectcheck checks C# call sites that reach their target indirectly:
Activator.CreateInstance, PrivateInvoke, ObjectFactory.Create,
LifetimeService.NewObject, DomainObject.NewObject, new Mock<T>(...) and
Protected().Setup(...).

It reports calls for which the target type declares no member with a matching
name and parameter list (RC0001), and calls it failed to verify (RC0900).`,
		Example: `  reflectcheck                          # Analyze the current directory
  reflectcheck src/App tests/App.Tests  # Analyze specific directories
  reflectcheck --json . > report.json   # JSON output to file
  reflectcheck --exclude '**/Migrations/**' .
  reflectcheck --watch .                # Re-run whenever a .cs file changes`,
		Args:               cobra.ArbitraryArgs,
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf("reflectcheck version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file (default: .reflectcheck.yaml or .reflectcheck.toml in the working directory)")
	flags.BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	flags.BoolVar(&cfg.SkipGenerated, "skip-generated", true, "Skip generated files (*.g.cs, *.Designer.cs, <auto-generated> headers)")
	flags.StringSliceVar(&cfg.Exclude, "exclude", nil, "Doublestar patterns of files to skip")
	flags.BoolVar(&cfg.NoInternalErrs, "no-internal-errors", false, "Do not report call sites that could not be verified")
	flags.BoolVar(&cfg.Watch, "watch", false, "Watch the paths and re-run on changes")
	return rootCmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg.Paths = args
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"."}
	}

	run, err := newRun(cmd, &cfg)
	if err != nil {
		return errWithCode(err, exitError)
	}

	if cfg.Watch {
		return watch(cmd.Context(), run, cmd.OutOrStdout())
	}

	slog.Info("starting reflection call analysis", "paths", cfg.Paths)
	result, err := run.analyze(cmd.Context())
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := writeResults(cmd.OutOrStdout(), result, &cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if result.Stats.Findings > 0 {
		return errWithCode(nil, exitFindings)
	}
	return nil
}

// run is a configured analysis that can be repeated.
type run struct {
	analyzer *reflectcheck.Analyzer
	loader   reflectcheck.LoaderOptions
}

// newRun layers explicitly set flags over the config file.
func newRun(cmd *cobra.Command, cfg *Config) (*run, error) {
	path := cfg.ConfigFile
	if path == "" {
		var err error
		if path, err = reflectcheck.FindConfig("."); err != nil {
			return nil, err
		}
	}

	var file *reflectcheck.Config
	if path != "" {
		var err error
		if file, err = reflectcheck.LoadConfig(path); err != nil {
			return nil, err
		}
		slog.Info("loaded config", "file", path)
	}

	opts := file.Apply(reflectcheck.DefaultOptions())
	flags := cmd.Flags()
	if flags.Changed("skip-generated") || file == nil || file.SkipGenerated == nil {
		opts.SkipGenerated = cfg.SkipGenerated
	}
	if flags.Changed("no-internal-errors") {
		opts.InternalErrors = !cfg.NoInternalErrs
	}

	analyzer, err := reflectcheck.NewAnalyzer(opts)
	if err != nil {
		return nil, err
	}

	loader := reflectcheck.LoaderOptions{Paths: cfg.Paths, Exclude: cfg.Exclude}
	if file != nil {
		loader.Include = file.Include
		loader.Exclude = append(loader.Exclude, file.Exclude...)
	}
	return &run{analyzer: analyzer, loader: loader}, nil
}

func (r *run) analyze(ctx context.Context) (*reflectcheck.Result, error) {
	start := time.Now()
	sources, err := reflectcheck.LoadSources(ctx, r.loader)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	slog.Info("loaded sources", "num", len(sources))

	result, err := r.analyzer.Analyze(ctx, sources)
	if err != nil {
		return nil, err
	}
	result.Stats.Duration = time.Since(start)
	slog.Info("analysis completed", "dur", result.Stats.Duration)
	return result, nil
}

func writeResults(w io.Writer, result *reflectcheck.Result, cfg *Config) error {
	var output string
	var err error

	if cfg.JSON {
		output, err = formatJSONOutput(result)
	} else {
		output = formatTextOutput(result, cfg)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, output)
	return err
}

type jOutput struct {
	Findings  []reflectcheck.Finding `json:"findings"`
	Stats     reflectcheck.Stats     `json:"stats"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
}

func formatJSONOutput(result *reflectcheck.Result) (string, error) {
	findings := result.Findings
	if findings == nil {
		findings = []reflectcheck.Finding{}
	}
	data, err := json.MarshalIndent(jOutput{
		Findings:  findings,
		Stats:     result.Stats,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}

func formatTextOutput(result *reflectcheck.Result, cfg *Config) string {
	var output strings.Builder

	if cfg.Verbose {
		slog.Info("",
			"files", result.Stats.Files,
			"call_sites", result.Stats.CallSites,
			"indirections", result.Stats.Indirections,
			"unanalyzable", result.Stats.Unanalyzable,
			"findings", result.Stats.Findings,
			"suppressed", result.Stats.Suppressed,
			"analysis_duration", result.Stats.Duration.String())
	}

	reported := result.Reported()
	if len(reported) == 0 {
		slog.Info("no findings")
		return output.String()
	}

	for _, f := range reported {
		// Format: file:line:column RULE message
		fmt.Fprintf(&output, "%s %s %s", f.Position, f.Rule, f.Message)
		if f.Suggestion != "" {
			fmt.Fprintf(&output, " (did you mean %q?)", f.Suggestion)
		}
		if cfg.Verbose && f.Signature != "" {
			fmt.Fprintf(&output, "\n    requested %s via %s", f.Signature, f.Pattern)
		}
		output.WriteByte('\n')
	}

	return output.String()
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		cpuProfile = nil
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer func() {
		_ = cpuProfile.Close()
		cpuProfile = nil
	}()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error {
	return e.err
}
