// Package harness runs the analyzer end to end over txtar fixtures and real-world repositories.
package harness

import "github.com/715d/reflectcheck/pkg/reflectcheck"

// Options are the analyzer and loader settings a configuration overrides.
type Options struct {
	SkipGenerated  *bool                                 `yaml:"skip_generated,omitempty"`
	InternalErrors *bool                                 `yaml:"internal_errors,omitempty"`
	Include        []string                              `yaml:"include,omitempty"`
	Exclude        []string                              `yaml:"exclude,omitempty"`
	Patterns       map[string]reflectcheck.PatternConfig `yaml:"patterns,omitempty"`
}

// analyzerOptions layers o over the command-line defaults.
func (o Options) analyzerOptions() reflectcheck.AnalyzerOptions {
	opts := reflectcheck.DefaultOptions()
	if o.SkipGenerated != nil {
		opts.SkipGenerated = *o.SkipGenerated
	}
	if o.InternalErrors != nil {
		opts.InternalErrors = *o.InternalErrors
	}
	opts.Patterns = o.Patterns
	return opts
}

func (o Options) loaderOptions(dir string) reflectcheck.LoaderOptions {
	return reflectcheck.LoaderOptions{
		Paths:   []string{dir},
		Include: o.Include,
		Exclude: o.Exclude,
	}
}
