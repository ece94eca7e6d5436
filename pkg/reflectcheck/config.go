package reflectcheck

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/715d/reflectcheck/internal/pattern"
)

// ConfigNames are the file names FindConfig looks for, in order.
var ConfigNames = []string{".reflectcheck.yaml", ".reflectcheck.yml", ".reflectcheck.toml"}

// Config is the contents of a .reflectcheck.yaml or .reflectcheck.toml file.
// Unset fields leave the corresponding option unchanged.
type Config struct {
	Include        []string                 `yaml:"include" toml:"include"`
	Exclude        []string                 `yaml:"exclude" toml:"exclude"`
	SkipGenerated  *bool                    `yaml:"skip_generated" toml:"skip_generated"`
	InternalErrors *bool                    `yaml:"internal_errors" toml:"internal_errors"`
	Patterns       map[string]PatternConfig `yaml:"patterns" toml:"patterns"`
}

// PatternConfig declares an additional indirect-call idiom for a callee
// key such as "MyCompany.Factory.Create<>".
type PatternConfig struct {
	Kind      string `yaml:"kind" toml:"kind"`
	Static    bool   `yaml:"static" toml:"static"`
	NonPublic bool   `yaml:"non_public" toml:"non_public"`
	Leading   int    `yaml:"leading" toml:"leading"`
}

// FindConfig returns the path of the first config file in dir, or "" when
// there is none.
func FindConfig(dir string) (string, error) {
	for _, name := range ConfigNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return path, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", nil
}

// LoadConfig reads and validates the config file at path. The format is
// chosen by extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a config document. ext selects the format: ".toml"
// for TOML, anything else for YAML.
func ParseConfig(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF.
		if err := dec.Decode(&cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if _, err := compilePatterns(cfg.Patterns); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply returns opts with the values set in cfg.
func (cfg *Config) Apply(opts AnalyzerOptions) AnalyzerOptions {
	if cfg == nil {
		return opts
	}
	if cfg.SkipGenerated != nil {
		opts.SkipGenerated = *cfg.SkipGenerated
	}
	if cfg.InternalErrors != nil {
		opts.InternalErrors = *cfg.InternalErrors
	}
	if len(cfg.Patterns) > 0 {
		if opts.Patterns == nil {
			opts.Patterns = make(map[string]PatternConfig, len(cfg.Patterns))
		}
		maps.Copy(opts.Patterns, cfg.Patterns)
	}
	return opts
}

func compilePatterns(in map[string]PatternConfig) (map[string]pattern.Pattern, error) {
	out := make(map[string]pattern.Pattern, len(in))
	for key, pc := range in {
		kind, err := pattern.ParseKind(pc.Kind)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", key, err)
		}
		if pc.Leading < 0 {
			return nil, fmt.Errorf("pattern %s: leading must not be negative", key)
		}
		out[key] = pattern.Pattern{Kind: kind, Static: pc.Static, NonPublic: pc.NonPublic, Leading: pc.Leading}
	}
	return out, nil
}
