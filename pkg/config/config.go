// Package config handles loading and managing orgaudit configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orgaudit/orgaudit/pkg/report"
	"github.com/orgaudit/orgaudit/pkg/scoring"
)

// Config is the top-level configuration for orgaudit.
type Config struct {
	Scoring ScoringConfig `yaml:"scoring"`
	// Exceptions maps report table name to rules. Each rule maps field
	// names to regular expressions.
	Exceptions map[string][]map[string]string `yaml:"exceptions"`
	Storage    StorageConfig                  `yaml:"storage"`
	Database   DatabaseConfig                 `yaml:"database"`
	Logging    LoggingConfig                  `yaml:"logging"`
}

// ScoringConfig controls scoring behavior.
type ScoringConfig struct {
	FilterExceptions bool           `yaml:"filter_exceptions"`
	Relative         RelativeConfig `yaml:"relative"`
	// StaleAfterDays marks non-default branches stale when their last commit
	// is older than this many days. Zero keeps the collector's flags.
	StaleAfterDays int `yaml:"stale_after_days"`
	// Signals replaces the default signal set when non-empty.
	Signals []SignalConfig `yaml:"signals"`
}

// RelativeConfig controls relative dependency grading.
type RelativeConfig struct {
	// UniformMajorGrade is the grade for usages of a dependency whose
	// consumers all share one major version. Empty keeps F.
	UniformMajorGrade string `yaml:"uniform_major_grade"`
}

// SignalConfig declares one signal.
type SignalConfig struct {
	Key        string            `yaml:"key"`
	Kind       string            `yaml:"kind"`
	Weight     int               `yaml:"weight"`
	Ecosystem  string            `yaml:"ecosystem,omitempty"`
	LTS        string            `yaml:"lts,omitempty"`
	Query      map[string]string `yaml:"query,omitempty"`
	Prefix     string            `yaml:"prefix,omitempty"`
	Raw        string            `yaml:"raw,omitempty"`
	Dependency string            `yaml:"dependency,omitempty"`
	// Table is "count" or "version". Version signals always use "version";
	// other kinds default to "count".
	Table      string            `yaml:"table,omitempty"`
	Thresholds []ThresholdConfig `yaml:"thresholds,omitempty"`
}

// ThresholdConfig is one cutoff. Value is a number, "MAX", or a version.
type ThresholdConfig struct {
	Value string `yaml:"value"`
	Grade string `yaml:"grade"`
}

// StorageConfig selects where inventories are read and reports written.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // local, s3 or gcs
	Path     string `yaml:"path"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// DatabaseConfig configures run history.
type DatabaseConfig struct {
	URL         string `yaml:"url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			FilterExceptions: true,
		},
		Exceptions: map[string][]map[string]string{},
		Storage: StorageConfig{
			Backend: "local",
			Path:    CacheDir(),
		},
		Database: DatabaseConfig{
			AutoMigrate: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
// Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ORGAUDIT_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("ORGAUDIT_STORAGE_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
}

// FindConfigFile looks for .orgaudit/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".orgaudit", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the default local storage root, ~/.cache/orgaudit.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "orgaudit")
}

// Compiled is configuration resolved into engine inputs.
type Compiled struct {
	Signals           []scoring.SignalConfig
	Exceptions        map[string][]report.ExceptionRule
	FilterExceptions  bool
	UniformMajorGrade scoring.Grade
	StaleAfter        time.Duration
}

// Compile resolves signals, threshold tables and exception patterns.
func (c *Config) Compile() (*Compiled, error) {
	out := &Compiled{
		FilterExceptions: c.Scoring.FilterExceptions,
		Exceptions:       make(map[string][]report.ExceptionRule, len(c.Exceptions)),
	}

	if c.Scoring.StaleAfterDays < 0 {
		return nil, fmt.Errorf("scoring.stale_after_days: must not be negative")
	}
	out.StaleAfter = time.Duration(c.Scoring.StaleAfterDays) * 24 * time.Hour

	if g := c.Scoring.Relative.UniformMajorGrade; g != "" {
		grade, ok := scoring.ParseGrade(g)
		if !ok || grade == scoring.GradeNotApplicable {
			return nil, fmt.Errorf("scoring.relative.uniform_major_grade: invalid grade %q", g)
		}
		out.UniformMajorGrade = grade
	}

	if len(c.Scoring.Signals) == 0 {
		out.Signals = scoring.DefaultSignals()
	}
	for _, s := range c.Scoring.Signals {
		sc, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", s.Key, err)
		}
		out.Signals = append(out.Signals, sc)
	}

	for table, rules := range c.Exceptions {
		for i, r := range rules {
			if len(r) == 0 {
				return nil, fmt.Errorf("exceptions.%s[%d]: rule has no fields", table, i)
			}
			m, err := report.Compile(r)
			if err != nil {
				return nil, fmt.Errorf("exceptions.%s[%d]: %w", table, i, err)
			}
			out.Exceptions[table] = append(out.Exceptions[table], m)
		}
	}
	return out, nil
}

// Validate checks the whole configuration, including that every signal
// builds.
func (c *Config) Validate() error {
	compiled, err := c.Compile()
	if err != nil {
		return err
	}
	if _, err := scoring.BuildAll(compiled.Signals, scoring.BuildOptions{UniformMajorGrade: compiled.UniformMajorGrade}); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "", "local":
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for backend %s", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

func (s SignalConfig) compile() (scoring.SignalConfig, error) {
	out := scoring.SignalConfig{
		Key:        s.Key,
		Kind:       s.Kind,
		Weight:     s.Weight,
		LTS:        s.LTS,
		Ecosystem:  s.Ecosystem,
		Prefix:     s.Prefix,
		Raw:        s.Raw,
		Dependency: s.Dependency,
	}

	if len(s.Query) > 0 {
		q, err := report.Compile(s.Query)
		if err != nil {
			return out, fmt.Errorf("query: %w", err)
		}
		out.Query = q
	}

	kind := scoring.TableKind(s.Table)
	if s.Kind == scoring.KindVersion {
		kind = scoring.VersionTable
	} else if kind == "" {
		kind = scoring.CountTable
	}

	if len(s.Thresholds) == 0 {
		out.Table = defaultTable(s.Kind)
		return out, nil
	}
	table := scoring.ThresholdTable{Kind: kind}
	for i, th := range s.Thresholds {
		grade, ok := scoring.ParseGrade(th.Grade)
		if !ok {
			return out, fmt.Errorf("thresholds[%d]: invalid grade %q", i, th.Grade)
		}
		switch kind {
		case scoring.CountTable:
			n, err := parseCount(th.Value)
			if err != nil {
				return out, fmt.Errorf("thresholds[%d]: %w", i, err)
			}
			table.Cutoffs = append(table.Cutoffs, scoring.Below(n, grade))
		case scoring.VersionTable:
			table.Cutoffs = append(table.Cutoffs, scoring.AtLeast(th.Value, grade))
		default:
			return out, fmt.Errorf("unknown table kind %q", kind)
		}
	}
	out.Table = table
	return out, nil
}

func parseCount(v string) (float64, error) {
	if strings.EqualFold(strings.TrimSpace(v), "MAX") {
		return scoring.Max, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count threshold %q", v)
	}
	return n, nil
}

func defaultTable(kind string) scoring.ThresholdTable {
	switch kind {
	case scoring.KindBranchCount:
		return scoring.CountGrades()
	case scoring.KindSeverity:
		return scoring.SeverityGrades()
	case scoring.KindRaw:
		return scoring.PresenceGrades()
	}
	return scoring.ThresholdTable{}
}
