package scoring

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/orgaudit/orgaudit/pkg/report"
)

// Signal kinds.
const (
	KindVersion     = "version"
	KindBranchCount = "branch_count"
	KindSeverity    = "severity"
	KindRaw         = "raw"
	KindRelative    = "relative"
)

// ErrUnknownSignalKind is returned by Build for an unrecognized kind.
var ErrUnknownSignalKind = errors.New("unknown signal kind")

// SignalConfig is the resolved definition of one signal.
type SignalConfig struct {
	Key    string
	Kind   string
	Weight int

	// Table grades the signal. Version signals may leave it empty and set
	// LTS instead. Relative signals do not use it.
	Table ThresholdTable
	LTS   string

	// Ecosystem names the version observations (version kind).
	Ecosystem string
	// Query selects branches (branch_count kind).
	Query report.Matcher
	// Prefix names the raw alert counts (severity kind).
	Prefix string
	// Raw names the raw value (raw kind).
	Raw string
	// Dependency names the dependency kind (relative kind).
	Dependency string
}

// BuildOptions carry settings shared across signals.
type BuildOptions struct {
	// UniformMajorGrade is passed to relative graders.
	UniformMajorGrade Grade
	Log               logrus.FieldLogger
}

// Build turns a SignalConfig into a Signal.
func Build(cfg SignalConfig, opts BuildOptions) (Signal, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("signal has no key")
	}
	if cfg.Weight < 0 || cfg.Weight > MaxWeight {
		return nil, fmt.Errorf("signal %s: weight %d out of range 0..%d", cfg.Key, cfg.Weight, MaxWeight)
	}

	switch cfg.Kind {
	case KindVersion:
		table := cfg.Table
		if len(table.Cutoffs) == 0 {
			t, err := VersionTableFromLTS(cfg.LTS)
			if err != nil {
				return nil, fmt.Errorf("signal %s: %w", cfg.Key, err)
			}
			table = t
		}
		if err := checkTable(cfg.Key, table, VersionTable); err != nil {
			return nil, err
		}
		if cfg.Ecosystem == "" {
			return nil, fmt.Errorf("signal %s: ecosystem is required", cfg.Key)
		}
		return NewVersionSignal(cfg.Key, cfg.Weight, cfg.Ecosystem, table), nil

	case KindBranchCount:
		if err := checkTable(cfg.Key, cfg.Table, CountTable); err != nil {
			return nil, err
		}
		return NewBranchCountSignal(cfg.Key, cfg.Weight, cfg.Query, cfg.Table), nil

	case KindSeverity:
		if err := checkTable(cfg.Key, cfg.Table, CountTable); err != nil {
			return nil, err
		}
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = cfg.Key
		}
		return NewSeveritySignal(cfg.Key, cfg.Weight, prefix, cfg.Table), nil

	case KindRaw:
		if err := checkTable(cfg.Key, cfg.Table, ""); err != nil {
			return nil, err
		}
		name := cfg.Raw
		if name == "" {
			name = cfg.Key
		}
		return NewRawSignal(cfg.Key, cfg.Weight, name, cfg.Table), nil

	case KindRelative:
		if cfg.Dependency == "" {
			return nil, fmt.Errorf("signal %s: dependency kind is required", cfg.Key)
		}
		return NewRelativeSignal(cfg.Key, cfg.Weight, cfg.Dependency, &RelativeGrader{
			UniformMajorGrade: opts.UniformMajorGrade,
			Log:               opts.Log,
		}), nil
	}
	return nil, fmt.Errorf("signal %s: %w %q", cfg.Key, ErrUnknownSignalKind, cfg.Kind)
}

// BuildAll builds every config, failing on the first error or on a
// repeated key.
func BuildAll(cfgs []SignalConfig, opts BuildOptions) ([]Signal, error) {
	seen := make(map[string]bool, len(cfgs))
	signals := make([]Signal, 0, len(cfgs))
	for _, c := range cfgs {
		if seen[c.Key] {
			return nil, fmt.Errorf("signal %s defined twice", c.Key)
		}
		seen[c.Key] = true
		s, err := Build(c, opts)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, nil
}

func checkTable(key string, t ThresholdTable, want TableKind) error {
	if want != "" && t.Kind != want {
		return fmt.Errorf("signal %s: needs a %s threshold table, got %q", key, want, t.Kind)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("signal %s: %w", key, err)
	}
	return nil
}
