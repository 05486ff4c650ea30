package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orgaudit/orgaudit/pkg/report"
	"github.com/orgaudit/orgaudit/pkg/scoring"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.Backend != "local" {
		t.Errorf("expected default backend local, got %q", cfg.Storage.Backend)
	}
	if !cfg.Scoring.FilterExceptions {
		t.Error("expected exception filtering on by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		missing bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "non-existent file returns defaults",
			missing: true,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage.Backend != "local" {
					t.Errorf("expected default backend, got %q", cfg.Storage.Backend)
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
scoring:
  filter_exceptions: false
  relative:
    uniform_major_grade: A
  signals:
    - key: stale_branches
      kind: branch_count
      weight: 4
      query:
        stale: "^true$"
      thresholds:
        - {value: "2", grade: A}
        - {value: "MAX", grade: F}
exceptions:
  branches:
    - branchName: "^dependabot.*"
storage:
  backend: s3
  bucket: audit-reports
  region: us-east-1
logging:
  level: debug
  format: json
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scoring.FilterExceptions {
					t.Error("expected filter_exceptions false")
				}
				if len(cfg.Scoring.Signals) != 1 || cfg.Scoring.Signals[0].Weight != 4 {
					t.Errorf("unexpected signals: %+v", cfg.Scoring.Signals)
				}
				if cfg.Storage.Bucket != "audit-reports" {
					t.Errorf("expected bucket audit-reports, got %q", cfg.Storage.Bucket)
				}
				if cfg.Logging.Format != "json" {
					t.Errorf("expected json format, got %q", cfg.Logging.Format)
				}
				if got := cfg.Exceptions["branches"][0]["branchName"]; got != "^dependabot.*" {
					t.Errorf("unexpected exception pattern %q", got)
				}
			},
		},
		{
			name:    "invalid YAML returns error",
			yaml:    "{{invalid yaml",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if !tc.missing {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("write test config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORGAUDIT_DATABASE_URL", "postgres://localhost/orgaudit")
	t.Setenv("ORGAUDIT_STORAGE_BUCKET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/orgaudit" {
		t.Errorf("database url not overridden: %q", cfg.Database.URL)
	}
	if cfg.Storage.Bucket != "from-env" {
		t.Errorf("bucket not overridden: %q", cfg.Storage.Bucket)
	}
}

func TestCompile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Relative.UniformMajorGrade = "A"
	cfg.Exceptions["node_version"] = []map[string]string{{"repoName": "^sandbox-"}}
	cfg.Scoring.Signals = []SignalConfig{
		{
			Key: "python_version", Kind: scoring.KindVersion, Weight: 3, Ecosystem: "python",
			Thresholds: []ThresholdConfig{{"3.12.0", "A"}, {"3.10.0", "C"}, {"0.0.0", "F"}},
		},
		{Key: "alerts", Kind: scoring.KindSeverity, Weight: 5},
		{Key: "npm", Kind: scoring.KindRelative, Weight: 2, Dependency: "npm"},
	}

	compiled, err := cfg.Compile()
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if compiled.UniformMajorGrade != scoring.GradeA {
		t.Errorf("expected uniform grade A, got %q", compiled.UniformMajorGrade)
	}
	if len(compiled.Signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(compiled.Signals))
	}
	py := compiled.Signals[0]
	if py.Table.Kind != scoring.VersionTable || len(py.Table.Cutoffs) != 3 {
		t.Errorf("unexpected python table: %+v", py.Table)
	}
	if got := py.Table.Grade("3.11.2", 3).Grade; got != scoring.GradeC {
		t.Errorf("3.11.2 graded %s, want C", got)
	}
	if compiled.Signals[1].Table.Cutoffs[0].Count != 3 {
		t.Errorf("severity signal should default to the severity table")
	}

	rules := compiled.Exceptions["node_version"]
	if len(rules) != 1 || !rules[0].Match(report.Row{"repoName": "sandbox-1"}) {
		t.Errorf("exception rule not compiled: %v", rules)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestCompileDefaultsSignals(t *testing.T) {
	compiled, err := DefaultConfig().Compile()
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if len(compiled.Signals) != len(scoring.DefaultSignals()) {
		t.Errorf("expected default signals, got %d", len(compiled.Signals))
	}
}

func TestCompileStaleAfter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.StaleAfterDays = 90
	compiled, err := cfg.Compile()
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if compiled.StaleAfter != 90*24*time.Hour {
		t.Errorf("StaleAfter = %v, want 2160h", compiled.StaleAfter)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad grade", func(c *Config) {
			c.Scoring.Signals = []SignalConfig{{Key: "x", Kind: scoring.KindRaw, Weight: 1, Thresholds: []ThresholdConfig{{"1", "E"}}}}
		}},
		{"bad count", func(c *Config) {
			c.Scoring.Signals = []SignalConfig{{Key: "x", Kind: scoring.KindRaw, Weight: 1, Thresholds: []ThresholdConfig{{"lots", "A"}}}}
		}},
		{"unknown kind", func(c *Config) {
			c.Scoring.Signals = []SignalConfig{{Key: "x", Kind: "ratio", Weight: 1}}
		}},
		{"weight too high", func(c *Config) {
			c.Scoring.Signals = []SignalConfig{{Key: "x", Kind: scoring.KindRelative, Weight: 6, Dependency: "npm"}}
		}},
		{"bad exception regex", func(c *Config) {
			c.Exceptions["branches"] = []map[string]string{{"branchName": "("}}
		}},
		{"empty exception rule", func(c *Config) {
			c.Exceptions["branches"] = []map[string]string{{}}
		}},
		{"bad uniform grade", func(c *Config) {
			c.Scoring.Relative.UniformMajorGrade = "NotApplicable"
		}},
		{"negative stale age", func(c *Config) {
			c.Scoring.StaleAfterDays = -1
		}},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Backend = "s3"
		}},
		{"unknown backend", func(c *Config) {
			c.Storage.Backend = "ftp"
		}},
		{"unknown log format", func(c *Config) {
			c.Logging.Format = "xml"
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateUnknownKindIsTyped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Signals = []SignalConfig{{Key: "x", Kind: "ratio", Weight: 1}}
	if err := cfg.Validate(); !errors.Is(err, scoring.ErrUnknownSignalKind) {
		t.Errorf("expected ErrUnknownSignalKind, got %v", err)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Run("found in parent directory", func(t *testing.T) {
		root := t.TempDir()
		configDir := filepath.Join(root, ".orgaudit")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
		configPath := filepath.Join(configDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		sub := filepath.Join(root, "a", "b")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("create sub: %v", err)
		}

		if got := FindConfigFile(sub); got != configPath {
			t.Errorf("FindConfigFile = %q, want %q", got, configPath)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if got := FindConfigFile(t.TempDir()); got != "" {
			t.Errorf("FindConfigFile = %q, want empty", got)
		}
	})
}
