package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orgaudit/orgaudit/pkg/scoring"
	"github.com/orgaudit/orgaudit/pkg/surface"
)

const testInventory = `{
  "org": "acme",
  "repos": [
    {"name": "api", "branches": [{"name": "main", "default": true}],
     "versions": {"node": [{"file_path": ".nvmrc", "branch": "main", "version": "18.2.0"}]}},
    {"name": "web", "branches": [{"name": "main", "default": true}],
     "versions": {"node": [{"file_path": ".nvmrc", "branch": "main", "version": "22.1.0"}]}}
  ]
}`

func writeTestFiles(t *testing.T) (cfgPath, invPath, storeDir string) {
	t.Helper()
	t.Setenv("ORGAUDIT_DATABASE_URL", "")
	t.Setenv("ORGAUDIT_STORAGE_BUCKET", "")

	dir := t.TempDir()
	storeDir = filepath.Join(dir, "store")
	cfgPath = filepath.Join(dir, "config.yaml")
	cfg := `storage:
  backend: local
  path: ` + storeDir + `
logging:
  level: error
scoring:
  signals:
    - key: node_version
      kind: version
      weight: 3
      ecosystem: node
      lts: "22.0.0"
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	invPath = filepath.Join(dir, "inventory.json")
	if err := os.WriteFile(invPath, []byte(testInventory), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, invPath, storeDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCmdFlags(t *testing.T) {
	cmd := newScoreCmd(&app{})
	f := cmd.Flags()

	outputFmt, _ := f.GetString("output")
	if outputFmt != "text" {
		t.Errorf("default output = %q, want text", outputFmt)
	}
	inventory, _ := f.GetString("inventory")
	if inventory != "latest" {
		t.Errorf("default inventory = %q, want latest", inventory)
	}

	for _, flag := range []string{"org", "inventory", "file", "output", "repo", "limit", "no-history"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestRootPersistentFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, flag := range []string{"config", "log-level", "log-format"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag: %s", flag)
		}
	}
	for _, name := range []string{"score", "query", "inventory", "validate-config", "migrate"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("missing command: %s", name)
		}
	}
}

func TestScoreFromFile(t *testing.T) {
	cfgPath, invPath, storeDir := writeTestFiles(t)

	out, err := execute(t, "--config", cfgPath, "score", "--file", invPath, "--output", "json")
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}

	var repos []scoring.RepoResult
	if err := json.Unmarshal([]byte(out), &repos); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(repos))
	}
	if repos[0].Repo != "web" || repos[0].Composite.Grade != scoring.GradeA {
		t.Errorf("expected web graded A first, got %+v", repos[0])
	}
	if repos[1].Composite.Grade != scoring.GradeC {
		t.Errorf("api on node 18 should be C, got %s", repos[1].Composite.Grade)
	}

	matches, _ := filepath.Glob(filepath.Join(storeDir, "acme", "runs", "*", "composite.json"))
	if len(matches) != 1 {
		t.Errorf("expected one stored composite.json, got %v", matches)
	}
}

func TestInventoryPushThenScore(t *testing.T) {
	cfgPath, invPath, _ := writeTestFiles(t)

	out, err := execute(t, "--config", cfgPath, "inventory", "push", invPath)
	if err != nil {
		t.Fatalf("inventory push: %v\n%s", err, out)
	}
	if !strings.Contains(out, "acme/latest (2 repositories)") {
		t.Errorf("unexpected push output: %s", out)
	}

	out, err = execute(t, "--config", cfgPath, "score", "--org", "acme", "--output", "markdown")
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}
	if !strings.Contains(out, "## orgaudit: 2 repositories") {
		t.Errorf("unexpected markdown: %s", out)
	}
}

func TestScoreErrors(t *testing.T) {
	cfgPath, invPath, _ := writeTestFiles(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no org", []string{"score"}},
		{"bad output", []string{"score", "--file", invPath, "--output", "xml"}},
		{"wrong org", []string{"score", "--file", invPath, "--org", "other"}},
		{"missing inventory", []string{"score", "--org", "nobody"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateConfigCmd(t *testing.T) {
	cfgPath, _, _ := writeTestFiles(t)

	out, err := execute(t, "--config", cfgPath, "validate-config")
	if err != nil {
		t.Fatalf("validate-config: %v\n%s", err, out)
	}
	if !strings.Contains(out, "node_version") || !strings.Contains(out, "Config OK") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestQueryAndMigrateNeedDatabase(t *testing.T) {
	cfgPath, _, _ := writeTestFiles(t)

	if _, err := execute(t, "--config", cfgPath, "query", "--org", "acme"); err == nil {
		t.Error("query without database should fail")
	}
	if _, err := execute(t, "--config", cfgPath, "migrate"); err == nil {
		t.Error("migrate without database should fail")
	}
}

func TestRenderer(t *testing.T) {
	tests := []struct {
		format string
		want   any
	}{
		{"text", &surface.TerminalRenderer{}},
		{"", &surface.TerminalRenderer{}},
		{"json", &surface.JSONRenderer{}},
		{"markdown", &surface.MarkdownRenderer{}},
	}
	for _, tt := range tests {
		r, err := renderer(tt.format, "", 0)
		if err != nil {
			t.Errorf("renderer(%q): %v", tt.format, err)
			continue
		}
		if gotType, wantType := fmt.Sprintf("%T", r), fmt.Sprintf("%T", tt.want); gotType != wantType {
			t.Errorf("renderer(%q) = %s, want %s", tt.format, gotType, wantType)
		}
	}
	if _, err := renderer("xml", "", 0); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
	}

	for _, tt := range tests {
		got := firstNonEmpty(tt.args...)
		if got != tt.want {
			t.Errorf("firstNonEmpty(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
