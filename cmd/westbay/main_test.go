package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/vikasvdk5/WestBay/internal/config"
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/logging"
	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/persistence"
	"github.com/vikasvdk5/WestBay/internal/registry"
	"github.com/vikasvdk5/WestBay/internal/roles"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// testEnv points every command at a private config, database and
// artifact directory.
type testEnv struct {
	dir       string
	db        string
	artifacts string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{
		dir:       dir,
		db:        filepath.Join(dir, "westbay.db"),
		artifacts: filepath.Join(dir, "artifacts"),
	}
}

// execute runs the CLI with args and returns its captured output.
func (e testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{
		"--config", filepath.Join(e.dir, "global.yaml"),
		"--project-config", filepath.Join(e.dir, "project.yaml"),
		"--db", e.db,
		"--artifacts", e.artifacts,
		"--log-level", "error",
	}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// seed creates a session directly in the database.
func (e testEnv) seed(t *testing.T, id string, complete bool) {
	t.Helper()
	ctx := context.Background()
	store, err := persistence.NewSQLiteStore(ctx, e.db)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()
	reg, err := registry.New(store, 4, nil)
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	if _, err := reg.Create(ctx, id, "EV battery market report", runstate.DefaultRequirements("EV battery market")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !complete {
		return
	}
	out, err := runstate.NewOutput(roles.Report{Markdown: "# EV Battery Market\n\nBody text.\n", WordCount: 5}, time.Now())
	if err != nil {
		t.Fatalf("NewOutput failed: %v", err)
	}
	out.Artifacts = []string{id + "/report.md"}
	_, err = reg.Update(ctx, id, runstate.Update{
		Status:         runstate.StatusCompleted,
		CompletedTasks: []string{orchestrator.TaskReportWriting},
		Outputs:        map[runstate.Role]runstate.Output{runstate.RoleWriter: out},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	if root.Use != "westbay" {
		t.Errorf("root Use mismatch: got %q, want %q", root.Use, "westbay")
	}
	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range []string{"serve", "run", "estimate", "plan", "status", "report", "sessions", "cleanup"} {
		if !have[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestEstimateJSON(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.execute(t, "estimate", "--json",
		"--topic", "EV battery market", "--pages", "20", "--sources", "10", "--complexity", "medium")
	if err != nil {
		t.Fatalf("estimate failed: %v\n%s", err, out)
	}

	var got struct {
		Requirements runstate.Requirements `json:"requirements"`
		Staffing     struct {
			TotalAgents int `json:"total_agents"`
			Collectors  int `json:"data_collectors"`
		} `json:"staffing"`
		Estimate struct {
			TotalCost float64 `json:"total_cost_usd"`
		} `json:"estimate"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if got.Requirements.PageCount != 20 || got.Requirements.SourceCount != 10 {
		t.Errorf("requirements mismatch: got %+v", got.Requirements)
	}
	if got.Staffing.TotalAgents != 7 {
		t.Errorf("TotalAgents mismatch: got %d, want 7", got.Staffing.TotalAgents)
	}
	if got.Staffing.Collectors != 4 {
		t.Errorf("Collectors mismatch: got %d, want 4", got.Staffing.Collectors)
	}
	if got.Estimate.TotalCost <= 0 {
		t.Errorf("TotalCost should be positive, got %f", got.Estimate.TotalCost)
	}
}

func TestEstimateRequiresTopic(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.execute(t, "estimate"); err == nil {
		t.Fatal("expected an error without a topic")
	}
}

func TestRequirementsFromFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "req.yaml")
	data := `user_request: Compare cloud GPU providers
requirements:
  topic: Cloud GPU pricing
  page_count: 30
  source_count: 6
  complexity: complex
  include_analysis: false
  urls:
    - https://example.com/gpu
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cmd := &cobra.Command{Use: "estimate"}
	var reqs requirementsFlags
	reqs.register(cmd)
	if err := cmd.ParseFlags([]string{"--file", path, "--pages", "40"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	req, request, err := reqs.resolve(cmd)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if request != "Compare cloud GPU providers" {
		t.Errorf("request mismatch: got %q", request)
	}
	if req.Topic != "Cloud GPU pricing" {
		t.Errorf("Topic mismatch: got %q", req.Topic)
	}
	if req.PageCount != 40 {
		t.Errorf("PageCount mismatch: got %d, want 40 (flag wins)", req.PageCount)
	}
	if req.SourceCount != 6 {
		t.Errorf("SourceCount mismatch: got %d, want 6", req.SourceCount)
	}
	if req.Complexity != runstate.ComplexityComplex {
		t.Errorf("Complexity mismatch: got %s", req.Complexity)
	}
	if req.IncludeAnalysis {
		t.Error("IncludeAnalysis should come from the file")
	}
	if len(req.URLs) != 1 {
		t.Errorf("URLs mismatch: got %v", req.URLs)
	}
}

func TestSessionCommands(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "sess-done", true)
	env.seed(t, "sess-new", false)

	out, err := env.execute(t, "sessions")
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	for _, id := range []string{"sess-done", "sess-new"} {
		if !strings.Contains(out, id) {
			t.Errorf("sessions output missing %s:\n%s", id, out)
		}
	}

	out, err = env.execute(t, "status", "sess-done")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "completed") || !strings.Contains(out, "sess-done/report.md") {
		t.Errorf("status output unexpected:\n%s", out)
	}

	out, err = env.execute(t, "report", "sess-done")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.HasPrefix(out, "# EV Battery Market") {
		t.Errorf("report output unexpected:\n%s", out)
	}

	if _, err := env.execute(t, "report", "sess-new"); err == nil {
		t.Error("expected an error for an unfinished report")
	}

	if _, err := env.execute(t, "sessions", "delete", "sess-new"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := env.execute(t, "status", "sess-new"); err == nil {
		t.Error("expected an error for a deleted session")
	}
}

func TestCleanupKeepsRecentSessions(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "sess-recent", false)
	if err := os.MkdirAll(filepath.Join(env.artifacts, "orphan"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	out, err := env.execute(t, "cleanup", "--days", "1")
	if err != nil {
		t.Fatalf("cleanup failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Removed orphan") {
		t.Errorf("orphaned artifacts not removed:\n%s", out)
	}
	if strings.Contains(out, "sess-recent") {
		t.Errorf("recent session removed:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(env.artifacts, "orphan")); !os.IsNotExist(err) {
		t.Errorf("orphan directory still present: %v", err)
	}
}

// TestAppCloseKillsSubprocesses verifies that closing the app terminates
// model subprocesses that are still tracked.
func TestAppCloseKillsSubprocesses(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = env.db
	cfg.Storage.ArtifactsDir = env.artifacts

	a, err := newApp(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	a.pm.Track(cmd)

	if err := a.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after Close()")
	}
	a.pm.Untrack(cmd)
}

func TestDeciderWithoutPrompt(t *testing.T) {
	est := cost.Estimate{TotalCost: 12, Currency: "USD", Budget: cost.Assessment{Status: cost.BudgetRed}}
	tests := []struct {
		name string
		opts runOptions
		want bool
	}{
		{"yes approves", runOptions{yes: true}, true},
		{"yes wins in watch mode", runOptions{yes: true, watch: true}, true},
		{"watch rejects", runOptions{watch: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			decide := tt.opts.decider(strings.NewReader(""), &out)
			got, err := decide(context.Background(), "sess-1", est)
			if err != nil {
				t.Fatalf("decide failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("approval mismatch: got %v, want %v", got, tt.want)
			}
			if out.Len() != 0 {
				t.Errorf("expected no prompt, got %q", out.String())
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(strings.NewReader("y\n")) {
		t.Error("a string reader is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Error("a regular file is not a terminal")
	}
}
