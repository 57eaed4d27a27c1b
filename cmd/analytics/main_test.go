package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/config"
	"github.com/danielpatrickdp/decision-lab/go-analytics/internal/records"
)

// #region helpers
var pilotFixture = filepath.Join("..", "..", "internal", "fixture", "testdata", "pilot.json")

// runCLI executes the root command against a temp database.
func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{
		"--db", db,
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
	}
	cmd.SetArgs(append(append([]string{}, args...), base...))
	err := cmd.Execute()
	return out.String(), err
}

// #endregion helpers

// #region cli-tests
func TestCLI_ImportScoreInspect(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := runCLI(t, db, "import", pilotFixture, "--check")
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "imported 3 participants") || !strings.Contains(out, "expected scores match") {
		t.Fatalf("unexpected import output:\n%s", out)
	}

	out, err = runCLI(t, db, "score")
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Changed:    0 rows") {
		t.Errorf("rescoring an unchanged store must change nothing:\n%s", out)
	}

	out, err = runCLI(t, db, "inspect", "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var scores []records.ComputedScore
	if err := json.Unmarshal([]byte(out), &scores); err != nil {
		t.Fatalf("inspect json: %v\n%s", err, out)
	}
	if len(scores) != 3 || scores[0].ParticipantID != "a" || *scores[0].VQEarly != 4.2 {
		t.Errorf("unexpected scores: %+v", scores)
	}

	out, err = runCLI(t, db, "inspect", "--participant", "b")
	if err != nil {
		t.Fatalf("inspect participant: %v", err)
	}
	if !strings.Contains(out, "vq_early         —") {
		t.Errorf("null score must render as a dash:\n%s", out)
	}

	out, err = runCLI(t, db, "inspect", "--runs", "5")
	if err != nil {
		t.Fatalf("inspect runs: %v", err)
	}
	if strings.Count(out, "recompute") != 2 || !strings.Contains(out, "import") {
		t.Errorf("expected import and two recompute runs:\n%s", out)
	}
}

func TestCLI_ReportAndExport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	if out, err := runCLI(t, db, "import", pilotFixture); err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}

	out, err := runCLI(t, db, "report", "--recompute")
	if err != nil {
		t.Fatalf("report: %v\n%s", err, out)
	}
	for _, want := range []string{"Report: n=3", "[H1a_vq_early]", "[H4] not_testable"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, db, "export", "--methods", "-", "--csv", "-")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "participant_id,condition,") || !strings.Contains(out, "Methods\n=======") {
		t.Errorf("unexpected export output:\n%s", out)
	}
}

func TestCLI_FixtureExportReimports(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.db")
	if out, err := runCLI(t, src, "import", pilotFixture, "--check"); err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	exported := filepath.Join(t.TempDir(), "baseline.json")
	if out, err := runCLI(t, src, "export", "--fixture", exported); err != nil {
		t.Fatalf("export fixture: %v\n%s", err, out)
	}

	dst := filepath.Join(t.TempDir(), "dst.db")
	out, err := runCLI(t, dst, "import", exported, "--check")
	if err != nil {
		t.Fatalf("reimport: %v\n%s", err, out)
	}
	if !strings.Contains(out, "all 15 expected scores match") {
		t.Errorf("unexpected reimport output:\n%s", out)
	}
}

func TestCLI_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	if _, err := runCLI(t, db, "inspect", "--participant", "ghost"); err == nil {
		t.Error("expected error for unknown participant")
	}
	if _, err := runCLI(t, db, "export"); err == nil {
		t.Error("expected error when no export target is given")
	}
	if _, err := runCLI(t, db, "import"); err == nil {
		t.Error("expected error when the fixture path is missing")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database = filepath.Join(t.TempDir(), "serve.db")
	cfg.RPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = ""
	a := &app{cfg: cfg, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

// #endregion cli-tests
