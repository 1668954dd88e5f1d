package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDataset(t *testing.T, rows int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("1st_quarter,2nd_quarter,3rd_quarter,4th_quarter,final_grade,")
	sb.WriteString("section_BANABA,section_CABALLERO,section_GEMELINA,gender_FEMALE,gender_MALE,remarks_FAILED,remarks_PASSED\n")
	for i := 0; i < rows; i++ {
		q1 := 0.7 + 0.005*float64(i%40)
		sec := [3]int{}
		sec[i%3] = 1
		fmt.Fprintf(&sb, "%.4f,%.4f,%.4f,%.4f,%.6f,%d,%d,%d,%d,%d,0,1\n",
			q1, q1+0.01, q1+0.02, q1+0.03, q1+0.015,
			sec[0], sec[1], sec[2], i%2, 1-i%2)
	}

	path := filepath.Join(t.TempDir(), "grades.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFitInspectList(t *testing.T) {
	data := writeDataset(t, 50)
	dir := t.TempDir()

	out, err := run(t, "fit", "--dir", dir, "--data", data, "--name", "term1", "--model", "linear", "--log-level", "error")
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if !strings.Contains(out, `Bundle "term1"`) {
		t.Errorf("fit output = %q, want bundle summary", out)
	}
	for _, stage := range []string{"q1_to_q2", "q2_to_q3", "q3_to_q4", "q1_to_final", "q2_to_final", "q3_to_final"} {
		if !strings.Contains(out, stage) {
			t.Errorf("fit output missing stage %s", stage)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "term1.json")); err != nil {
		t.Fatalf("bundle file not written: %v", err)
	}

	out, err = run(t, "inspect", "--dir", dir, "--name", "term1")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "Bundle:    term1") || !strings.Contains(out, "q2_to_final") || !strings.Contains(out, "linear") {
		t.Errorf("inspect output = %q", out)
	}

	out, err = run(t, "inspect", "--dir", dir, "--name", "term1", "--query", "stages.q1_to_q2.target")
	if err != nil {
		t.Fatalf("inspect --query: %v", err)
	}
	if strings.TrimSpace(out) != "2nd_quarter" {
		t.Errorf("query output = %q, want 2nd_quarter", out)
	}

	if _, err := run(t, "inspect", "--dir", dir, "--name", "term1", "--query", "stages.nope"); err == nil {
		t.Error("inspect with unknown path succeeded, want error")
	}

	out, err = run(t, "list", "--dir", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "term1" {
		t.Errorf("list output = %q, want term1", out)
	}
}

func TestFit_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, "fit", "--dir", dir, "--data", filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("fit with missing data succeeded, want error")
	}

	data := writeDataset(t, 20)
	if _, err := run(t, "fit", "--dir", dir, "--data", data, "--model", "svm"); err == nil {
		t.Error("fit with unknown model succeeded, want error")
	}
}

func TestInspect_MissingBundle(t *testing.T) {
	_, err := run(t, "inspect", "--dir", t.TempDir(), "--name", "absent")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("inspect error = %v, want not found", err)
	}
}

func TestPublish_MissingBundle(t *testing.T) {
	_, err := run(t, "publish", "--dir", t.TempDir(), "--name", "absent")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("publish error = %v, want not found", err)
	}
}
