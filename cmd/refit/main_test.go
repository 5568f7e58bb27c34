package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"refit/internal/driver"
	"refit/internal/source"
)

const lambdaSrc = `import java.io.IOException;

class A {
    void info(String msg) throws IOException {
    }

    void test() {
        Runnable r = () -> info("x");
    }
}
`

// workspace writes A.java and a refit.toml with a private cache directory.
func workspace(t *testing.T, content string) (dir, file, cfg string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "A.java")
	cfg = filepath.Join(dir, "refit.toml")
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write A.java: %v", err)
	}
	if err := os.WriteFile(cfg, []byte("[cache]\ndir = \"cache\"\n"), 0o600); err != nil {
		t.Fatalf("write refit.toml: %v", err)
	}
	return dir, file, cfg
}

// execute runs one command under a fresh root, so flag values never leak
// between tests.
func execute(t *testing.T, cmd *cobra.Command, addFlags func(*cobra.Command), args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "refit", SilenceUsage: true, SilenceErrors: true}
	addGlobalFlags(root)
	child := &cobra.Command{Use: cmd.Name(), Args: cmd.Args, RunE: cmd.RunE}
	addFlags(child)
	root.AddCommand(child)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{cmd.Name(), "--color=off"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestApplyKeepsLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(lambdaSrc, "\n", "\r\n")
	_, file, cfg := workspace(t, crlf)

	out, err := execute(t, applyCmd, addApplyFlags, "--config", cfg, "--line", "8", "--col", "28", "--index", "1", file)
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Applied Surround with try/catch for IOException") {
		t.Errorf("unexpected output:\n%s", out)
	}
	got, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	text := string(got)
	if !strings.Contains(text, "catch (IOException e)") {
		t.Fatalf("file not rewritten:\n%s", text)
	}
	if strings.Count(text, "\n") != strings.Count(text, "\r\n") {
		t.Errorf("bare LF introduced:\n%q", text)
	}
}

func TestApplyDryRunLeavesFile(t *testing.T) {
	_, file, cfg := workspace(t, lambdaSrc)
	out, err := execute(t, applyCmd, addApplyFlags, "--config", cfg, "--line", "8", "--col", "28", "--dry-run", file)
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Would apply") {
		t.Errorf("unexpected output:\n%s", out)
	}
	got, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != lambdaSrc {
		t.Errorf("dry run changed the file:\n%s", got)
	}
}

func TestApplyIndexOutOfRange(t *testing.T) {
	_, file, cfg := workspace(t, lambdaSrc)
	_, err := execute(t, applyCmd, addApplyFlags, "--config", cfg, "--line", "8", "--col", "28", "--index", "99", file)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestProposalsJSON(t *testing.T) {
	_, file, cfg := workspace(t, lambdaSrc)
	offset := strings.Index(lambdaSrc, `info("x")`)
	out, err := execute(t, proposalsCmd, addProposalsFlags, "--config", cfg, "--quiet", "--format", "json", "--offset", strconv.Itoa(offset), file)
	if err != nil {
		t.Fatalf("proposals: %v\n%s", err, out)
	}
	var got []proposalJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(got) == 0 {
		t.Fatal("no proposals")
	}
	if got[0].Index != 1 || got[0].Rule != "uncaught-exception" || got[0].Status != "ok" {
		t.Errorf("first proposal = %+v", got[0])
	}
}

func TestPreviewShowsChangedLines(t *testing.T) {
	_, file, cfg := workspace(t, lambdaSrc)
	out, err := execute(t, previewCmd, addPreviewFlags, "--config", cfg, "--quiet", "--line", "8", "--col", "28", "--context", "0", file)
	if err != nil {
		t.Fatalf("preview: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1. Surround with try/catch for IOException") {
		t.Errorf("missing title:\n%s", out)
	}
	if !strings.Contains(out, "catch (IOException e)") || strings.Contains(out, "class A") {
		t.Errorf("preview should show only the rewrite:\n%s", out)
	}
}

func TestScanMsgpack(t *testing.T) {
	dir, _, cfg := workspace(t, lambdaSrc)
	out, err := execute(t, scanCmd, addScanFlags, "--config", cfg, "--quiet", "--format", "msgpack", "--no-cache", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var files []driver.FileReport
	if err := msgpack.Unmarshal([]byte(out), &files); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(files) != 1 || len(files[0].Findings) == 0 {
		t.Fatalf("unexpected report: %+v", files)
	}
}

func TestScanTextSummary(t *testing.T) {
	dir, _, cfg := workspace(t, lambdaSrc)
	out, err := execute(t, scanCmd, addScanFlags, "--config", cfg, "--ui", "off", dir)
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	if !strings.Contains(out, "A.java:8:") || !strings.Contains(out, "in 1 file(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCaretFromFlags(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("A.java", []byte("class A {\n  int x;\n}\n")))
	cases := []struct {
		args    []string
		want    int
		wantErr string
	}{
		{[]string{"--offset", "3"}, 3, ""},
		{[]string{"--line", "2", "--col", "3"}, 12, ""},
		{[]string{"--line", "2"}, 10, ""},
		{[]string{"--line", "9"}, 0, "outside"},
		{[]string{"--offset", "1", "--line", "1"}, 0, "mutually exclusive"},
		{nil, 0, "required"},
	}
	for _, tc := range cases {
		cmd := &cobra.Command{Use: "x"}
		addLocationFlags(cmd)
		if err := cmd.ParseFlags(tc.args); err != nil {
			t.Fatalf("parse %v: %v", tc.args, err)
		}
		got, _, err := caretFromFlags(cmd, file)
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("%v: error = %v, want %q", tc.args, err, tc.wantErr)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%v: got %d, %v; want %d", tc.args, got, err, tc.want)
		}
	}
}

func TestChangedLines(t *testing.T) {
	before := "a\nb\nc\nd\ne\n"
	after := "a\nb\nX\nY\nd\ne\n"
	lines, first := changedLines(before, after, 1)
	if first != 2 || strings.Join(lines, "|") != "b|X|Y|d" {
		t.Errorf("changedLines = %d %q", first, lines)
	}
}

func TestRenderRulesMarksDisabled(t *testing.T) {
	var out bytes.Buffer
	renderRules(&out, map[string]bool{"text-block": true})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 14 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	for _, line := range lines[1:] {
		disabled := strings.HasSuffix(line, "disabled")
		if strings.HasPrefix(line, "text-block ") != disabled {
			t.Errorf("wrong state: %q", line)
		}
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, "on": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Error("expected error")
	}
}

func TestScanTimingsAndProfiles(t *testing.T) {
	dir, _, cfg := workspace(t, lambdaSrc)
	cpu := filepath.Join(t.TempDir(), "cpu.pprof")
	out, err := execute(t, scanCmd, addScanFlags, "--config", cfg, "--quiet", "--ui", "off", "--timings", "--cpu-profile", cpu, dir)
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	for _, want := range []string{"timings:", "analyze", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
	if info, err := os.Stat(cpu); err != nil || info.Size() == 0 {
		t.Errorf("cpu profile not written: %v", err)
	}
}
