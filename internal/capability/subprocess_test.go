package capability

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const fakeModule = `#!/bin/sh
shift 2
cmd=$1
shift
in=""
out=""
while [ $# -gt 0 ]; do
	case "$1" in
		--in) in=$2; shift ;;
		--out) out=$2; shift ;;
	esac
	shift
done
case "$cmd" in
	doctor) echo '{"package_version":"0.3.1","models":{"embedding":{"available":true},"emotion":{"available":%s}}}' > "$out" ;;
	embed) echo '{"embeddings":[[1,0],[0,1]]}' > "$out" ;;
	classify) grep -q fail "$in" && { echo "model crashed" >&2; exit 3; }; echo '{"label":"sadness","score":0.6}' > "$out" ;;
	*) echo "unknown command $cmd" >&2; exit 2 ;;
esac
`

func writeFakePython(t *testing.T, emotion bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script interpreter")
	}
	avail := "false"
	if emotion {
		avail = "true"
	}
	path := filepath.Join(t.TempDir(), "python")
	script := bytes.Replace([]byte(fakeModule), []byte("%s"), []byte(avail), 1)
	if err := os.WriteFile(path, script, 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPythonModels_EndToEnd(t *testing.T) {
	cfg := PythonConfig{PythonPath: writeFakePython(t, true), WorkDir: t.TempDir()}
	p, err := NewPythonModels(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewPythonModels() error = %v", err)
	}
	if r := p.Report(); r.PackageVersion != "0.3.1" || !r.HasEmbedding() || !r.HasEmotion() {
		t.Errorf("Report() = %+v", r)
	}

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 1 {
		t.Errorf("Embed() = %v", vecs)
	}

	if _, err := p.Embed(context.Background(), []string{"only one"}); err == nil {
		t.Error("Embed() with mismatched count: expected error")
	}

	label, err := p.Classify(context.Background(), "it rained all week")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if label.Name != "sadness" || label.Score != 0.6 {
		t.Errorf("Classify() = %+v", label)
	}

	_, err = p.Classify(context.Background(), "please fail")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Classify() error = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 || !bytes.Contains([]byte(exitErr.StderrTail), []byte("model crashed")) {
		t.Errorf("ExitError = %+v", exitErr)
	}

	entries, err := os.ReadDir(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("request dir %s left behind", e.Name())
		}
	}
}

func TestNew_PythonWithoutEmotionModel(t *testing.T) {
	set, err := New(Settings{
		Provider: ProviderPython,
		Python:   PythonConfig{PythonPath: writeFakePython(t, false), WorkDir: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer set.Close()

	if err := set.Init(context.Background()); err == nil {
		t.Fatal("Init() expected error for missing emotion model")
	}
	if _, err := set.Scorer().Embed(context.Background(), []string{"a", "b"}); err != nil {
		t.Errorf("Embed() error = %v", err)
	}
	if _, err := set.Classifier().Classify(context.Background(), "x"); err == nil {
		t.Error("Classify() expected remembered init failure")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	n, _ := lw.Write([]byte(" world of test data"))
	if n != 19 {
		t.Errorf("Write returned %d, want 19", n)
	}
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestResolvePython_PreferredNotFound(t *testing.T) {
	if _, err := resolvePython("/nonexistent/python999"); err == nil {
		t.Fatal("expected error for nonexistent python")
	}
}

func TestRunResult_IsSuccess(t *testing.T) {
	for code, want := range map[int]bool{0: true, 1: false, -1: false, 127: false} {
		if got := (RunResult{ExitCode: code}).IsSuccess(); got != want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", code, got, want)
		}
	}
}
