package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/heimdex/heimdex-captions/internal/captions"
	"github.com/heimdex/heimdex-captions/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics
	DefaultModule  = "heimdex_caption_models"
)

// PythonConfig configures the Python model subprocess.
type PythonConfig struct {
	PythonPath    string // empty = auto-detect
	ModuleName    string
	WorkDir       string // request and response files
	DoctorTimeout time.Duration
	Logger        *slog.Logger
	DebugPaths    bool // log full file paths instead of sanitised ones
}

// DoctorReport is the output of `python -m <module> doctor --json`.
type DoctorReport struct {
	PackageVersion string             `json:"package_version"`
	Python         PythonInfo         `json:"python"`
	Models         map[string]DepInfo `json:"models"`
	ProbedAt       time.Time          `json:"-"`
}

type PythonInfo struct {
	Version    string `json:"version"`
	Executable string `json:"executable"`
}

// DepInfo is the availability of one dependency or model.
type DepInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r *DoctorReport) HasEmbedding() bool { return isAvailable(r.Models, "embedding") }

func (r *DoctorReport) HasEmotion() bool { return isAvailable(r.Models, "emotion") }

// RunResult captures the outcome of one subprocess run.
type RunResult struct {
	ExitCode   int
	OutputPath string
	StderrTail string
	Duration   time.Duration
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ExitError reports a non-zero exit from the model subprocess.
type ExitError struct {
	Command    string
	ExitCode   int
	StderrTail string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", e.Command, e.ExitCode, truncate(e.StderrTail, 512))
}

// PythonModels runs embedding and emotion models through a Python module CLI.
// Each call writes a JSON request file and reads a JSON response file.
type PythonModels struct {
	cfg    PythonConfig
	python string
	report *DoctorReport
}

// NewPythonModels resolves the interpreter and probes the module with doctor.
func NewPythonModels(ctx context.Context, cfg PythonConfig) (*PythonModels, error) {
	cfg.Logger = logging.WithComponent(logging.OrDiscard(cfg.Logger), "python")
	if cfg.ModuleName == "" {
		cfg.ModuleName = DefaultModule
	}
	if cfg.DoctorTimeout <= 0 {
		cfg.DoctorTimeout = 30 * time.Second
	}

	python, err := resolvePython(cfg.PythonPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create work dir: %w", err)
	}

	p := &PythonModels{cfg: cfg, python: python}
	report, err := p.doctor(ctx)
	if err != nil {
		return nil, err
	}
	p.report = report

	cfg.Logger.Info("python models initialised",
		"python", python,
		"module", cfg.ModuleName,
		"package_version", report.PackageVersion,
		"embedding", report.HasEmbedding(),
		"emotion", report.HasEmotion(),
	)
	return p, nil
}

// Report returns the doctor probe taken at startup.
func (p *PythonModels) Report() *DoctorReport { return p.report }

func (p *PythonModels) doctor(ctx context.Context) (*DoctorReport, error) {
	outPath := filepath.Join(p.cfg.WorkDir, ".doctor.json")

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DoctorTimeout)
	defer cancel()

	result := p.exec(ctx, outPath, "doctor", "--json", "--out", outPath)
	if !result.IsSuccess() {
		return nil, &ExitError{Command: "doctor", ExitCode: result.ExitCode, StderrTail: result.StderrTail}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read doctor output: %w", err)
	}
	var report DoctorReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("cannot parse doctor JSON: %w", err)
	}
	report.ProbedAt = time.Now()
	return &report, nil
}

func (p *PythonModels) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	var out embedResponse
	if err := p.call(ctx, "embed", embedRequest{Texts: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

func (p *PythonModels) Classify(ctx context.Context, text string) (captions.Label, error) {
	var out captions.Label
	if err := p.call(ctx, "classify", detectRequest{Text: text}, &out); err != nil {
		return captions.Label{}, err
	}
	return out, nil
}

func (p *PythonModels) call(ctx context.Context, command string, in, out any) error {
	dir, err := os.MkdirTemp(p.cfg.WorkDir, command+"-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "in.json")
	outPath := filepath.Join(dir, "out.json")
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(inPath, b, 0644); err != nil {
		return err
	}

	result := p.exec(ctx, outPath, command, "--in", inPath, "--out", outPath)
	if !result.IsSuccess() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}
		return &ExitError{Command: command, ExitCode: result.ExitCode, StderrTail: result.StderrTail}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("cannot read %s output: %w", command, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot parse %s output: %w", command, err)
	}
	return nil
}

func (p *PythonModels) exec(ctx context.Context, outPath string, args ...string) RunResult {
	start := time.Now()

	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			p.cfg.Logger.Error("cannot create output dir", "error", err)
			return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
		}
	}

	cmdArgs := append([]string{"-m", p.cfg.ModuleName}, args...)
	cmd := exec.CommandContext(ctx, p.python, cmdArgs...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	p.cfg.Logger.Debug("executing model command", "args", cmdArgs)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		if stderrBuf.Len() == 0 {
			stderrBuf.WriteString(err.Error())
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 {
		p.cfg.Logger.Warn("model command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		p.cfg.Logger.Debug("model command succeeded",
			"duration_ms", elapsed.Milliseconds(),
			"output", p.safePath(outPath),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (p *PythonModels) safePath(path string) string {
	if p.cfg.DebugPaths {
		return path
	}
	return logging.SanitizePath(path)
}

// resolvePython finds a usable python binary.
func resolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

func isAvailable(deps map[string]DepInfo, name string) bool {
	d, ok := deps[name]
	return ok && d.Available
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
