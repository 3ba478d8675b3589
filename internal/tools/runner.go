// Package tools provides sandboxed command and filesystem access for the
// recovery and quality-gate pipelines. Every invocation is timeout-bounded
// so a stalled external process cannot deadlock the scheduler.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Command timeout bounds. Requests outside this range are clamped.
const (
	MinCommandTimeout = 60 * time.Second
	MaxCommandTimeout = 300 * time.Second
	ProbeTimeout      = 10 * time.Second
)

// Result captures one tool invocation's outcome.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands and reads files within a project workspace.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (Result, error)
	ReadFile(path string) (string, error)
	Probe(ctx context.Context, name string, args ...string) error
}

// SandboxRunner confines execution to a root directory. Relative paths are
// resolved under Root; paths escaping it are rejected.
type SandboxRunner struct {
	Root    string
	Timeout time.Duration
}

// NewSandboxRunner creates a runner rooted at dir with the default timeout.
func NewSandboxRunner(dir string) *SandboxRunner {
	return &SandboxRunner{Root: dir, Timeout: 2 * time.Minute}
}

// clampTimeout keeps a command timeout inside the allowed range.
func clampTimeout(d time.Duration) time.Duration {
	if d < MinCommandTimeout {
		return MinCommandTimeout
	}
	if d > MaxCommandTimeout {
		return MaxCommandTimeout
	}
	return d
}

// Run executes a command in the sandbox root with a bounded timeout.
// A non-zero exit is reported through Result, not as an error; errors are
// reserved for failures to run the command at all.
func (r *SandboxRunner) Run(ctx context.Context, name string, args []string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, clampTimeout(r.Timeout))
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctx.Err() == context.DeadlineExceeded {
			result.ExitCode = -1
			result.Stderr = result.Stderr + "\ncommand timed out"
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", name, err)
	}

	result.Success = true
	return result, nil
}

// ReadFile reads a file resolved against the sandbox root, rejecting paths
// that escape it.
func (r *SandboxRunner) ReadFile(path string) (string, error) {
	resolved, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Probe checks that an external binary responds within the probe timeout.
func (r *SandboxRunner) Probe(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Root
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("probe %s: %w", name, err)
	}
	return nil
}

// resolve joins path with the root and verifies the result stays inside it.
func (r *SandboxRunner) resolve(path string) (string, error) {
	joined := path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.Root, path)
	}
	cleaned := filepath.Clean(joined)

	rootAbs, err := filepath.Abs(r.Root)
	if err != nil {
		return "", fmt.Errorf("resolve sandbox root: %w", err)
	}
	targetAbs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	if targetAbs != rootAbs && !strings.HasPrefix(targetAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes sandbox root", path)
	}
	return targetAbs, nil
}
