// Package run executes transfer-utility command lines and captures their
// output. The utility signals most failures in its text output rather than
// its exit code, so both streams are captured unconditionally.
package run

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"go.uber.org/zap"
)

// Result is the raw observation from one invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout and stderr concatenated, the form the response
// parser consumes.
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// Runner executes a constructed command line and returns its captured
// output. Implementations block until the process exits.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *zap.Logger
}

func NewExecRunner(logger *zap.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes name with args and waits for it to finish. The returned
// Result is populated even when err is non-nil, because callers interpret
// output text on failure too. Argument values are never logged; they can
// reference credential files.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("command finished",
		zap.String("command", name),
		zap.Int("arg_count", len(args)),
		zap.Int("exit_code", res.ExitCode),
		zap.Error(err),
	)

	return res, err
}
