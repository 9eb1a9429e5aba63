package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// RunResult is what a Runner reports for a finished invocation.
type RunResult struct {
	ExitCode int
	Output   []byte // combined stdout and stderr
}

// Runner executes invocations. A non-zero exit is reported through
// RunResult.ExitCode; the error is reserved for failures to run at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (RunResult, error)
}

// ExecRunner runs invocations as local subprocesses.
type ExecRunner struct{}

// Run starts the process and waits for it, capturing combined output.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (RunResult, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := RunResult{Output: out.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("build: running %s: %w", inv.Name, err)
}
