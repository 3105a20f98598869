package command

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes an external tool and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Exec runs commands on the host.
type Exec struct{}

func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Func adapts a plain function to Runner.
type Func func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func (f Func) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return f(ctx, name, args...)
}
