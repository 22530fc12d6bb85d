package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Run waits for output pipes after the process was killed
const waitDelay = 5 * time.Second

// Command is one invocation of an external program
type Command struct {
	Binary  string
	Args    []string
	Stdin   io.Reader
	Timeout time.Duration
}

// CommandRunner executes external programs and returns their stdout
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	logger *zap.Logger
}

// NewExecRunner creates a new ExecRunner
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{logger: logger}
}

// Run executes c. A non-zero exit status is reported as COMMAND_FAILED with
// the program's stderr, a deadline as COMMAND_TIMEOUT.
func (r *ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	r.logger.Debug("executing command",
		zap.String("binary", c.Binary),
		zap.Strings("args", c.Args))

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.WaitDelay = waitDelay
	// launchers such as soffice fork the real application; kill the whole group
	killProcessGroupOnCancel(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	name := filepath.Base(c.Binary)
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewBoundaryError(ErrCodeCommandTimeout,
				fmt.Sprintf("%s timed out after %v", name, c.Timeout), err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, NewBoundaryError(ErrCodeCommandTimeout, name+" was cancelled", err)
		}

		r.logger.Debug("command failed",
			zap.String("binary", c.Binary),
			zap.Error(err),
			zap.String("stderr", stderr.String()))

		return stdout.Bytes(), NewBoundaryError(ErrCodeCommandFailed,
			fmt.Sprintf("%s failed: %s", name, strings.TrimSpace(stderr.String())), err)
	}
	return stdout.Bytes(), nil
}

// resolveBinaryPath finds the full path to the binary
func resolveBinaryPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return exec.LookPath(path)
}

func resolveBinary(path string) (string, error) {
	resolved, err := resolveBinaryPath(path)
	if err != nil {
		return "", NewBoundaryError(ErrCodeBinaryNotFound,
			fmt.Sprintf("binary not found: %s", path), err)
	}
	return resolved, nil
}
