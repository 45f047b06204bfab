package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitsuite/packages/assertions"
)

// Shell runs commands through sh -c.
type Shell struct {
	// Dir is the working directory, usually the document's directory.
	Dir string
	// Env is appended to the process environment.
	Env     []string
	Verbose bool
	Logger  *zap.Logger
}

// Run executes command and captures its output. A non-zero exit is not an
// error; the exit code is reported in the output. Errors are returned when
// the command cannot start or is stopped by ctx or timeout.
func (s *Shell) Run(ctx context.Context, command string, timeout time.Duration) (*assertions.Output, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return &assertions.Output{}, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", s.resolveExecutable(command))
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := &assertions.Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	s.logger().Debug("command finished",
		zap.String("command", command),
		zap.Duration("duration", out.Duration),
		zap.Error(err),
	)
	if s.Verbose && stdout.Len() > 0 {
		s.logger().Info("command output", zap.String("command", command), zap.ByteString("stdout", stdout.Bytes()))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && timeout > 0 {
			return out, fmt.Errorf("command %q timed out after %s", command, timeout)
		}
		return out, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("starting command %q: %w", command, err)
	}
	return out, nil
}

// Hook runs command for a hook. A command prefixed with "-" never fails.
func (s *Shell) Hook(ctx context.Context, command string, timeout time.Duration) error {
	command = strings.TrimSpace(command)
	ignoreError := strings.HasPrefix(command, "-")
	if ignoreError {
		command = strings.TrimSpace(strings.TrimPrefix(command, "-"))
	}

	out, err := s.Run(ctx, command, timeout)
	if err == nil && out.ExitCode != 0 {
		err = &CommandError{
			Command:  command,
			ExitCode: out.ExitCode,
			Output:   string(append(out.Stdout, out.Stderr...)),
		}
	}
	if err != nil && ignoreError {
		s.logger().Debug("ignoring failed command", zap.String("command", command), zap.Error(err))
		return nil
	}
	return err
}

// resolveExecutable makes a leading relative executable, or a script that
// exists in Dir but not on PATH, relative to Dir.
func (s *Shell) resolveExecutable(command string) string {
	parts := strings.Fields(command)
	if len(parts) == 0 || s.Dir == "" {
		return command
	}
	executable := parts[0]
	switch {
	case strings.HasPrefix(executable, "./") || strings.HasPrefix(executable, "../"):
		return filepath.Join(s.Dir, executable) + command[len(executable):]
	case !filepath.IsAbs(executable) && !strings.ContainsAny(executable, "=$'\"") && !isInPath(executable):
		candidate := filepath.Join(s.Dir, executable)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate + command[len(executable):]
		}
	}
	return command
}

func (s *Shell) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func isInPath(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
