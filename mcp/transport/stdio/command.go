package stdio

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// CommandConfig describes a server process to spawn
type CommandConfig struct {
	Command string
	Args    []string
	// Env is added to the current process environment
	Env map[string]string
	// Dir is the working directory of the process
	Dir string
	// Stderr receives the process stderr, os.Stderr by default
	Stderr io.Writer
}

// NewCommand starts the server process and returns a transport
// connected to its standard input and output.
// Closing the transport closes the process input and waits for it to exit.
func NewCommand(ctx context.Context, cfg CommandConfig) (*Transport, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.WaitDelay = 5 * time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}

	if err = cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", cfg.Command)
	}

	logger.KV(xlog.INFO,
		"status", "started",
		"command", cfg.Command,
		"pid", cmd.Process.Pid)

	t := New(stdout, stdin)
	t.onClose = func() error {
		_ = stdin.Close()
		err := cmd.Wait()
		logger.KV(xlog.DEBUG, "status", "exited", "command", cfg.Command, "pid", cmd.Process.Pid)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// the server may exit with non-zero code on closed input
			return nil
		}
		return err
	}
	return t, nil
}
