package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// CommandError reports a nonzero exit from an external command.
type CommandError struct {
	Cmd      string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Cmd, e.ExitCode)
}

type runConfig struct {
	dir   string
	level slog.Level
	check bool
}

type Option func(*runConfig)

// WithDir runs the command in dir instead of the process's current directory.
func WithDir(dir string) Option {
	return func(c *runConfig) { c.dir = dir }
}

// WithLevel sets the level the command's output is logged at. Default is
// slog.LevelDebug.
func WithLevel(level slog.Level) Option {
	return func(c *runConfig) { c.level = level }
}

// NoCheck makes a nonzero exit code a non-error.
func NoCheck() Option {
	return func(c *runConfig) { c.check = false }
}

// Runner wraps an Executor with run-scoped logging: it announces each command,
// relays the child's merged stdout+stderr into the logger line by line as the
// child produces it, and turns nonzero exits into *CommandError.
type Runner struct {
	exec   Executor
	logger *slog.Logger
}

func NewRunner(exec Executor, logger *slog.Logger) *Runner {
	return &Runner{
		exec:   exec,
		logger: logger,
	}
}

// Run executes argv. The command blocks the caller until the child exits.
func (r *Runner) Run(ctx context.Context, argv []string, opts ...Option) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	return r.run(ctx, strings.Join(argv, " "), argv[0], argv[1:], opts)
}

// RunShell executes cmdline through the shell. Use it when the command needs
// glob expansion, pipes, or redirection.
func (r *Runner) RunShell(ctx context.Context, cmdline string, opts ...Option) error {
	return r.run(ctx, cmdline, "sh", []string{"-c", cmdline}, opts)
}

func (r *Runner) run(ctx context.Context, pretty, command string, args []string, opts []Option) error {
	cfg := runConfig{level: slog.LevelDebug, check: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := cfg.dir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	r.logger.Log(ctx, cfg.level, fmt.Sprintf("running %q in %s", pretty, dir))

	out := &lineWriter{log: r.logger, ctx: ctx, level: cfg.level}
	defer out.flush()

	exitCode, err := r.exec.Execute(ctx, out, out, cfg.dir, command, args...)
	if err != nil {
		return err
	}
	if cfg.check && exitCode != 0 {
		return &CommandError{Cmd: pretty, ExitCode: exitCode}
	}
	return nil
}

// lineWriter splits a byte stream on newlines and logs each complete line.
// The child's stdout and stderr both point at one lineWriter, so output is
// relayed as it arrives rather than after the child exits.
type lineWriter struct {
	log   *slog.Logger
	ctx   context.Context
	level slog.Level
	buf   bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, keep it for the next Write.
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// flush logs any trailing output that did not end in a newline.
func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	w.log.Log(w.ctx, w.level, line)
}
