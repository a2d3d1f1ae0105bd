// Package run scopes logging and output naming to one logical invocation of
// the build tool. A Context replaces what would otherwise be process-wide
// mutable state: the run name and the installed log handlers travel together
// and are rebuilt through explicit lifecycle calls.
package run

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terabiome/golem/pkg/logger"
)

const suffixLen = 16

type Context struct {
	logDir string
	name   string

	log     *slog.Logger
	logFile *os.File
}

// New creates a Context with a freshly computed run name. Call InitLogging
// before using Logger for anything that should land in the run log.
func New(logDir, configPath, operation string) *Context {
	return &Context{
		logDir: logDir,
		name:   newName(configPath, operation),
		log:    slog.Default(),
	}
}

// newName builds {configName}-{operation}-{UTC timestamp}-{random suffix}.
// Uniqueness comes from the suffix; the timestamp is for humans sorting logs.
func newName(configPath, operation string) string {
	timeline := time.Now().UTC().Format("2006-01-02--15-04-05")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:suffixLen]

	configName := ""
	if configPath != "" {
		base := filepath.Base(configPath)
		configName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return configName + "-" + operation + "-" + timeline + "-" + suffix
}

func (c *Context) Name() string {
	return c.name
}

func (c *Context) Logger() *slog.Logger {
	return c.log
}

// Rename recomputes the run name, for starting a logically different run
// within one process. Logging keeps writing to the old run log until
// InitLogging is called again.
func (c *Context) Rename(configPath, operation string) {
	c.name = newName(configPath, operation)
}

// InitLogging (re)builds the run's log handlers: a file handler capturing
// every level under the log directory, named after the run, and a console
// handler gated at Info unless verbose. Calling it again replaces the
// previous handlers and closes the previous log file.
func (c *Context) InitLogging(verbose bool) error {
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("cannot create log directory: %w", err)
	}

	logPath := filepath.Join(c.logDir, c.name+".log")
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open run log %s: %w", logPath, err)
	}

	if c.logFile != nil {
		c.logFile.Close()
	}
	c.logFile = f

	consoleLevel := slog.LevelInfo
	if verbose {
		consoleLevel = slog.LevelDebug
	}

	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel})

	c.log = slog.New(logger.NewFanout(fileHandler, consoleHandler))
	return nil
}

func (c *Context) Close() error {
	if c.logFile == nil {
		return nil
	}
	err := c.logFile.Close()
	c.logFile = nil
	return err
}
