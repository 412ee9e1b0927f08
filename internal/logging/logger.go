// Package logging builds the zap loggers used across featuregate.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileName is the per-project log file inside the log directory.
const LogFileName = "featuregate.log"

// Options configures a logger.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Format is console or json. Empty means console.
	Format string
	// FilePath, if set, receives JSON entries at debug level in addition
	// to the console output.
	FilePath string
	// Output replaces stderr for the console core.
	Output io.Writer
}

// Logger is a zap logger that owns its log file.
type Logger struct {
	*zap.Logger
	file *os.File
}

// New creates a logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(out), level),
	}

	var file *os.File
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err = os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(file), zapcore.DebugLevel))
	}

	l := &Logger{Logger: zap.New(zapcore.NewTee(cores...)), file: file}
	if file != nil {
		l.Debug("log started", zap.String("at", time.Now().Format(time.RFC3339)))
	}
	return l, nil
}

// ForProject creates a logger whose file, if enabled, lives in logDir
// under projectDir.
func ForProject(projectDir, logDir string, opts Options, fileEnabled bool) (*Logger, error) {
	if fileEnabled {
		if !filepath.IsAbs(logDir) {
			logDir = filepath.Join(projectDir, logDir)
		}
		opts.FilePath = filepath.Join(logDir, LogFileName)
	}
	return New(opts)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close flushes the logger and closes its file.
func (l *Logger) Close() error {
	err := l.Sync()
	if err != nil && isStdoutSyncError(err) {
		err = nil
	}
	if l.file != nil {
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		l.file = nil
	}
	return err
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(encoderCfg)
	}
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encoderCfg)
}

// isStdoutSyncError checks if error is harmless stdout/stderr sync error.
// On Linux, syncing stdout/stderr returns EINVAL or ENOTTY which are safe to ignore.
func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
