// Package logging provides structured logging for flowsync.
// It uses zerolog with JSON output by default and lumberjack for file rotation.
//
// Log records carry identifiers (vault, task id, command) only. Titles,
// descriptions, blobs and keys are never logged.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a log level.
type Level = zerolog.Level

// Log levels for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level.
	Level Level

	// JSON selects JSON output; otherwise a human-readable console format is used.
	JSON bool

	// FilePath is the log file (empty for stderr only).
	FilePath string

	// MaxSize is the maximum size in megabytes before rotation.
	MaxSize int

	// MaxBackups is the maximum number of rotated files to keep.
	MaxBackups int

	// MaxAge is the maximum number of days to keep rotated files.
	MaxAge int

	// Compress gzips rotated files.
	Compress bool

	// Console also writes to stderr when FilePath is set.
	Console bool

	// Output overrides stderr. Used by tests.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      WarnLevel,
		JSON:       true,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	}
}

// Logger wraps zerolog.Logger with flowsync context fields.
type Logger struct {
	zl      zerolog.Logger
	vault   string
	command string
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
	loggerMu     sync.RWMutex
)

// Init initializes the global logger. A nil cfg uses DefaultConfig.
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}

	loggerMu.Lock()
	globalLogger = l
	loggerMu.Unlock()

	return nil
}

// New builds a standalone logger from cfg.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	stderr := cfg.Output
	if stderr == nil {
		stderr = os.Stderr
	}

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o700); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	if cfg.Console || cfg.FilePath == "" {
		if cfg.JSON {
			writers = append(writers, stderr)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        stderr,
				TimeFormat: time.RFC3339,
			})
		}
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Str("app", "flowsync").
		Logger()

	return &Logger{zl: zl}, nil
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *Logger {
	loggerOnce.Do(func() {
		loggerMu.RLock()
		initialized := globalLogger != nil
		loggerMu.RUnlock()
		if !initialized {
			_ = Init(nil)
		}
	})

	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// WithVault returns a logger tagged with the vault id.
func (l *Logger) WithVault(vaultID string) *Logger {
	return &Logger{
		zl:      l.zl.With().Str("vault", vaultID).Logger(),
		vault:   vaultID,
		command: l.command,
	}
}

// WithCommand returns a logger tagged with the CLI command.
func (l *Logger) WithCommand(command string) *Logger {
	return &Logger{
		zl:      l.zl.With().Str("command", command).Logger(),
		vault:   l.vault,
		command: command,
	}
}

// WithTaskID returns a logger tagged with a task id.
func (l *Logger) WithTaskID(taskID string) *Logger {
	return l.WithField("task_id", taskID)
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		zl:      l.zl.With().Interface(key, value).Logger(),
		vault:   l.vault,
		command: l.command,
	}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{
		zl:      ctx.Logger(),
		vault:   l.vault,
		command: l.command,
	}
}

// WithError returns a logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		zl:      l.zl.With().Err(err).Logger(),
		vault:   l.vault,
		command: l.command,
	}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// ParseLevel parses a level string into a Level.
func ParseLevel(level string) (Level, error) {
	return zerolog.ParseLevel(level)
}

// Convenience functions that use the global logger

// WithVault returns the global logger tagged with a vault id.
func WithVault(vaultID string) *Logger {
	return Get().WithVault(vaultID)
}

// WithCommand returns the global logger tagged with a command.
func WithCommand(command string) *Logger {
	return Get().WithCommand(command)
}

// WithError returns the global logger with an error field.
func WithError(err error) *Logger {
	return Get().WithError(err)
}

// Settings mirrors the logging section of the config file.
type Settings struct {
	Level      string
	FilePath   string
	JSON       bool
	Console    bool
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// InitFromSettings initializes the global logger from config file settings.
func InitFromSettings(s Settings) error {
	cfg := DefaultConfig()

	if s.Level != "" {
		level, err := ParseLevel(s.Level)
		if err != nil {
			return err
		}
		cfg.Level = level
	}

	cfg.FilePath = s.FilePath
	cfg.JSON = s.JSON
	cfg.Console = s.Console

	if s.MaxSize > 0 {
		cfg.MaxSize = s.MaxSize
	}
	if s.MaxBackups > 0 {
		cfg.MaxBackups = s.MaxBackups
	}
	if s.MaxAge > 0 {
		cfg.MaxAge = s.MaxAge
	}
	cfg.Compress = s.Compress

	return Init(cfg)
}
