// Package logging provides the structured logging facility shared by every
// pipeline stage, the Fleet Sync engine, and the orchestrator. It is backed
// by zerolog (as the teacher's internal/observability/logging does) rather
// than a hand-rolled JSON encoder, with one global Logger plus
// component-scoped children.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the global logger's level, format, and output sink.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr, or a file path
}

// DefaultConfig returns the zero-config defaults: info level, JSON to stdout.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "json", Output: "stdout"}
}

var (
	base zerolog.Logger
	once sync.Once
)

// Init configures the global logger. Safe to call once at process startup;
// subsequent calls are no-ops so packages can call GetLogger() lazily
// without racing Init.
func Init(cfg *Config) error {
	var err error
	once.Do(func() {
		if cfg == nil {
			cfg = DefaultConfig()
		}
		level, perr := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if perr != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		var output io.Writer
		switch strings.ToLower(cfg.Output) {
		case "stderr":
			output = os.Stderr
		case "", "stdout":
			output = os.Stdout
		default:
			f, ferr := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if ferr != nil {
				err = ferr
				return
			}
			output = f
		}
		if strings.ToLower(cfg.Format) == "console" {
			output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
		}

		base = zerolog.New(output).With().Timestamp().Str("service", "certguard").Logger()
	})
	return err
}

func ensureInit() {
	once.Do(func() {
		base = zerolog.New(os.Stdout).With().Timestamp().Str("service", "certguard").Logger()
	})
}

// Logger is a component-scoped wrapper over a zerolog.Logger, kept as a
// concrete type (rather than the zerolog.Logger value) so call sites can
// pass fields as a plain map, matching the rest of the codebase's style.
type Logger struct {
	z zerolog.Logger
}

// GetLogger returns a Logger bound to the global zerolog instance.
func GetLogger() *Logger {
	ensureInit()
	return &Logger{z: base}
}

// WithComponent returns a Logger scoped to a named pipeline component
// (e.g. "drift", "guardrail", "fleetsync").
func WithComponent(component string) *Logger {
	ensureInit()
	return &Logger{z: base.With().Str("component", component).Logger()}
}

// WithRunID returns a Logger scoped to a run id, used by the orchestrator to
// thread run identity through every stage's log lines.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{z: l.z.With().Str("run_id", runID).Logger()}
}

func (l *Logger) event(e *zerolog.Event, fields ...map[string]interface{}) {
	if len(fields) > 0 {
		for k, v := range fields[0] {
			e = e.Interface(k, v)
		}
	}
	e.Msg("")
}

// Debug logs at debug level with optional structured fields.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.logAt(l.z.Debug(), msg, fields...)
}

// Info logs at info level with optional structured fields.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.logAt(l.z.Info(), msg, fields...)
}

// Warn logs at warn level with optional structured fields.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.logAt(l.z.Warn(), msg, fields...)
}

// Error logs at error level, attaching err if non-nil, with optional fields.
func (l *Logger) Error(msg string, err error, fields ...map[string]interface{}) {
	e := l.z.Error()
	if err != nil {
		e = e.Err(err)
	}
	l.logAt(e, msg, fields...)
}

// Fatal logs at fatal level and terminates the process, matching the
// teacher's Logger.Fatal contract.
func (l *Logger) Fatal(msg string, err error, fields ...map[string]interface{}) {
	e := l.z.Fatal()
	if err != nil {
		e = e.Err(err)
	}
	l.logAt(e, msg, fields...)
}

func (l *Logger) logAt(e *zerolog.Event, msg string, fields ...map[string]interface{}) {
	if len(fields) > 0 {
		for k, v := range fields[0] {
			e = e.Interface(k, v)
		}
	}
	e.Msg(msg)
}

// Audit logs a structured audit event, used by the orchestrator and fleet
// sync for stage transitions and roster-reconciliation decisions.
func Audit(action string, fields map[string]interface{}) {
	ensureInit()
	e := base.Info().Str("audit", "true").Str("action", action)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg("audit event")
}

// Package-level convenience wrappers over the global logger.
func Debug(msg string, fields ...map[string]interface{}) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetLogger().Warn(msg, fields...) }
func Error(msg string, err error, fields ...map[string]interface{}) {
	GetLogger().Error(msg, err, fields...)
}
