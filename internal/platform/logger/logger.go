package logger

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info", "":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case Debug:
		return log.DebugLevel
	case Warn:
		return log.WarnLevel
	case Error:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

type Logger interface {
	With(fields map[string]any) Logger

	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type Options struct {
	Level  Level
	Format Format
	App    string

	// File, si viene, agrega salida a un archivo rotado (lumberjack).
	File string

	// Output reemplaza stdout (tests).
	Output io.Writer
}

// charmLogger adapta charmbracelet/log a la interfaz de campos por mapa.
type charmLogger struct {
	l *log.Logger
}

func New(opts Options) Logger {
	var w io.Writer = os.Stdout
	if opts.Output != nil {
		w = opts.Output
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   f,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	formatter := log.TextFormatter
	if opts.Format == FormatJSON {
		formatter = log.JSONFormatter
	}

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           opts.Level.charm(),
		Formatter:       formatter,
		Prefix:          strings.TrimSpace(opts.App),
	})

	return &charmLogger{l: l}
}

// NewFromEnv crea logger desde env:
// - LOG_LEVEL=debug|info|warn|error (default info)
// - LOG_FORMAT=text|json (default text)
// - LOG_FILE=/var/log/slot-swapper.log (opcional)
// - APP_NAME=slot-swapper (opcional)
func NewFromEnv() Logger {
	return New(Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: ParseFormat(os.Getenv("LOG_FORMAT")),
		File:   os.Getenv("LOG_FILE"),
		App:    os.Getenv("APP_NAME"),
	})
}

func (c *charmLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return c
	}
	return &charmLogger{l: c.l.With(keyvals(fields)...)}
}

func (c *charmLogger) Debug(msg string, fields map[string]any) { c.l.Debug(msg, keyvals(fields)...) }
func (c *charmLogger) Info(msg string, fields map[string]any)  { c.l.Info(msg, keyvals(fields)...) }
func (c *charmLogger) Warn(msg string, fields map[string]any)  { c.l.Warn(msg, keyvals(fields)...) }
func (c *charmLogger) Error(msg string, fields map[string]any) { c.l.Error(msg, keyvals(fields)...) }

// keyvals ordena las keys para salida estable (útil en tests/logs).
func keyvals(m map[string]any) []any {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}

type nop struct{}

// Nop descarta todo. Para tests y wiring opcional.
func Nop() Logger { return nop{} }

func (n nop) With(map[string]any) Logger   { return n }
func (nop) Debug(string, map[string]any) {}
func (nop) Info(string, map[string]any)  {}
func (nop) Warn(string, map[string]any)  {}
func (nop) Error(string, map[string]any) {}
