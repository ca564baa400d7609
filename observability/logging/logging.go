package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures rotation of the optional log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Setup configures the standard library logger to emit structured JSON on
// stdout and returns the slog.Logger for the service. All log lines include
// the service name and environment when provided.
func Setup(service, env string) *slog.Logger {
	return setup(os.Stdout, service, env)
}

// SetupWithFile is Setup with every line also appended to a rotated file.
// An empty path behaves like Setup. The returned closer releases the file.
func SetupWithFile(service, env string, opts FileOptions) (*slog.Logger, io.Closer) {
	if strings.TrimSpace(opts.Path) == "" {
		return Setup(service, env), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return setup(io.MultiWriter(os.Stdout, rotator), service, env), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func setup(w io.Writer, service, env string) *slog.Logger {
	handler := NewHandler(w)

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// NewHandler returns the JSON handler used by every service, with the
// timestamp, severity and message keys renamed for the log pipeline.
func NewHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})
}
