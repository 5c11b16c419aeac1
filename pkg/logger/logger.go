// Package logger builds the process-wide slog.Logger. Text output uses
// a charmbracelet/log handler for local runs; JSON output uses the
// standard JSON handler with relay-friendly key names. Both formats
// mask sender identities, since those are guest phone numbers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"concierge/pkg/config"
)

const (
	defaultFormat = "text"
	defaultLevel  = "info"
)

// senderIDKey is the attribute that carries a guest phone number.
const senderIDKey = "sender_id"

// New builds a logger from configuration, with CONCIERGE_LOG_FORMAT,
// CONCIERGE_LOG_LEVEL, and CONCIERGE_LOG_ADD_SOURCE taking precedence
// over the config file values.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, writer io.Writer) (*slog.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if value := strings.TrimSpace(os.Getenv("CONCIERGE_LOG_FORMAT")); value != "" {
		format = strings.ToLower(value)
	}
	if format == "" {
		format = defaultFormat
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	addSource := cfg.AddSource
	if env := strings.TrimSpace(os.Getenv("CONCIERGE_LOG_ADD_SOURCE")); env != "" {
		addSource = parseBool(env)
	}

	var handler slog.Handler
	if format == "text" {
		handler = charmLog.NewWithOptions(writer, charmLog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			ReportCaller:    addSource,
			Formatter:       charmLog.TextFormatter,
		})
	} else {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:       level,
			AddSource:   addSource,
			ReplaceAttr: renameEntryKeys,
		})
	}

	return slog.New(&redactingHandler{next: handler}), nil
}

// renameEntryKeys maps the standard slog JSON keys onto the names the
// log pipeline indexes on.
func renameEntryKeys(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}

	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
		}
	case slog.LevelKey:
		attr.Key = "level"
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}

	return attr
}

// redactingHandler masks sender identities before delegating. Attrs
// attached via With are masked once at attachment time, record attrs
// on each Handle call.
type redactingHandler struct {
	next slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		maskedAttrs = append(maskedAttrs, maskAttr(attr))
	}

	return &redactingHandler{next: h.next.WithAttrs(maskedAttrs)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}

func maskAttr(attr slog.Attr) slog.Attr {
	if attr.Key != senderIDKey {
		return attr
	}

	attr.Value = slog.StringValue(MaskSenderID(attr.Value.Resolve().String()))
	return attr
}

// MaskSenderID keeps the last four characters of a sender identity and
// masks the rest. Short identities are fully masked.
func MaskSenderID(senderID string) string {
	const visible = 4

	trimmed := strings.TrimSpace(senderID)
	if len(trimmed) <= visible {
		return strings.Repeat("*", len(trimmed))
	}

	return strings.Repeat("*", len(trimmed)-visible) + trimmed[len(trimmed)-visible:]
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func parseLevel(input string) (slog.Level, error) {
	levelText := strings.ToLower(strings.TrimSpace(input))
	if value := strings.TrimSpace(os.Getenv("CONCIERGE_LOG_LEVEL")); value != "" {
		levelText = strings.ToLower(value)
	}
	if levelText == "" {
		levelText = defaultLevel
	}

	switch levelText {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", levelText)
	}
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
