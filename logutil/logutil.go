// logutil.go - slog-Hilfsfunktionen
//
// Dieses Modul enthaelt:
// - NewLogger: Text-Handler mit Level und gekuerzter Source-Angabe
// - Trace: Logging unterhalb von Debug
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace sits below slog.LevelDebug; enabled via DIFFUSED_DEBUG=2.
const LevelTrace slog.Level = -8

// NewLogger creates a text logger writing to w at the given level, with
// source locations shortened to the file base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// Trace logs below Debug level on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}
