// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "request finished", "method", method, "status", status)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// Options configure a pterm-backed Logger.
type Options struct {
	// Level is one of debug, info, warn, error, off. Unknown values mean info.
	Level string
	// JSON switches the formatter from colorful text to JSON lines.
	JSON   bool
	Writer io.Writer
}

// PtermLogger adapts pterm.Logger to Logger. String values are masked before
// they reach the writer.
type PtermLogger struct {
	l    *pterm.Logger
	args []any
}

// New builds a Logger writing to opts.Writer (stderr when nil).
func New(opts Options) *PtermLogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	formatter := pterm.LogFormatterColorful
	if opts.JSON {
		formatter = pterm.LogFormatterJSON
	}
	l := pterm.DefaultLogger.
		WithWriter(w).
		WithFormatter(formatter).
		WithLevel(ParseLevel(opts.Level))
	return &PtermLogger{l: l}
}

// Discard returns a Logger that drops everything.
func Discard() *PtermLogger {
	return &PtermLogger{l: pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)}
}

// ParseLevel maps a textual level to pterm's level.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "off", "disabled", "none":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}

func (p *PtermLogger) Debug(_ context.Context, msg string, args ...any) {
	p.l.Debug(Mask(msg), p.l.Args(p.merge(args)...))
}

func (p *PtermLogger) Info(_ context.Context, msg string, args ...any) {
	p.l.Info(Mask(msg), p.l.Args(p.merge(args)...))
}

func (p *PtermLogger) Warn(_ context.Context, msg string, args ...any) {
	p.l.Warn(Mask(msg), p.l.Args(p.merge(args)...))
}

func (p *PtermLogger) Error(_ context.Context, msg string, args ...any) {
	p.l.Error(Mask(msg), p.l.Args(p.merge(args)...))
}

func (p *PtermLogger) With(args ...any) Logger {
	return &PtermLogger{l: p.l, args: p.merge(args)}
}

// merge prepends the bound args and masks string values.
func (p *PtermLogger) merge(args []any) []any {
	out := make([]any, 0, len(p.args)+len(args))
	out = append(out, p.args...)
	for i, a := range args {
		// values sit at odd positions
		if i%2 == 1 {
			switch v := a.(type) {
			case string:
				a = Mask(v)
			case error:
				a = Mask(v.Error())
			}
		}
		out = append(out, a)
	}
	return out
}
