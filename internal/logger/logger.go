// Package logger configures the process-wide zerolog logger.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Setup installs the global logger. Development gets a console writer at
// debug level; everything else gets JSON at info level.
func Setup(service string, development bool) zerolog.Logger {
	var out io.Writer = os.Stderr
	level := zerolog.InfoLevel
	if development {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = New(out, service)
	return log.Logger
}

func New(out io.Writer, service string) zerolog.Logger {
	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(TraceHook{})
}

// FromContext returns the request scoped logger stored in ctx by the HTTP
// layer, or the global logger when there is none.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// TraceHook adds trace_id and span_id to events logged with a context that
// carries a recording span (log.Ctx(ctx) or Event.Ctx).
type TraceHook struct{}

func (TraceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
}
