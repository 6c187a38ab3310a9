package observability

import (
	"context"
	"log/slog"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field          { return stringField{key, value} }
func Int(key string, value int) Field         { return intField{key, value} }
func Float64(key string, value float64) Field { return float64Field{key, value} }
func Error(key string, err error) Field       { return errorField{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

func (l SlogLogger) logger() *slog.Logger {
	if l.L == nil {
		return slog.Default()
	}
	return l.L
}

func slogArgs(fields []Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key(), f.Value())
	}
	return args
}

func (l SlogLogger) Debug(msg string, fields ...Field) { l.logger().Debug(msg, slogArgs(fields)...) }
func (l SlogLogger) Info(msg string, fields ...Field)  { l.logger().Info(msg, slogArgs(fields)...) }
func (l SlogLogger) Warn(msg string, fields ...Field)  { l.logger().Warn(msg, slogArgs(fields)...) }
func (l SlogLogger) Error(msg string, fields ...Field) { l.logger().Error(msg, slogArgs(fields)...) }
func (l SlogLogger) With(fields ...Field) Logger {
	return SlogLogger{L: l.logger().With(slogArgs(fields)...)}
}

// Tracer provides distributed tracing hooks for library operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard metric names emitted by the library.
const (
	MetricExtractTime      = "doc.extract.duration"
	MetricRenderTime       = "doc.render.duration"
	MetricUnitCount        = "doc.units.count"
	MetricFontScanTime     = "fonts.scan.duration"
	MetricFontResolveCount = "fonts.resolve.count"
	MetricFontDownloadTime = "fonts.download.duration"
	MetricValidatePageTime = "validate.page.duration"
	MetricValidateTime     = "validate.duration"
	MetricBatchTime        = "validate.batch.duration"
)
