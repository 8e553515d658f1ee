package logging

import "go.uber.org/zap"

// Category tags diagnostic messages coming from rooms and the engine.
type Category string

const (
	CategoryInfo        Category = "info"
	CategoryWarning     Category = "warning"
	CategoryError       Category = "error"
	CategoryScriptError Category = "script_error"
	CategoryCoreError   Category = "core_error"
)

// Sink is the diagnostics collaborator rooms write into.
type Sink struct {
	l *zap.Logger
}

func NewSink(l *zap.Logger) *Sink {
	return &Sink{l: l.WithOptions(zap.AddCallerSkip(1))}
}

// With returns a sink whose entries carry the extra fields.
func (s *Sink) With(fields ...zap.Field) *Sink {
	return &Sink{l: s.l.With(fields...)}
}

func (s *Sink) Log(cat Category, text string) {
	f := zap.String("category", string(cat))
	switch cat {
	case CategoryWarning:
		s.l.Warn(text, f)
	case CategoryError, CategoryScriptError, CategoryCoreError:
		s.l.Error(text, f)
	default:
		s.l.Info(text, f)
	}
}
