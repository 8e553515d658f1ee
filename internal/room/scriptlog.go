package room

import (
	"strings"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/logging"
)

// scriptLogger turns engine diagnostics into sink entries. Repeats of the
// previous entry are dropped; debug output is buffered and only surfaces
// when a duel crashes.
type scriptLogger struct {
	sink  *logging.Sink
	prev  string
	debug strings.Builder
}

func newScriptLogger(sink *logging.Sink) *scriptLogger {
	return &scriptLogger{sink: sink}
}

func (l *scriptLogger) handle(kind core.LogKind, text string) {
	var msg string
	switch kind {
	case core.LogError:
		msg = text
	case core.LogFromScript:
		msg = "User debug message: " + text
	case core.LogForDebug:
		l.debug.WriteString(text)
		l.debug.WriteByte('\n')
		return
	default:
		msg = "Undefined log type: " + text
	}
	if msg == l.prev {
		return
	}
	l.prev = msg
	l.sink.Log(logging.CategoryScriptError, msg)
}

func (l *scriptLogger) flushDebug() string {
	s := l.debug.String()
	l.debug.Reset()
	return s
}
