// Package log adapts structured loggers to spfeval.Logger. Evaluation lines
// are debug output: they are emitted at debug level under the "spf" logger
// name.
package log

import (
	"go.uber.org/zap"

	"github.com/redsift/spfeval"
)

// Name is the logger name evaluation lines are emitted under.
const Name = "spf"

type zapLogger struct {
	l *zap.Logger
}

// Zap returns a spfeval.Logger writing to l. A nil l discards everything.
func Zap(l *zap.Logger, fields ...zap.Field) spfeval.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return zapLogger{l: l.Named(Name).With(fields...)}
}

func (z zapLogger) Log(line string) {
	z.l.Debug(line)
}
