package log

import (
	"github.com/hashicorp/go-hclog"

	"github.com/redsift/spfeval"
)

type hcLogger struct {
	l hclog.Logger
}

// Hclog returns a spfeval.Logger writing to l. A nil l discards everything.
func Hclog(l hclog.Logger, args ...interface{}) spfeval.Logger {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return hcLogger{l: l.Named(Name).With(args...)}
}

func (h hcLogger) Log(line string) {
	h.l.Debug(line)
}
