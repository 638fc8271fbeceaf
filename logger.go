package spfeval

// Logger receives human readable debug lines produced while a policy is
// evaluated. Implementations must be safe for concurrent use when the same
// Checker serves concurrent CheckHost calls.
type Logger interface {
	Log(line string)
}

// LoggerFunc adapts an ordinary function to Logger.
type LoggerFunc func(line string)

func (f LoggerFunc) Log(line string) { f(line) }

type nopLogger struct{}

func (nopLogger) Log(string) {}
