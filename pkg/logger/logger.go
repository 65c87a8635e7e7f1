package logger

type Level int8

const (
	Disabled   Level = -1   // Disabled is used for disabled logging.
	TraceLevel Level = iota // TraceLevel is used for detailed debugging information.
	DebugLevel              // DebugLevel is used for debugging information.
	InfoLevel               // InfoLevel is used for informational messages.
	WarnLevel               // WarnLevel is used for warning messages.
	ErrorLevel              // ErrorLevel is used for error messages.
	NoLevel                 // NoLevel is used for no logging level.
)

// Logger is the logging facade used across the module. Components never import a backend directly.
type Logger interface {
	WithField(key string, value any) Logger  // WithField returns a logger with the given key-value pair.
	WithFields(fields map[string]any) Logger // WithFields returns a logger with the given fields.
	WithError(err error) Logger              // WithError returns a logger with the given error.

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	SetLevel(level Level) // SetLevel sets the logging level for the logger.
	GetLevel() Level      // GetLevel returns the logging level for the logger.
}

// OrNop returns log, or a discarding logger when log is nil
func OrNop(log Logger) Logger {
	if log == nil {
		return Nop()
	}
	return log
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return nop{}
}

type nop struct{}

func (n nop) WithField(string, any) Logger { return n }
func (n nop) WithFields(map[string]any) Logger { return n }
func (n nop) WithError(error) Logger { return n }
func (nop) Debug(...any) {}
func (nop) Info(...any) {}
func (nop) Warn(...any) {}
func (nop) Error(...any) {}
func (nop) Debugf(string, ...any) {}
func (nop) Infof(string, ...any) {}
func (nop) Warnf(string, ...any) {}
func (nop) Errorf(string, ...any) {}
func (nop) SetLevel(Level) {}
func (nop) GetLevel() Level { return Disabled }
