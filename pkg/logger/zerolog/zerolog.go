package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	defaultLevel      = "info"
	defaultTimeFormat = "2006-01-02 15:04:05"
)

// Environment variable names read by FromEnv
const (
	EnvLevel      = "WALKFORWARD_LOG_LEVEL"
	EnvTimeFormat = "WALKFORWARD_LOG_TIME_FORMAT"
	EnvColor      = "WALKFORWARD_LOG_COLOR"
	EnvJSON       = "WALKFORWARD_LOG_JSON"
)

// Options configures the zerolog backend
type Options struct {
	Level      string
	TimeFormat string
	Colored    bool
	JSON       bool
	Output     io.Writer
}

// New creates a zerolog backed logger. JSON output skips the console formatting.
func New(opts Options) (*Adapter, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	if opts.Level == "" {
		opts.Level = defaultLevel
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = defaultTimeFormat
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var output io.Writer = opts.Output
	if !opts.JSON {
		output = zerolog.ConsoleWriter{
			Out:           opts.Output,
			NoColor:       !opts.Colored,
			TimeFormat:    opts.TimeFormat,
			FormatLevel:   formatLevel(opts.Colored),
			FormatMessage: formatMessage,
			FormatCaller:  formatCaller,
		}
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return NewAdapter(&log), nil
}

// FromEnv creates a logger configured from WALKFORWARD_LOG_* environment variables
func FromEnv() (*Adapter, error) {
	colored, err := parseBoolEnv(EnvColor, true)
	if err != nil {
		return nil, err
	}

	jsonFormat, err := parseBoolEnv(EnvJSON, false)
	if err != nil {
		return nil, err
	}

	return New(Options{
		Level:      getEnvWithDefault(EnvLevel, defaultLevel),
		TimeFormat: getEnvWithDefault(EnvTimeFormat, defaultTimeFormat),
		Colored:    colored,
		JSON:       jsonFormat,
	})
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func formatLevel(colored bool) zerolog.Formatter {
	return func(i any) string {
		level, _ := i.(string)

		tag, paint := levelTag(level)
		if !colored {
			return tag
		}
		return paint(tag)
	}
}

func levelTag(level string) (string, func(string, ...any) string) {
	switch level {
	case zerolog.LevelTraceValue:
		return "[TRC]", term.Cyanf
	case zerolog.LevelDebugValue:
		return "[DBG]", term.Cyanf
	case zerolog.LevelInfoValue:
		return "[INF]", term.Greenf
	case zerolog.LevelWarnValue:
		return "[WAR]", term.Yellowf
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return "[ERR]", term.Redf
	default:
		return "[UNK]", term.Whitef
	}
}

func formatMessage(i any) string {
	const maxSize = 72

	msg, ok := i.(string)
	if !ok || len(msg) == 0 {
		return ">"
	}

	if len(msg) > maxSize {
		msg = msg[:maxSize]
	}
	return "> " + msg + strings.Repeat(" ", maxSize-len(msg))
}

func formatCaller(i any) string {
	fname, ok := i.(string)
	if !ok || len(fname) == 0 {
		return ""
	}
	return "[" + filepath.Base(fname) + "]"
}
