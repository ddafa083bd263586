package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type LogFormat string

var (
	Pretty LogFormat = "pretty"
	JSON   LogFormat = "json"
	Text   LogFormat = "text"
)

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stderr
	stderr           = zerolog.New(os.Stderr).With().Timestamp().Logger()

	globalFormat LogFormat = "json"
)

func current() *zerolog.Logger {
	mu.RLock()
	l := stderr
	mu.RUnlock()
	return &l
}

// Logger returns a copy of the configured logger. Use it to build child loggers with extra context,
// e.g. log.Logger().With().Str("id", id).Logger()
func Logger() zerolog.Logger {
	return *current()
}

func Fatal() *zerolog.Event { return current().Fatal() }
func Panic() *zerolog.Event { return current().Panic() }
func Error() *zerolog.Event { return current().Error() }
func Warn() *zerolog.Event  { return current().Warn() }
func Info() *zerolog.Event  { return current().Info() }
func Debug() *zerolog.Event { return current().Debug() }
func Trace() *zerolog.Event { return current().Trace() }
func Err(err error) *zerolog.Event {
	return current().Err(err)
}
func WithLevel(level zerolog.Level) *zerolog.Event {
	return current().WithLevel(level)
}
func GetLevel() zerolog.Level {
	return current().GetLevel()
}

const (
	FatalLevel = zerolog.FatalLevel
	PanicLevel = zerolog.PanicLevel
	ErrorLevel = zerolog.ErrorLevel
	WarnLevel  = zerolog.WarnLevel
	InfoLevel  = zerolog.InfoLevel
	DebugLevel = zerolog.DebugLevel
	TraceLevel = zerolog.TraceLevel
)

func SetLevelString(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	stderr = stderr.Level(l)
	mu.Unlock()
	return nil
}

// SetOutput redirects the logger to w, keeping the current level. The format is reset to json.
// Tests use this to capture log lines and the worker process uses it to keep stdout free for the protocol
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	stderr = stderr.Output(w)
	globalFormat = JSON
}

var (
	ErrUnsupportedFormat = fmt.Errorf("unsupported format. supported 'json', 'pretty', 'text")
)

func GetLogFormat() LogFormat {
	mu.RLock()
	defer mu.RUnlock()
	return globalFormat
}

func SetFormat(format string) error {
	mu.Lock()
	defer mu.Unlock()
	switch format {
	case "json", "":
		stderr = stderr.Output(out)
		globalFormat = JSON
	case "pretty":
		stderr = stderr.Output(zerolog.ConsoleWriter{Out: out, NoColor: false, TimeFormat: "3:04PM"})
		globalFormat = Pretty
	case "text":
		stderr = stderr.Output(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: "3:04PM"})
		globalFormat = Text
	default:
		return ErrUnsupportedFormat
	}
	return nil
}
