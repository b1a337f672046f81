package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger on top of zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates an adapter writing human readable output to stderr.
func NewZerologAdapter() *ZerologAdapter {
	return NewZerologAdapterWithLevel(zerolog.InfoLevel)
}

// NewZerologAdapterWithLevel is like NewZerologAdapter but filters entries
// below level.
func NewZerologAdapterWithLevel(level zerolog.Level) *ZerologAdapter {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &ZerologAdapter{logger: logger}
}

// NewZerologAdapterWithLogger wraps an existing zerolog.Logger.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// LevelFromStudy maps the numeric log level carried by a study descriptor
// onto a zerolog level. Lower numbers are more verbose.
func LevelFromStudy(level int) zerolog.Level {
	switch {
	case level <= 10:
		return zerolog.DebugLevel
	case level <= 20:
		return zerolog.InfoLevel
	case level <= 30:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) {
	emit(z.logger.Debug(), msg, fields)
}

func (z *ZerologAdapter) Info(msg string, fields ...Field) {
	emit(z.logger.Info(), msg, fields)
}

func (z *ZerologAdapter) Warn(msg string, fields ...Field) {
	emit(z.logger.Warn(), msg, fields)
}

func (z *ZerologAdapter) Error(msg string, fields ...Field) {
	emit(z.logger.Error(), msg, fields)
}

// Logger returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger
}

func emit(event *zerolog.Event, msg string, fields []Field) {
	// a disabled level returns a nil event
	if event == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			event = event.Str(f.Key, v)
		case []string:
			event = event.Strs(f.Key, v)
		case int:
			event = event.Int(f.Key, v)
		case bool:
			event = event.Bool(f.Key, v)
		case time.Duration:
			event = event.Dur(f.Key, v)
		case error:
			event = event.AnErr(f.Key, v)
		default:
			event = event.Interface(f.Key, v)
		}
	}
	event.Msg(msg)
}
