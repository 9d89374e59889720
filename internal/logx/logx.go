// Package logx configures the process-wide zerolog logger.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const Production = "production"

// Init sets up the global logger: JSON at info level in production, a
// console writer at debug level everywhere else.
func Init(environment, service string) {
	InitWriter(environment, service, os.Stderr)
}

// InitWriter is Init with an explicit output.
func InitWriter(environment, service string, w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == Production {
		log.Logger = zerolog.New(w).With().Timestamp().Str("service", service).Logger().Level(zerolog.InfoLevel)
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
		With().Timestamp().Caller().Str("service", service).Logger().
		Level(zerolog.DebugLevel)
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }

func Fatal() *zerolog.Event { return log.Fatal() }
