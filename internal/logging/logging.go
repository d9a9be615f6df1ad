package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger: console output in dev, JSON with
// timestamp and caller everywhere else.
func Init(service, env string) {
	zerolog.TimeFieldFormat = time.RFC3339

	// log.Ctx falls back to the global logger outside a request
	defer func() { zerolog.DefaultContextLogger = &log.Logger }()

	if env == "dev" || env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", service).
			Logger()
		return
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Str("env", env).
		Logger()
}
