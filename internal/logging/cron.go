package logging

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CronLogger adapts a zerolog logger to cron.Logger. Scheduler chatter goes
// to debug; job errors and skipped runs keep their weight.
func CronLogger(l zerolog.Logger) cron.Logger {
	return cronLogger{l: l.With().Str("component", "cron").Logger()}
}

type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
