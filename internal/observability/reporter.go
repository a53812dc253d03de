package observability

import (
	"github.com/rs/zerolog"
)

// CommandReporter feeds command attempts into the log and the command
// counters. It satisfies the command channel's Reporter contract; the
// channel shields itself from reporter failures, so nothing here may
// influence protocol behavior.
type CommandReporter struct {
	Logger zerolog.Logger
}

func (r CommandReporter) Command(cmd string, outcome string, err error) {
	RecordCommand(outcome)

	event := r.Logger.Debug()
	if err != nil {
		event = r.Logger.Warn().Err(err)
	}
	event.Str("command", cmd).Str("outcome", outcome).Msg("command attempt")
}
