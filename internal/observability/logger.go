package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/eswifictl/internal/logging"
)

// InitLogger resolves the runtime logging configuration (env overrides
// included), tags the process logger with the app name, and installs it as
// the global one used by the driver packages. The tag is layered onto the
// configured logger rather than replacing it, so the resolved writer
// settings stay in effect.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := withApp(log.Logger, app)
	log.Logger = logger
	return logger
}

func withApp(base zerolog.Logger, app string) zerolog.Logger {
	return base.With().Str("app", app).Logger()
}
