package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger derives a component logger from the process logger configured
// by internal/logging.
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
