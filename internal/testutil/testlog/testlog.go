package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/ipcmsg/internal/logging"
)

// Start configures logging for a test run and records which test is
// executing.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("start")
}
