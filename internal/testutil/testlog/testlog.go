package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
