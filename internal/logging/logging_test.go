package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("development", &buf)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	logger.Debug().Str("bus_id", "B1").Msg("resolved trips")
	assert.Contains(t, buf.String(), "resolved trips")
	assert.Contains(t, buf.String(), "bus_id=B1")

	buf.Reset()
	logger = SetupWithWriter("production", &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
