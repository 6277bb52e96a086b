package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(config.LogConfig{Level: "warn", Format: "JSON"}, &buf)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("dropped")
	log.WithField("resource", "tips").Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "tips", entry["resource"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	log := newWithOutput(config.LogConfig{Level: "chatty"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestGormLoggerWritesThroughLogrus(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(config.LogConfig{Level: "debug"}, &buf)
	Gorm(log).Warn(t.Context(), "slow %s", "query")
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "component=gorm")
}
