package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetupTo(&buf, "warn", "json")
	defer SetupTo(&bytes.Buffer{}, "info", "text")

	logrus.Info("hidden")
	logrus.Warn("[Test] shown")

	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"[Test] shown"`)
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	SetupTo(&bytes.Buffer{}, "chatty", "text")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
