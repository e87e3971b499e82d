package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/omafgen/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("formatter follows format", func(t *testing.T) {
		jsonLog, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.IsType(t, &logrus.JSONFormatter{}, jsonLog.Formatter)
		assert.Equal(t, logrus.InfoLevel, jsonLog.Level)

		textLog, err := New(&config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
		require.NoError(t, err)
		assert.IsType(t, &logrus.TextFormatter{}, textLog.Formatter)
		assert.Equal(t, logrus.DebugLevel, textLog.Level)
		assert.Equal(t, os.Stderr, textLog.Out)
	})

	t.Run("bad level", func(t *testing.T) {
		log, err := New(&config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"})
		assert.Error(t, err)
		assert.Nil(t, log)
	})

	t.Run("json keys", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		log.SetOutput(&buf)

		log.WithField("qp", 32).Info("encoding")
		assert.Contains(t, buf.String(), `"msg":"encoding"`)
		assert.Contains(t, buf.String(), `"ts":`)
		assert.Contains(t, buf.String(), `"qp":32`)
	})
}

func TestNewRotatedFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "omafgen.log")

	log, err := New(&config.LoggingConfig{
		Level:      "warn",
		Format:     "text",
		Output:     logFile,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.Level)

	log.Info("dropped below warn")
	log.Warn("tile 12 has no frames")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tile 12 has no frames")
	assert.NotContains(t, string(data), "dropped below warn")
}

func TestForRun(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	ForRun(l, "run-42").Info("started")

	output := buf.String()
	assert.Contains(t, output, `"service":"omafgen"`)
	assert.Contains(t, output, `"run_id":"run-42"`)
	assert.Contains(t, output, `"version"`)
}

func TestWithComponent(t *testing.T) {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})

	entry := WithComponent(l, "status-server")
	assert.Equal(t, "status-server", entry.Data["component"])
}
