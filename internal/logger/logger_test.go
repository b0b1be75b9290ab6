package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel_Constants(t *testing.T) {
	assert.Equal(t, 0, int(DEBUG))
	assert.Equal(t, 1, int(INFO))
	assert.Equal(t, 2, int(WARN))
	assert.Equal(t, 3, int(ERROR))

	assert.True(t, DEBUG < INFO)
	assert.True(t, INFO < WARN)
	assert.True(t, WARN < ERROR)
}

func TestNew(t *testing.T) {
	for _, level := range []LogLevel{DEBUG, INFO, WARN, ERROR} {
		l := New(level)
		assert.NotNil(t, l)
		assert.Equal(t, level, l.level)
		assert.NotNil(t, l.logger)
	}
}

func TestSetLevel(t *testing.T) {
	original := defaultLogger.level
	defer func() { defaultLogger.level = original }()

	SetLevel(DEBUG)
	assert.Equal(t, DEBUG, Level())

	SetLevel(ERROR)
	assert.Equal(t, ERROR, Level())
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN)
	l.logger = log.New(&buf, "", 0)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[ERROR]")
}

func TestLogger_MessageFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG)
	l.logger = log.New(&buf, "", 0)

	l.Info("test message")
	assert.Contains(t, buf.String(), "[INFO] test message")

	buf.Reset()
	l.Error("error %d: %s", 404, "not found")
	assert.Contains(t, buf.String(), "[ERROR] error 404: not found")

	buf.Reset()
	l.Warn("simple warning")
	assert.Contains(t, buf.String(), "[WARN] simple warning")
}
