package corelog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestWriterStripsTrailingNewlineAndLogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	w := NewWriter(base, "engine")
	n, err := w.Write([]byte("engine: node started\n"))
	require.NoError(t, err)
	require.Equal(t, len("engine: node started\n"), n)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "engine: node started", decoded["msg"])
	require.Equal(t, "engine", decoded["component"])
	require.Equal(t, "info", decoded["level"])
}

func TestNewStdLoggerWritesThroughLogrus(t *testing.T) {
	logger := NewStdLogger("session", false, logrus.InfoLevel)
	require.NotNil(t, logger)
	require.NotPanics(t, func() {
		logger.Printf("session started")
	})
}
