package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger()
	require.NotNil(t, logger)
}

func TestWithCircuit(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithCircuit(base, "browser-workflow")
	logger.Info("probe allowed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "browser-workflow", entry["circuit"])
}

func TestWithCircuit_EmptyName(t *testing.T) {
	base := slog.Default()
	assert.Same(t, base, WithCircuit(base, ""))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithFields(base, map[string]interface{}{
		"instance_id": "abc",
		"usage_count": 3,
	})
	logger.Info("released")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["instance_id"])
	assert.Equal(t, float64(3), entry["usage_count"])
}

func TestLoggerContext(t *testing.T) {
	logger := NewTextLogger()
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
