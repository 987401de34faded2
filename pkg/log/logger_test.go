package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fasderrors "github.com/YuminosukeSato/fastasd/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug).With(RunIDKey, "run-1", ModeKey, "optimize")

	logger.Info("Iteration completed",
		IterationKey, 3,
		SqErrKey, 0.25,
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "Iteration completed", e["message"])
	assert.Equal(t, "run-1", e[RunIDKey])
	assert.Equal(t, "optimize", e[ModeKey])
	assert.InDelta(t, 3.0, e[IterationKey], 0)
	assert.InDelta(t, 0.25, e[SqErrKey], 1e-12)
}

func TestZerologLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelWarn)
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelError))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("visible")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["message"])
}

func TestZerologLoggerErrorStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	err := fasderrors.NewConfigurationError("fourier.Build", "condThreshold", "no frequencies retained")
	logger.Error("Inference failed", err, IterationKey, 2)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0]["error"], "no frequencies retained")
	assert.NotEmpty(t, entries[0][StacktraceKey])
	assert.InDelta(t, 2.0, entries[0][IterationKey], 0)
}

func TestSetupLoggerRoutesWarnings(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)
	defer fasderrors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, "debug"))

	fasderrors.Warn(fasderrors.NewConvergenceWarning("lbfgs", 10, "iteration limit"))
	GetLoggerWithName("latent").Info("named")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "ConvergenceWarning", entries[0]["type"])
	assert.Equal(t, "latent", entries[1][ComponentKey])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.True(t, fasderrors.IsConfigurationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTestLoggerCapturesError(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	logger.With(ComponentKey, "hyper").Error("update failed", fasderrors.New("boom"), IterationKey, 5)

	assert.True(t, logger.ContainsMessage("update failed"))
	assert.True(t, logger.ContainsField("error", "boom"))
	assert.True(t, logger.ContainsField(ComponentKey, "hyper"))
	assert.True(t, logger.ContainsField(IterationKey, 5.0))
}
