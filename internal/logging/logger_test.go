package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"WARNING", WarnLevel},
		{"warn", WarnLevel},
		{"Error", ErrorLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestJSONLogger_FiltersAndMergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Debug("dropped")
	child := logger.With(Rank(2), RunID("abc"))
	child.Info("relaxed", Iteration(3), Error(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var e entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "relaxed", e.Message)
	assert.Equal(t, float64(2), e.Fields["rank"])
	assert.Equal(t, "abc", e.Fields["run_id"])
	assert.Equal(t, float64(3), e.Fields["iteration"])
	assert.Equal(t, "boom", e.Fields["error"])
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	StartTimer(logger, "broadcast", Op("bcast")).End(Int("bytes", 12))

	var e entry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &e))
	assert.Equal(t, "DEBUG", e.Level)
	assert.Equal(t, "bcast", e.Fields["op"])
	assert.Contains(t, e.Fields, "latency")
}
