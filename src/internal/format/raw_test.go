// FILE: logtrace/src/internal/format/raw_test.go
package format

import (
	"encoding/json"
	"testing"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFormatter_Format(t *testing.T) {
	logger := newTestLogger()
	formatter, err := NewRawFormatter(nil, logger)
	require.NoError(t, err)

	entry := core.LogEntry{
		Time:    time.Now(),
		Message: "This is a raw log line.",
	}

	output, err := formatter.Format(entry)
	require.NoError(t, err)

	expected := "This is a raw log line.\n"
	assert.Equal(t, expected, string(output))
}

func TestRawFormatter_AddFields(t *testing.T) {
	formatter, err := NewRawFormatter(&config.RawFormatterOptions{AddFields: true}, newTestLogger())
	require.NoError(t, err)

	output, err := formatter.Format(core.LogEntry{
		Message: "unit started",
		Fields:  json.RawMessage(`{"pid":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "unit started {\"pid\":1}\n", string(output))

	output, err = formatter.Format(core.LogEntry{Message: "no fields"})
	require.NoError(t, err)
	assert.Equal(t, "no fields\n", string(output))
}
