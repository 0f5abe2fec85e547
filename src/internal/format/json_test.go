// FILE: logtrace/src/internal/format/json_test.go
package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeObject(t *testing.T, out []byte) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal(out, &obj), "output must be one JSON object: %s", out)
	return obj
}

func TestJSONFormatter_Format(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 15, 0, 250, time.UTC)
	base := core.LogEntry{Time: at, Source: "kernel", Level: "notice", Message: "usb 1-2: new device"}

	testCases := []struct {
		name    string
		opts    *config.JSONFormatterOptions
		message string
		check   func(t *testing.T, obj map[string]any, out string)
	}{
		{
			name: "StandardKeys",
			check: func(t *testing.T, obj map[string]any, out string) {
				assert.Equal(t, at.Format(time.RFC3339Nano), obj["timestamp"])
				assert.Equal(t, "notice", obj["level"])
				assert.Equal(t, "kernel", obj["source"])
				assert.Equal(t, "usb 1-2: new device", obj["message"])
				assert.Len(t, obj, 4)
			},
		},
		{
			name: "Pretty",
			opts: &config.JSONFormatterOptions{Pretty: true},
			check: func(t *testing.T, _ map[string]any, out string) {
				assert.Contains(t, out, "\n  \"source\": \"kernel\"")
			},
		},
		{
			name:    "ObjectMessageIsMerged",
			message: `{"vendor":"046d","product":"c52b"}`,
			check: func(t *testing.T, obj map[string]any, _ string) {
				assert.Equal(t, "046d", obj["vendor"])
				assert.Equal(t, "c52b", obj["product"])
				assert.NotContains(t, obj, "message")
			},
		},
		{
			name:    "MergedMessageCannotOverrideLevel",
			message: `{"level":"debug","timestamp":"yesterday","detail":"x"}`,
			check: func(t *testing.T, obj map[string]any, _ string) {
				assert.Equal(t, "notice", obj["level"])
				assert.Equal(t, at.Format(time.RFC3339Nano), obj["timestamp"])
				assert.Equal(t, "x", obj["detail"])
			},
		},
		{
			name:    "ArrayMessageStaysText",
			message: `[1,2,3]`,
			check: func(t *testing.T, obj map[string]any, _ string) {
				assert.Equal(t, "[1,2,3]", obj["message"])
			},
		},
		{
			name: "RenamedKeys",
			opts: &config.JSONFormatterOptions{TimestampField: "@timestamp", MessageField: "msg"},
			check: func(t *testing.T, obj map[string]any, _ string) {
				assert.NotContains(t, obj, "timestamp")
				assert.NotContains(t, obj, "message")
				assert.Equal(t, at.Format(time.RFC3339Nano), obj["@timestamp"])
				assert.Equal(t, "usb 1-2: new device", obj["msg"])
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewJSONFormatter(tc.opts, newTestLogger())
			require.NoError(t, err)

			entry := base
			if tc.message != "" {
				entry.Message = tc.message
			}
			out, err := f.Format(entry)
			require.NoError(t, err)
			require.True(t, strings.HasSuffix(string(out), "\n"))

			tc.check(t, decodeObject(t, out), string(out))
		})
	}
}

func TestJSONFormatter_FieldsDoNotOverride(t *testing.T) {
	formatter, err := NewJSONFormatter(nil, newTestLogger())
	require.NoError(t, err)

	entry := core.LogEntry{
		Time:    time.Unix(10, 0).UTC(),
		Source:  "networkd",
		Level:   "error",
		Message: "carrier lost",
		Fields:  json.RawMessage(`{"category":"link","pid":412,"level":"debug"}`),
	}

	output, err := formatter.Format(entry)
	require.NoError(t, err)

	result := decodeObject(t, output)
	assert.Equal(t, "link", result["category"])
	assert.Equal(t, float64(412), result["pid"])
	assert.Equal(t, "error", result["level"])
}

func TestJSONFormatter_NestedFields(t *testing.T) {
	formatter, err := NewJSONFormatter(&config.JSONFormatterOptions{FieldsKey: "journal"}, newTestLogger())
	require.NoError(t, err)

	output, err := formatter.Format(core.LogEntry{
		Time:    time.Unix(10, 0).UTC(),
		Source:  "sshd",
		Level:   "notice",
		Message: "Accepted publickey",
		Fields:  json.RawMessage(`{"process":"sshd","pid":77}`),
	})
	require.NoError(t, err)

	result := decodeObject(t, output)
	assert.NotContains(t, result, "process")
	assert.Equal(t, map[string]any{"process": "sshd", "pid": float64(77)}, result["journal"])
	assert.True(t, strings.HasPrefix(string(output), `{"timestamp":`), "standard keys lead the object")
}
