// FILE: logtrace/src/internal/format/text_test.go
package format

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextFormatter(t *testing.T) {
	logger := newTestLogger()
	t.Run("InvalidTemplate", func(t *testing.T) {
		options := &config.TextFormatterOptions{Template: "{{ .Timestamp | InvalidFunc }}"}
		_, err := NewTextFormatter(options, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid template")
	})
}

func TestTextFormatter_Format(t *testing.T) {
	logger := newTestLogger()
	testTime := time.Date(2023, 10, 27, 10, 30, 0, 0, time.UTC)
	entry := core.LogEntry{
		Time:    testTime,
		Source:  "sshd",
		Level:   "error",
		Message: "authentication failure",
	}

	t.Run("DefaultTemplate", func(t *testing.T) {
		formatter, err := NewTextFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(entry)
		require.NoError(t, err)

		expected := fmt.Sprintf("[%s] [ERROR] sshd - authentication failure\n", testTime.Format(time.RFC3339))
		assert.Equal(t, expected, string(output))
	})

	t.Run("CustomTemplate", func(t *testing.T) {
		options := &config.TextFormatterOptions{Template: "{{.Level | ToUpper}}:{{.Source}}:{{.Message}}"}
		formatter, err := NewTextFormatter(options, logger)
		require.NoError(t, err)

		output, err := formatter.Format(entry)
		require.NoError(t, err)

		expected := "ERROR:sshd:authentication failure\n"
		assert.Equal(t, expected, string(output))
	})

	t.Run("CustomTimestampFormat", func(t *testing.T) {
		options := &config.TextFormatterOptions{TimestampFormat: "2006-01-02"}
		formatter, err := NewTextFormatter(options, logger)
		require.NoError(t, err)

		output, err := formatter.Format(entry)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(string(output), "[2023-10-27]"))
	})

	t.Run("EmptyLevelDefaultsToInfo", func(t *testing.T) {
		emptyLevelEntry := entry
		emptyLevelEntry.Level = ""
		formatter, err := NewTextFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(emptyLevelEntry)
		require.NoError(t, err)

		assert.Contains(t, string(output), "[INFO]")
	})
}

func TestTextFormatter_Color(t *testing.T) {
	logger := newTestLogger()
	entry := core.LogEntry{
		Time:    time.Unix(0, 0).UTC(),
		Source:  "kernel",
		Level:   "fault",
		Message: "oops",
	}

	t.Run("AlwaysWrapsLine", func(t *testing.T) {
		base, err := NewTextFormatter(&config.TextFormatterOptions{Template: "{{.Message}}", Color: "always"}, logger)
		require.NoError(t, err)

		output, err := ForOutput(base, nil).Format(entry)
		require.NoError(t, err)
		assert.Equal(t, levelColors["fault"]+"oops"+colorReset+"\n", string(output))

		// The base formatter stays plain
		plain, err := base.Format(entry)
		require.NoError(t, err)
		assert.Equal(t, "oops\n", string(plain))
	})

	t.Run("NeverStaysPlain", func(t *testing.T) {
		base, err := NewTextFormatter(&config.TextFormatterOptions{Template: "{{.Message}}", Color: "never"}, logger)
		require.NoError(t, err)

		output, err := ForOutput(base, nil).Format(entry)
		require.NoError(t, err)
		assert.Equal(t, "oops\n", string(output))
	})

	t.Run("AutoWithoutTerminal", func(t *testing.T) {
		base, err := NewTextFormatter(&config.TextFormatterOptions{Template: "{{.Message}}"}, logger)
		require.NoError(t, err)

		assert.Same(t, Formatter(base), ForOutput(base, nil))
	})

	t.Run("NonTextUnchanged", func(t *testing.T) {
		raw, err := NewRawFormatter(nil, logger)
		require.NoError(t, err)
		assert.Same(t, Formatter(raw), ForOutput(raw, os.Stdout))
	})
}
