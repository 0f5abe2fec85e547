// FILE: logtrace/src/cmd/logtrace/commands/router_test.go
package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandRouter_Route(t *testing.T) {
	r := NewCommandRouter()

	testCases := []struct {
		name        string
		args        []string
		wantHandled bool
		wantErr     bool
	}{
		{"NoArgs", []string{"logtrace"}, false, false},
		{"FlagsOnly", []string{"logtrace", "--log-level", "debug"}, false, false},
		{"DottedOverride", []string{"logtrace", "--pipelines.0.trace.subsystem=sshd"}, false, false},
		{"Version", []string{"logtrace", "version"}, true, false},
		{"Help", []string{"logtrace", "help"}, true, false},
		{"HelpForCommand", []string{"logtrace", "help", "auth"}, true, false},
		{"HelpUnknownCommand", []string{"logtrace", "help", "tls"}, true, true},
		{"CommandHelpFlag", []string{"logtrace", "auth", "--help"}, true, false},
		{"UnknownCommand", []string{"logtrace", "serve"}, false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handled, err := r.Route(tc.args)
			assert.Equal(t, tc.wantHandled, handled)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHelpCommand_ListsCommands(t *testing.T) {
	h := NewHelpCommand(NewCommandRouter())
	list := h.formatCommandList()
	assert.Contains(t, list, "auth")
	assert.Contains(t, list, "version")
	assert.Contains(t, list, "check")
	assert.Contains(t, list, "help")
}
