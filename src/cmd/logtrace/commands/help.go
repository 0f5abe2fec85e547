// FILE: logtrace/src/cmd/logtrace/commands/help.go
package commands

import (
	"fmt"
	"sort"
	"strings"
)

const generalHelpTemplate = `LogTrace: live, deduplicated streaming of the system log store.

Usage:
  logtrace [command] [options]
  logtrace [options]

Commands:
%s

Application Options:
  -c, --config <path>        Path to configuration file (default: ~/.config/logtrace.toml)
  -h, --help                 Display this help message and exit
  -v, --version              Display version information and exit
  -q, --quiet                Suppress all console output, including errors

Logging Options:
  --log-level <level>        debug, info, warn, error
  --log-output <mode>        file, stdout, stderr, split, all, none
  --log-console <target>     stdout, stderr, split
  --log-dir <path>           Directory for file logging

Runtime Options:
  --disable-status-reporter  Disable the periodic status reporter

Any configuration key can be set with a dotted flag, for example:
  --pipelines.0.trace.subsystem=sshd --pipelines.0.trace.minimum_level=error

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - Environment variables use the LOGTRACE_ prefix (LOGTRACE_LOGGING_LEVEL=debug)
  - LOGTRACE_CONFIG_FILE and LOGTRACE_CONFIG_DIR locate the TOML file

Signals:
  SIGINT, SIGTERM   Graceful shutdown
  SIGUSR1           Log a status report

Examples:
  # Stream errors from sshd to the console
  logtrace --pipelines.0.trace.subsystem=sshd --pipelines.0.trace.minimum_level=error

  # Run with a custom config and debug logging
  logtrace -c /etc/logtrace/logtrace.toml --log-level debug

  # Verify journal access before deploying
  logtrace check --scope system

  # Follow only sshd faults from an HTTP sink
  curl -N 'http://localhost:8080/stream?min_level=fault&source=sshd'
`

// HelpCommand displays general or command-specific help.
type HelpCommand struct {
	router *CommandRouter
}

func NewHelpCommand(router *CommandRouter) *HelpCommand {
	return &HelpCommand{router: router}
}

func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]

		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Print(handler.Help())
			return nil
		}

		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf(generalHelpTemplate, c.formatCommandList())
	return nil
}

func (c *HelpCommand) Description() string {
	return "Display help information"
}

func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  logtrace help              Show general help
  logtrace help <command>    Show help for a specific command

Examples:
  logtrace help auth         # Show auth command help
  logtrace auth --help       # Alternative way to get command help
`
}

// formatCommandList returns the aligned, sorted command list
func (c *HelpCommand) formatCommandList() string {
	commands := c.router.GetCommands()

	names := make([]string, 0, len(commands))
	maxLen := 0
	for name := range commands {
		names = append(names, name)
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		padding := strings.Repeat(" ", maxLen-len(name)+2)
		lines = append(lines, fmt.Sprintf("  %s%s%s", name, padding, commands[name].Description()))
	}

	return strings.Join(lines, "\n")
}
