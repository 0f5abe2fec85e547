// FILE: logtrace/src/cmd/logtrace/commands/router.go
package commands

import (
	"fmt"
)

// Handler defines the interface required for all subcommands.
type Handler interface {
	Execute(args []string) error
	Description() string
	Help() string
}

// CommandRouter routes CLI arguments to a subcommand handler.
type CommandRouter struct {
	commands map[string]Handler
}

// NewCommandRouter creates the router with all available commands.
func NewCommandRouter() *CommandRouter {
	router := &CommandRouter{
		commands: make(map[string]Handler),
	}

	router.commands["auth"] = NewAuthCommand()
	router.commands["check"] = NewCheckCommand()
	router.commands["version"] = NewVersionCommand()
	router.commands["help"] = NewHelpCommand(router)

	return router
}

// Route executes a subcommand if args name one. It reports false when the
// main application should continue with args as flags.
func (r *CommandRouter) Route(args []string) (bool, error) {
	if len(args) < 2 {
		return false, nil
	}

	cmdName := args[1]

	// Help flag at any position shows help
	for _, arg := range args[1:] {
		if arg == "-h" || arg == "--help" {
			if handler, exists := r.commands[cmdName]; exists && cmdName != "help" {
				fmt.Print(handler.Help())
				return true, nil
			}
			return true, r.commands["help"].Execute(nil)
		}
	}

	handler, exists := r.commands[cmdName]
	if !exists {
		if cmdName != "" && cmdName[0] != '-' {
			return false, fmt.Errorf("unknown command: %s\n\nRun 'logtrace help' for usage", cmdName)
		}
		return false, nil
	}

	return true, handler.Execute(args[2:])
}

// GetCommand returns a command handler by its name.
func (r *CommandRouter) GetCommand(name string) (Handler, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommands returns all registered commands.
func (r *CommandRouter) GetCommands() map[string]Handler {
	return r.commands
}
