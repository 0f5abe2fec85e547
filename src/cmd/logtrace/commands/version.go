// FILE: logtrace/src/cmd/logtrace/commands/version.go
package commands

import (
	"fmt"

	"logtrace/src/internal/version"
)

// VersionCommand handles version display
type VersionCommand struct{}

func NewVersionCommand() *VersionCommand {
	return &VersionCommand{}
}

func (c *VersionCommand) Execute(args []string) error {
	fmt.Println(version.String())
	return nil
}

func (c *VersionCommand) Description() string {
	return "Show version information"
}

func (c *VersionCommand) Help() string {
	return `Version Command - Show LogTrace version information

Usage:
  logtrace version
  logtrace -v
  logtrace --version

Output includes:
  - Version number
  - Git commit hash
  - Build date
  - Build mode (debug builds trace without enabled_in_release)
`
}
