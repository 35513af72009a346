package cmd

import (
	"github.com/mitchellh/cli"
)

// VersionCommand is the command to show the version of the relay
type VersionCommand struct {
	UI cli.Ui
}

// Help implements the cli.Command interface
func (c *VersionCommand) Help() string {
	return "Usage: flight-relay version"
}

// Synopsis implements the cli.Command interface
func (c *VersionCommand) Synopsis() string {
	return "Show the version of the relay"
}

// Run implements the cli.Command interface
func (c *VersionCommand) Run(args []string) int {
	c.UI.Output(Version)
	return 0
}
