package cmd

import (
	"fmt"
	"sort"

	"github.com/umbracle/flight-relay/internal/server"
)

// HealthCommand is the command to show the state of a running relay
type HealthCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *HealthCommand) Help() string {
	return `Usage: flight-relay health [--address]

  Show the sync state of the relay and of its routines.`
}

// Synopsis implements the cli.Command interface
func (c *HealthCommand) Synopsis() string {
	return "Show the state of the relay"
}

// Run implements the cli.Command interface
func (c *HealthCommand) Run(args []string) int {
	flags := c.FlagSet("health")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	health, err := c.Client().Health()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatHealth(health))
	return 0
}

func formatHealth(health *server.Health) string {
	rows := []string{
		fmt.Sprintf("Ready|%t", health.Ready),
		fmt.Sprintf("Next block|%d", health.NextBlock),
		fmt.Sprintf("Oracles registered|%t", health.OraclesFrozen),
	}

	names := make([]string, 0, len(health.Routines))
	for name := range health.Routines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, fmt.Sprintf("Routine %s|%s", name, health.Routines[name]))
	}
	return formatKV(rows)
}
