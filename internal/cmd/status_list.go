package cmd

import (
	"fmt"

	"github.com/umbracle/flight-relay/internal/server/structs"
)

// StatusListCommand is the command to list the flight status reports
type StatusListCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *StatusListCommand) Help() string {
	return `Usage: flight-relay status list [--address]

  List the flight status reports agreed by the oracles.`
}

// Synopsis implements the cli.Command interface
func (c *StatusListCommand) Synopsis() string {
	return "List the flight status reports"
}

// Run implements the cli.Command interface
func (c *StatusListCommand) Run(args []string) int {
	flags := c.FlagSet("status list")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	statuses, err := c.Client().FlightStatuses()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatStatuses(statuses))
	return 0
}

func formatStatuses(statuses []*structs.FlightStatus) string {
	if len(statuses) == 0 {
		return "No flight status found"
	}

	rows := make([]string, len(statuses)+1)
	rows[0] = "Airline|Flight|Timestamp|Status"
	for i, s := range statuses {
		rows[i+1] = fmt.Sprintf("%s|%s|%s|%s",
			s.Airline,
			s.Flight,
			formatTimestamp(s.Timestamp),
			s.Status)
	}
	return formatList(rows)
}
