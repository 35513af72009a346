package cmd

import (
	"fmt"

	"github.com/umbracle/flight-relay/internal/server/structs"
)

// AirlinesListCommand is the command to list the registered airlines
type AirlinesListCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *AirlinesListCommand) Help() string {
	return `Usage: flight-relay airlines list [--address]

  List the airlines registered in the ledger.`
}

// Synopsis implements the cli.Command interface
func (c *AirlinesListCommand) Synopsis() string {
	return "List the registered airlines"
}

// Run implements the cli.Command interface
func (c *AirlinesListCommand) Run(args []string) int {
	flags := c.FlagSet("airlines list")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	airlines, err := c.Client().Airlines()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatAirlines(airlines))
	return 0
}

func formatAirlines(airlines []*structs.Airline) string {
	if len(airlines) == 0 {
		return "No airlines found"
	}

	rows := make([]string, len(airlines)+1)
	rows[0] = "Address|Name|Funded|Registered by|Counter"
	for i, a := range airlines {
		rows[i+1] = fmt.Sprintf("%s|%s|%t|%s|%d",
			a.AirlineAddress,
			a.AirlineName,
			a.IsFunded,
			a.RegisteredBy,
			a.AirlinesCounter)
	}
	return formatList(rows)
}
