package cmd

import (
	"fmt"
	"time"

	"github.com/umbracle/flight-relay/internal/server/structs"
)

// FlightsListCommand is the command to list the registered flights
type FlightsListCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *FlightsListCommand) Help() string {
	return `Usage: flight-relay flights list [--address]

  List the flights registered in the ledger.`
}

// Synopsis implements the cli.Command interface
func (c *FlightsListCommand) Synopsis() string {
	return "List the registered flights"
}

// Run implements the cli.Command interface
func (c *FlightsListCommand) Run(args []string) int {
	flags := c.FlagSet("flights list")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	flights, err := c.Client().Flights()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatFlights(flights))
	return 0
}

func formatFlights(flights []*structs.Flight) string {
	if len(flights) == 0 {
		return "No flights found"
	}

	rows := make([]string, len(flights)+1)
	rows[0] = "Airline|Flight|Timestamp|Registered"
	for i, f := range flights {
		rows[i+1] = fmt.Sprintf("%s|%s|%s|%t",
			f.Airline,
			f.Flight,
			formatTimestamp(f.Timestamp),
			f.IsRegistered)
	}
	return formatList(rows)
}

func formatTimestamp(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
