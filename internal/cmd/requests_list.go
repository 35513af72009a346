package cmd

import (
	"fmt"

	"github.com/umbracle/flight-relay/internal/server/structs"
	"github.com/umbracle/flight-relay/internal/uuid"
)

// RequestsListCommand is the command to list the answered oracle requests
type RequestsListCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *RequestsListCommand) Help() string {
	return `Usage: flight-relay requests list [--address]

  List the oracle requests answered by the relay and the outcome
  of the submitted responses.`
}

// Synopsis implements the cli.Command interface
func (c *RequestsListCommand) Synopsis() string {
	return "List the answered oracle requests"
}

// Run implements the cli.Command interface
func (c *RequestsListCommand) Run(args []string) int {
	flags := c.FlagSet("requests list")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	reports, err := c.Client().Requests()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatRequests(reports))
	return 0
}

func formatRequests(reports []*structs.FanoutReport) string {
	if len(reports) == 0 {
		return "No requests found"
	}

	rows := make([]string, len(reports)+1)
	rows[0] = "ID|Index|Flight|Submitted|Rejected|Transport errors|Duration"
	for i, r := range reports {
		rows[i+1] = fmt.Sprintf("%s|%d|%s|%s|%d|%d|%s",
			uuid.Short(r.ID),
			r.Request.Index,
			r.Request.Flight,
			r.Summary(),
			r.Rejected,
			r.TransportErrors,
			r.FinishedAt.Sub(r.StartedAt))
	}
	return formatList(rows)
}
