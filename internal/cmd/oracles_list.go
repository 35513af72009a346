package cmd

import (
	"fmt"
	"strings"

	"github.com/umbracle/flight-relay/internal/server/structs"
)

// OraclesListCommand is the command to list the simulated oracles
type OraclesListCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *OraclesListCommand) Help() string {
	return `Usage: flight-relay oracles list [--address]

  List the simulated oracles registered in the ledger and their indexes.`
}

// Synopsis implements the cli.Command interface
func (c *OraclesListCommand) Synopsis() string {
	return "List the simulated oracles"
}

// Run implements the cli.Command interface
func (c *OraclesListCommand) Run(args []string) int {
	flags := c.FlagSet("oracles list")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	oracles, err := c.Client().Oracles()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatOracles(oracles))
	return 0
}

func formatOracles(oracles []*structs.Oracle) string {
	if len(oracles) == 0 {
		return "No oracles found"
	}

	rows := make([]string, len(oracles)+1)
	rows[0] = "Address|Indexes"
	for i, o := range oracles {
		indexes := make([]string, len(o.Indexes))
		for j, index := range o.Indexes {
			indexes[j] = fmt.Sprintf("%d", index)
		}
		rows[i+1] = fmt.Sprintf("%s|%s", o.Address, strings.Join(indexes, ","))
	}
	return formatList(rows)
}
