package cmd

import (
	"fmt"
	"math/big"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// BalanceCommand is the command to show the balance of the app contract
type BalanceCommand struct {
	*Meta
}

// Help implements the cli.Command interface
func (c *BalanceCommand) Help() string {
	return `Usage: flight-relay balance [--address]

  Show the balance of the app contract.`
}

// Synopsis implements the cli.Command interface
func (c *BalanceCommand) Synopsis() string {
	return "Show the balance of the app contract"
}

// Run implements the cli.Command interface
func (c *BalanceCommand) Run(args []string) int {
	flags := c.FlagSet("balance")
	if err := flags.Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	balance, err := c.Client().ContractBalance()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(formatBalance(balance))
	return 0
}

func formatBalance(balance *structs.ContractBalance) string {
	if balance.Amount == nil {
		return "Balance not known yet"
	}
	ether := new(big.Float).Quo(new(big.Float).SetInt(balance.Amount), new(big.Float).SetInt(ethgo.Ether(1)))

	return formatKV([]string{
		fmt.Sprintf("Wei|%s", balance.Amount),
		fmt.Sprintf("Ether|%s", ether.Text('f', 6)),
	})
}
