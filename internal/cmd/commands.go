package cmd

import (
	"os"

	"github.com/mitchellh/cli"
	"github.com/ryanuber/columnize"
	flag "github.com/spf13/pflag"
	"github.com/umbracle/flight-relay/internal/client"
	"github.com/umbracle/flight-relay/internal/cmd/server"
)

// Version is the version of the relay, set at build time
var Version = "0.1.0-dev"

// Commands returns the cli commands
func Commands() map[string]cli.CommandFactory {
	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	meta := &Meta{
		UI: ui,
	}

	return map[string]cli.CommandFactory{
		"server": func() (cli.Command, error) {
			return &server.Command{
				UI: ui,
			}, nil
		},
		"airlines": func() (cli.Command, error) {
			return &GroupCommand{UI: ui, Name: "airlines", Desc: "Query the registered airlines"}, nil
		},
		"airlines list": func() (cli.Command, error) {
			return &AirlinesListCommand{Meta: meta}, nil
		},
		"flights": func() (cli.Command, error) {
			return &GroupCommand{UI: ui, Name: "flights", Desc: "Query the registered flights"}, nil
		},
		"flights list": func() (cli.Command, error) {
			return &FlightsListCommand{Meta: meta}, nil
		},
		"status": func() (cli.Command, error) {
			return &GroupCommand{UI: ui, Name: "status", Desc: "Query the flight status reports"}, nil
		},
		"status list": func() (cli.Command, error) {
			return &StatusListCommand{Meta: meta}, nil
		},
		"oracles": func() (cli.Command, error) {
			return &GroupCommand{UI: ui, Name: "oracles", Desc: "Query the simulated oracles"}, nil
		},
		"oracles list": func() (cli.Command, error) {
			return &OraclesListCommand{Meta: meta}, nil
		},
		"requests": func() (cli.Command, error) {
			return &GroupCommand{UI: ui, Name: "requests", Desc: "Query the answered oracle requests"}, nil
		},
		"requests list": func() (cli.Command, error) {
			return &RequestsListCommand{Meta: meta}, nil
		},
		"balance": func() (cli.Command, error) {
			return &BalanceCommand{Meta: meta}, nil
		},
		"health": func() (cli.Command, error) {
			return &HealthCommand{Meta: meta}, nil
		},
		"version": func() (cli.Command, error) {
			return &VersionCommand{UI: ui}, nil
		},
	}
}

// Meta is the shared state of the commands that query a running relay
type Meta struct {
	UI   cli.Ui
	addr string
}

func (m *Meta) FlagSet(n string) *flag.FlagSet {
	f := flag.NewFlagSet(n, flag.ContinueOnError)
	f.StringVar(&m.addr, "address", "localhost:3000", "Address of the relay http server")
	return f
}

// Client returns the http client of the relay
func (m *Meta) Client() *client.Client {
	return client.NewClient(m.addr)
}

// GroupCommand is the parent of a set of subcommands
type GroupCommand struct {
	UI   cli.Ui
	Name string
	Desc string
}

// Help implements the cli.Command interface
func (c *GroupCommand) Help() string {
	return "Usage: flight-relay " + c.Name + " <subcommand>\n\n  " + c.Desc
}

// Synopsis implements the cli.Command interface
func (c *GroupCommand) Synopsis() string {
	return c.Desc
}

// Run implements the cli.Command interface
func (c *GroupCommand) Run(args []string) int {
	return cli.RunResultHelp
}

func formatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	return columnize.Format(in, columnConf)
}

func formatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "
	return columnize.Format(in, columnConf)
}
