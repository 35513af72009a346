package server

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/google/gops/agent"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server"
	"github.com/umbracle/flight-relay/internal/server/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Command is the command that starts the agent
type Command struct {
	UI     cli.Ui
	client *server.Server
	http   *httpServer

	tracerProvider *sdktrace.TracerProvider
}

// Help implements the cli.Command interface
func (c *Command) Help() string {
	return `Usage: flight-relay server [options]

  Run the relay: register the simulated oracles, answer the oracle
  requests and serve the ledger projections over http.

Options:

  --config             Path of an hcl configuration file
  --network            Network of the networks file (default localhost)
  --networks-file      Yaml file with the url and contract addresses per network
  --endpoint           Jsonrpc endpoint of the ledger
  --app-addr           Address of the FlightSuretyApp contract
  --data-addr          Address of the FlightSuretyData contract
  --http-addr          Address of the query surface (default localhost:3000)
  --data-dir           Directory for the projection checkpoints
  --log-level          Log level (default INFO)
  --otel-endpoint      Endpoint of the otlp trace collector
  --debug              Start the gops agent`
}

// Synopsis implements the cli.Command interface
func (c *Command) Synopsis() string {
	return "Run the relay"
}

// Run implements the cli.Command interface
func (c *Command) Run(args []string) int {
	config, err := c.readConfig(args)
	if err != nil {
		c.UI.Output(fmt.Sprintf("failed to read config: %v", err))
		return 1
	}

	if config.Debug {
		if err := agent.Listen(agent.Options{}); err != nil {
			c.UI.Output(fmt.Sprintf("failed to start gops debugger: %v", err))
			return 1
		}
	}

	relayConfig, err := buildRelayConfig(config)
	if err != nil {
		c.UI.Output(fmt.Sprintf("failed to build relay config: %v", err))
		return 1
	}

	if err := setupTelemetry(); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "flight-relay",
		Level: hclog.LevelFromString(config.LogLevel),
	})

	if config.OtelEndpoint != "" {
		provider, err := setupTracing(config.OtelEndpoint)
		if err != nil {
			c.UI.Output(fmt.Sprintf("failed to start tracing: %v", err))
			return 1
		}
		c.tracerProvider = provider
	}

	// start http server
	c.http = &httpServer{
		addr:   config.TelemetryAddr,
		logger: logger.Named("telemetry"),
	}
	c.http.start()

	client, err := server.NewServer(logger, relayConfig)
	if err != nil {
		c.UI.Output(fmt.Sprintf("failed to start relay: %v", err))
		return 1
	}
	c.client = client

	c.client.Run()

	return c.handleSignals()
}

func setupTelemetry() error {
	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)

	promSink, err := prometheus.NewPrometheusSink()
	if err != nil {
		return err
	}

	metricsConf := metrics.DefaultConfig("flight-relay")
	metricsConf.EnableHostname = false

	_, err = metrics.NewGlobal(metricsConf, metrics.FanoutSink{
		inm, promSink,
	})
	return err
}

func setupTracing(endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("flight-relay"),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider, nil
}

func (c *Command) handleSignals() int {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-signalCh

	c.UI.Output(fmt.Sprintf("Caught signal: %v", sig))
	c.UI.Output("Gracefully shutting down agent...")

	gracefulCh := make(chan struct{})
	go func() {
		c.client.Stop()
		c.http.stop()
		if c.tracerProvider != nil {
			c.tracerProvider.Shutdown(context.Background())
		}
		close(gracefulCh)
	}()

	select {
	case <-signalCh:
		return 1
	case <-time.After(10 * time.Second):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func buildRelayConfig(c *Config) (*server.Config, error) {
	cc := server.DefaultConfig()

	if c.NetworksFile != "" {
		networks, err := loadNetworks(c.NetworksFile)
		if err != nil {
			return nil, err
		}
		network, ok := networks[c.Network]
		if !ok {
			return nil, fmt.Errorf("network '%s' not found in %s", c.Network, c.NetworksFile)
		}
		cc.Endpoint = network.URL
		if err := parseAddress(network.AppAddress, &cc.AppAddress); err != nil {
			return nil, err
		}
		if err := parseAddress(network.DataAddress, &cc.DataAddress); err != nil {
			return nil, err
		}
	}

	if c.Endpoint != "" {
		cc.Endpoint = c.Endpoint
	}
	if c.AppAddress != "" {
		if err := parseAddress(c.AppAddress, &cc.AppAddress); err != nil {
			return nil, err
		}
	}
	if c.DataAddress != "" {
		if err := parseAddress(c.DataAddress, &cc.DataAddress); err != nil {
			return nil, err
		}
	}

	cc.HttpAddr = c.HttpAddr
	cc.DataDir = c.DataDir

	if o := c.Oracles; o != nil {
		if o.Count < 0 || o.Gas < 0 || o.GasPrice < 0 {
			return nil, fmt.Errorf("oracles config values cannot be negative")
		}
		cc.OracleCount = uint64(o.Count)
		cc.Gas = uint64(o.Gas)
		cc.GasPrice = uint64(o.GasPrice)
		cc.RegistrationMode = server.RegistrationMode(o.RegistrationMode)
		cc.Broadcast = o.Broadcast
		cc.ReplayRequests = o.ReplayRequests

		fee, ok := new(big.Int).SetString(o.RegistrationFee, 10)
		if !ok {
			return nil, fmt.Errorf("failed to parse registration fee '%s'", o.RegistrationFee)
		}
		cc.RegistrationFee = fee

		timeout, err := time.ParseDuration(o.ReceiptTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse receipt timeout: %v", err)
		}
		cc.ReceiptTimeout = timeout
	}

	if t := c.Tracker; t != nil {
		if t.StartBlock < 0 || t.BatchSize < 0 {
			return nil, fmt.Errorf("tracker config values cannot be negative")
		}
		cc.StartBlock = uint64(t.StartBlock)
		cc.BatchSize = uint64(t.BatchSize)

		interval, err := time.ParseDuration(t.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to parse poll interval: %v", err)
		}
		cc.PollInterval = interval
	}

	if p := c.Projections; p != nil {
		cc.Policies = &state.Policies{
			Airlines:     state.Policy(p.Airlines),
			Flights:      state.Policy(p.Flights),
			FlightStatus: state.Policy(p.FlightStatus),
		}
	}

	if err := cc.Validate(); err != nil {
		return nil, err
	}
	return cc, nil
}

func parseAddress(str string, addr *ethgo.Address) error {
	if err := addr.UnmarshalText([]byte(str)); err != nil {
		return fmt.Errorf("failed to parse address '%s': %v", str, err)
	}
	return nil
}

func (c *Command) readConfig(args []string) (*Config, error) {
	var configFilePath string

	cliConfig := &Config{
		Oracles: &OraclesConfig{},
		Tracker: &TrackerConfig{},
	}

	flags := flag.NewFlagSet("agent", flag.ContinueOnError)
	flags.Usage = func() { c.UI.Error(c.Help()) }

	flags.StringVar(&configFilePath, "config", "", "")
	flags.StringVar(&cliConfig.LogLevel, "log-level", "", "")
	flags.StringVar(&cliConfig.DataDir, "data-dir", "", "")
	flags.BoolVar(&cliConfig.Debug, "debug", false, "")
	flags.StringVar(&cliConfig.Network, "network", "", "")
	flags.StringVar(&cliConfig.NetworksFile, "networks-file", "", "")
	flags.StringVar(&cliConfig.Endpoint, "endpoint", "", "")
	flags.StringVar(&cliConfig.AppAddress, "app-addr", "", "")
	flags.StringVar(&cliConfig.DataAddress, "data-addr", "", "")
	flags.StringVar(&cliConfig.HttpAddr, "http-addr", "", "")
	flags.StringVar(&cliConfig.TelemetryAddr, "telemetry-addr", "", "")
	flags.StringVar(&cliConfig.OtelEndpoint, "otel-endpoint", "", "")
	flags.IntVar(&cliConfig.Oracles.Count, "oracles", 0, "")
	flags.StringVar(&cliConfig.Oracles.RegistrationMode, "registration-mode", "", "")
	flags.BoolVar(&cliConfig.Oracles.Broadcast, "broadcast", false, "")
	flags.BoolVar(&cliConfig.Oracles.ReplayRequests, "replay-requests", false, "")
	flags.IntVar(&cliConfig.Tracker.StartBlock, "start-block", 0, "")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if configFilePath != "" {
		configFile, err := loadConfig(configFilePath)
		if err != nil {
			return nil, err
		}
		if err := config.Merge(configFile); err != nil {
			return nil, err
		}
	}
	if err := config.Merge(cliConfig); err != nil {
		return nil, err
	}
	return config, nil
}
