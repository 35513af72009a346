package server

import (
	"fmt"
	"io/ioutil"

	"github.com/hashicorp/hcl"
	"github.com/imdario/mergo"
	"gopkg.in/yaml.v2"
)

// Config is the agent configuration
type Config struct {
	// Network is the entry of the networks file to use
	Network string `hcl:"network"`

	// NetworksFile is the yaml file with the endpoint and the
	// contract addresses of each network
	NetworksFile string `hcl:"networks_file"`

	// Endpoint is the jsonrpc endpoint of the ledger. It overrides
	// the one of the network
	Endpoint string `hcl:"endpoint"`

	AppAddress  string `hcl:"app_addr"`
	DataAddress string `hcl:"data_addr"`

	// LogLevel is used to set the log level.
	LogLevel string `hcl:"log_level"`

	// Debug enables debug mode
	Debug bool `hcl:"debug"`

	// DataDir is the store data dir
	DataDir string `hcl:"data_dir"`

	// HttpAddr is the address of the query surface
	HttpAddr string `hcl:"http_addr"`

	// TelemetryAddr is the address of the metrics server
	TelemetryAddr string `hcl:"telemetry_addr"`

	// OtelEndpoint is the endpoint of the otlp trace collector
	OtelEndpoint string `hcl:"otel_endpoint"`

	Oracles *OraclesConfig `hcl:"oracles"`

	Tracker *TrackerConfig `hcl:"tracker"`

	Projections *ProjectionsConfig `hcl:"projections"`
}

// OraclesConfig is the configuration of the simulated oracles
type OraclesConfig struct {
	Count            int    `hcl:"count"`
	RegistrationFee  string `hcl:"registration_fee"`
	Gas              int    `hcl:"gas"`
	GasPrice         int    `hcl:"gas_price"`
	RegistrationMode string `hcl:"registration_mode"`
	Broadcast        bool   `hcl:"broadcast"`
	ReplayRequests   bool   `hcl:"replay_requests"`
	ReceiptTimeout   string `hcl:"receipt_timeout"`
}

// TrackerConfig is the configuration of the ledger log tracker
type TrackerConfig struct {
	StartBlock   int    `hcl:"start_block"`
	BatchSize    int    `hcl:"batch_size"`
	PollInterval string `hcl:"poll_interval"`
}

// ProjectionsConfig is the fold policy of each projection
type ProjectionsConfig struct {
	Airlines     string `hcl:"airlines"`
	Flights      string `hcl:"flights"`
	FlightStatus string `hcl:"flights_status"`
}

// DefaultConfig returns the default configuration for the agent
func DefaultConfig() *Config {
	return &Config{
		Network:       "localhost",
		LogLevel:      "INFO",
		HttpAddr:      "localhost:3000",
		TelemetryAddr: "localhost:4123",
		Oracles: &OraclesConfig{
			Count:            30,
			RegistrationFee:  "1000000000000000000",
			Gas:              10000000,
			RegistrationMode: "skip",
			ReceiptTimeout:   "2m",
		},
		Tracker: &TrackerConfig{
			StartBlock:   0,
			BatchSize:    1000,
			PollInterval: "2s",
		},
		Projections: &ProjectionsConfig{
			Airlines:     "keyed-upsert",
			Flights:      "append-only",
			FlightStatus: "append-only",
		},
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	if err := hcl.Decode(c, string(data)); err != nil {
		return nil, err
	}
	return c, nil
}

// Merge merges two configurations
func (c *Config) Merge(c1 ...*Config) error {
	for _, i := range c1 {
		if err := mergo.Merge(c, *i, mergo.WithOverride); err != nil {
			return err
		}
	}
	return nil
}

// Network is the entry of a network in the networks file
type Network struct {
	URL         string `yaml:"url"`
	AppAddress  string `yaml:"appAddress"`
	DataAddress string `yaml:"dataAddress"`
}

func loadNetworks(path string) (map[string]*Network, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	networks := map[string]*Network{}
	if err := yaml.Unmarshal(data, &networks); err != nil {
		return nil, fmt.Errorf("failed to decode networks file: %v", err)
	}
	return networks, nil
}
