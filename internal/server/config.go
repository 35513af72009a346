package server

import (
	"fmt"
	"math/big"
	"time"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server/state"
)

// RegistrationMode decides what to do when the ledger already
// has registered oracles
type RegistrationMode string

const (
	// RegistrationSkip only registers when the ledger has no oracles
	RegistrationSkip RegistrationMode = "skip"

	// RegistrationTopUp registers the missing oracles up to the target
	RegistrationTopUp RegistrationMode = "top-up"
)

// Config is the parametrizable configuration of the relay
type Config struct {
	// Endpoint is the jsonrpc endpoint of the ledger (http or ws)
	Endpoint string

	AppAddress  ethgo.Address
	DataAddress ethgo.Address

	// OracleCount is the number of simulated oracles
	OracleCount uint64

	// RegistrationFee is the value paid by each oracle registration
	RegistrationFee *big.Int

	// Gas is the gas limit of every transaction
	Gas      uint64
	GasPrice uint64

	RegistrationMode RegistrationMode

	// Broadcast submits a response for every index of every oracle
	// instead of only for the oracles holding the requested index
	Broadcast bool

	// ReplayRequests answers the requests emitted before the relay started
	ReplayRequests bool

	StartBlock     uint64
	BatchSize      uint64
	PollInterval   time.Duration
	ReceiptTimeout time.Duration

	// HttpAddr is the address of the query surface
	HttpAddr string

	// DataDir enables the checkpoints of the projections
	DataDir string

	Policies *state.Policies
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		OracleCount:      30,
		RegistrationFee:  ethgo.Ether(1),
		Gas:              10000000,
		RegistrationMode: RegistrationSkip,
		StartBlock:       0,
		BatchSize:        1000,
		PollInterval:     2 * time.Second,
		ReceiptTimeout:   2 * time.Minute,
		HttpAddr:         "localhost:3000",
		Policies:         state.DefaultPolicies(),
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is empty")
	}
	if c.AppAddress == (ethgo.Address{}) {
		return fmt.Errorf("app address is empty")
	}
	if c.DataAddress == (ethgo.Address{}) {
		return fmt.Errorf("data address is empty")
	}
	if c.OracleCount == 0 {
		return fmt.Errorf("oracle count cannot be zero")
	}
	if c.RegistrationMode != RegistrationSkip && c.RegistrationMode != RegistrationTopUp {
		return fmt.Errorf("registration mode '%s' not found", c.RegistrationMode)
	}
	if c.RegistrationFee == nil || c.RegistrationFee.Sign() < 0 {
		return fmt.Errorf("invalid registration fee")
	}
	return nil
}
