package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server"
	"github.com/umbracle/flight-relay/internal/server/state"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConfig_LoadAndMerge(t *testing.T) {
	path := writeFile(t, "config.hcl", `
endpoint = "ws://localhost:8545"
log_level = "DEBUG"

oracles {
	count = 20
	registration_mode = "top-up"
}

tracker {
	poll_interval = "5s"
}
`)

	file, err := loadConfig(path)
	require.NoError(t, err)

	config := DefaultConfig()
	require.NoError(t, config.Merge(file))

	assert.Equal(t, "ws://localhost:8545", config.Endpoint)
	assert.Equal(t, "DEBUG", config.LogLevel)
	assert.Equal(t, 20, config.Oracles.Count)
	assert.Equal(t, "top-up", config.Oracles.RegistrationMode)
	assert.Equal(t, 10000000, config.Oracles.Gas)
	assert.Equal(t, "5s", config.Tracker.PollInterval)
	assert.Equal(t, 1000, config.Tracker.BatchSize)

	// cli flags take precedence over the file
	require.NoError(t, config.Merge(&Config{LogLevel: "TRACE"}))
	assert.Equal(t, "TRACE", config.LogLevel)
	assert.Equal(t, "ws://localhost:8545", config.Endpoint)
}

func TestConfig_BuildFromNetworksFile(t *testing.T) {
	path := writeFile(t, "networks.yaml", `
localhost:
  url: http://localhost:8545
  appAddress: "0x00000000000000000000000000000000000000aa"
  dataAddress: "0x00000000000000000000000000000000000000bb"
`)

	config := DefaultConfig()
	config.NetworksFile = path

	cc, err := buildRelayConfig(config)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8545", cc.Endpoint)
	assert.Equal(t, ethgo.HexToAddress("0xaa"), cc.AppAddress)
	assert.Equal(t, ethgo.HexToAddress("0xbb"), cc.DataAddress)
	assert.Equal(t, uint64(30), cc.OracleCount)
	assert.Equal(t, ethgo.Ether(1), cc.RegistrationFee)
	assert.Equal(t, 2*time.Second, cc.PollInterval)
	assert.Equal(t, 2*time.Minute, cc.ReceiptTimeout)
	assert.Equal(t, server.RegistrationSkip, cc.RegistrationMode)
	assert.Equal(t, state.PolicyKeyedUpsert, cc.Policies.Airlines)
	assert.Equal(t, state.PolicyAppendOnly, cc.Policies.Flights)

	// unknown network
	config.Network = "rinkeby"
	_, err = buildRelayConfig(config)
	assert.Error(t, err)
}

func TestConfig_BuildInvalid(t *testing.T) {
	config := DefaultConfig()
	config.Endpoint = "http://localhost:8545"
	config.AppAddress = "0x00000000000000000000000000000000000000aa"
	config.DataAddress = "0x00000000000000000000000000000000000000bb"

	_, err := buildRelayConfig(config)
	require.NoError(t, err)

	config.Oracles.RegistrationMode = "other"
	_, err = buildRelayConfig(config)
	assert.Error(t, err)

	config.Oracles.RegistrationMode = "skip"
	config.Oracles.Count = 0
	_, err = buildRelayConfig(config)
	assert.Error(t, err)

	config.Oracles.Count = 30
	config.AppAddress = "not an address"
	_, err = buildRelayConfig(config)
	assert.Error(t, err)
}
