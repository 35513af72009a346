package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
)

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	config.Endpoint = "http://localhost:8545"
	config.AppAddress = ethgo.HexToAddress("0xa")
	config.DataAddress = ethgo.HexToAddress("0xb")
	require.NoError(t, config.Validate())

	config.OracleCount = 0
	assert.Error(t, config.Validate())

	config.OracleCount = 1
	config.RegistrationMode = "other"
	assert.Error(t, config.Validate())

	config.RegistrationMode = RegistrationTopUp
	config.RegistrationFee = nil
	assert.Error(t, config.Validate())
}
