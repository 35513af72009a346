package state

import (
	"math/big"
	"testing"

	"github.com/hashicorp/go-memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

func TestCheckpoint_Empty(t *testing.T) {
	c := NewTestCheckpoint(t)

	_, _, err := c.Load()
	assert.Equal(t, ErrNoCheckpoint, err)
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	c := NewTestCheckpoint(t)
	state := NewInmemState(t)

	airline := ethgo.HexToAddress("0xA")
	require.NoError(t, state.UpsertAirline(&structs.Airline{AirlineAddress: airline, AirlineName: "Air1", IsFunded: true}))
	require.NoError(t, state.InsertFlight(&structs.Flight{Airline: airline, Flight: "F1", Timestamp: 10}))
	require.NoError(t, state.SetBalance(&structs.ContractBalance{Amount: big.NewInt(1000)}))

	dump, err := state.Dump()
	require.NoError(t, err)
	require.NoError(t, c.Save(25, dump))

	block, loaded, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), block)

	restored := NewInmemState(t)
	require.NoError(t, restored.Restore(loaded))

	airlines, err := restored.Airlines(memdb.NewWatchSet())
	require.NoError(t, err)
	require.Len(t, airlines, 1)
	assert.Equal(t, "Air1", airlines[0].AirlineName)
	assert.True(t, airlines[0].IsFunded)

	balance, err := restored.Balance(memdb.NewWatchSet())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.Amount.Int64())

	// a later save overwrites the cursor
	require.NoError(t, c.Save(30, dump))
	block, _, err = c.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(30), block)
}
