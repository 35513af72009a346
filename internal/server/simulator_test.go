package server

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/ledger"
	"github.com/umbracle/flight-relay/internal/server/state"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

func testSimulator(t *testing.T, m *ledger.MockApi, broadcast bool, oracles ...*structs.Oracle) *Simulator {
	st := state.NewInmemState(t)
	for _, o := range oracles {
		require.NoError(t, st.UpsertOracle(o))
	}
	return NewSimulator(hclog.NewNullLogger(), m, st, &SimulatorConfig{Gas: 10000000, Broadcast: broadcast})
}

var (
	oracleA = &structs.Oracle{Address: ethgo.HexToAddress("0xa"), Indexes: []uint64{1, 2, 3}}
	oracleB = &structs.Oracle{Address: ethgo.HexToAddress("0xb"), Indexes: []uint64{3, 3, 4}}
	oracleC = &structs.Oracle{Address: ethgo.HexToAddress("0xc"), Indexes: []uint64{5, 6, 7}}
)

func testRequest(index uint64) structs.OracleRequest {
	return structs.OracleRequest{
		Index:     index,
		Airline:   ethgo.HexToAddress("0x1"),
		Flight:    "ND1309",
		Timestamp: 1600000000,
	}
}

func TestSimulator_MatchingOracles(t *testing.T) {
	m := ledger.NewMockApi()
	s := testSimulator(t, m, false, oracleA, oracleB, oracleC)

	report, err := s.OnStatusRequest(context.Background(), testRequest(3))
	require.NoError(t, err)

	// oracle A once and oracle B once per held index
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, "3/3", report.Summary())

	perOracle := map[ethgo.Address]int{}
	for _, resp := range m.Responses() {
		perOracle[resp.From]++
		assert.Equal(t, uint64(3), resp.Response.Index)
		assert.Equal(t, "ND1309", resp.Response.Flight)
		assert.True(t, resp.Response.Status.Valid())
	}
	assert.Equal(t, map[ethgo.Address]int{oracleA.Address: 1, oracleB.Address: 2}, perOracle)
}

func TestSimulator_NoMatch(t *testing.T) {
	m := ledger.NewMockApi()
	s := testSimulator(t, m, false, oracleA)

	report, err := s.OnStatusRequest(context.Background(), testRequest(9))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Len(t, m.Responses(), 0)
}

func TestSimulator_Broadcast(t *testing.T) {
	m := ledger.NewMockApi()
	s := testSimulator(t, m, true, oracleA, oracleC)

	report, err := s.OnStatusRequest(context.Background(), testRequest(1))
	require.NoError(t, err)
	assert.Equal(t, 6, report.Total)

	indexes := []uint64{}
	for _, resp := range m.Responses() {
		indexes = append(indexes, resp.Response.Index)
	}
	assert.ElementsMatch(t, []uint64{1, 2, 3, 5, 6, 7}, indexes)
}

func TestSimulator_Outcomes(t *testing.T) {
	m := ledger.NewMockApi()
	m.SubmitErr = func(from ethgo.Address, resp *structs.OracleResponse) error {
		switch from {
		case oracleA.Address:
			return &ledger.RejectedError{Method: "submitOracleResponse", Reason: "index does not match"}
		case oracleB.Address:
			return &ledger.TransportError{Method: "submitOracleResponse", Err: errors.New("connection refused")}
		}
		return nil
	}
	s := testSimulator(t, m, true, oracleA, oracleB, oracleC)

	report, err := s.OnStatusRequest(context.Background(), testRequest(3))
	require.NoError(t, err)
	assert.Equal(t, 9, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 3, report.Rejected)
	assert.Equal(t, 3, report.TransportErrors)

	// the report is stored
	found, err := s.state.FanoutByID(report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Total, found.Total)
}

func TestSimulator_StatusPicker(t *testing.T) {
	m := ledger.NewMockApi()
	s := testSimulator(t, m, false, oracleA)
	s.SetStatusPicker(func() structs.StatusCode {
		return structs.StatusLateAirline
	})

	_, err := s.OnStatusRequest(context.Background(), testRequest(1))
	require.NoError(t, err)

	responses := m.Responses()
	require.Len(t, responses, 1)
	assert.Equal(t, structs.StatusLateAirline, responses[0].Response.Status)
}

func TestSimulator_IndependentRequests(t *testing.T) {
	m := ledger.NewMockApi()
	s := testSimulator(t, m, false, oracleA, oracleC)

	reqA := testRequest(1)
	reqB := testRequest(5)
	reqB.Flight = "ND1310"

	done := make(chan *structs.FanoutReport, 2)
	for _, req := range []structs.OracleRequest{reqA, reqB} {
		go func(req structs.OracleRequest) {
			report, err := s.OnStatusRequest(context.Background(), req)
			assert.NoError(t, err)
			done <- report
		}(req)
	}
	r0, r1 := <-done, <-done
	assert.NotEqual(t, r0.ID, r1.ID)

	// every response carries the flight of its own request
	for _, resp := range m.Responses() {
		switch resp.From {
		case oracleA.Address:
			assert.Equal(t, "ND1309", resp.Response.Flight)
		case oracleC.Address:
			assert.Equal(t, "ND1310", resp.Response.Flight)
		}
	}
}

func TestRandomStatus(t *testing.T) {
	seen := map[structs.StatusCode]struct{}{}
	for i := 0; i < 1000; i++ {
		code := RandomStatus()
		assert.True(t, code.Valid())
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, len(structs.StatusCodes))
}
