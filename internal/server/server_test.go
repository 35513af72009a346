package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/ledger"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

func testConfig() *Config {
	config := DefaultConfig()
	config.OracleCount = 3
	config.PollInterval = 10 * time.Millisecond
	config.HttpAddr = ""
	return config
}

func testServer(t *testing.T, m *ledger.MockApi, config *Config) *Server {
	srv, err := newServer(hclog.NewNullLogger(), config, m)
	require.NoError(t, err)

	srv.Run()
	t.Cleanup(srv.Stop)

	select {
	case <-srv.tracker.ReadyCh():
	case <-time.After(5 * time.Second):
		t.Fatal("tracker not ready")
	}
	return srv
}

func addAirline(t *testing.T, m *ledger.MockApi, block uint64, addr ethgo.Address, name string, funded bool) {
	err := m.AddLog(structs.EventAirlineRegistered, block, map[string]interface{}{
		"airlineAddress":  addr,
		"airlineName":     name,
		"isFunded":        funded,
		"registeredBy":    addr,
		"airlinesCounter": big.NewInt(1),
	})
	require.NoError(t, err)
}

func addOracle(t *testing.T, m *ledger.MockApi, block uint64, addr ethgo.Address, indexes [3]uint8) {
	err := m.AddLog(structs.EventOracleRegistered, block, map[string]interface{}{
		"oracleAddress": addr,
		"indexes":       indexes,
	})
	require.NoError(t, err)
}

func addRequest(t *testing.T, m *ledger.MockApi, block uint64, index uint8, flight string) {
	err := m.AddLog(structs.EventOracleRequest, block, map[string]interface{}{
		"index":     index,
		"airline":   ethgo.HexToAddress("0x1"),
		"flight":    flight,
		"timestamp": big.NewInt(1600000000),
	})
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, obj interface{}) *http.Response {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(obj))
	return resp
}

func TestServer_RegisterAndAnswer(t *testing.T) {
	m := ledger.NewMockApi()
	m.AccountsList = testAccounts(10)

	srv := testServer(t, m, testConfig())

	assert.Eventually(t, func() bool {
		return len(m.Registered()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	// the ledger confirms the registrations
	for i, addr := range m.Registered() {
		idx := uint8(i)
		addOracle(t, m, uint64(10+i), addr, [3]uint8{idx, idx + 1, idx + 2})
	}

	select {
	case <-srv.registry.FrozenCh():
	case <-time.After(5 * time.Second):
		t.Fatal("registry not frozen")
	}

	// index 2 is held by the three oracles
	addRequest(t, m, 20, 2, "ND1309")

	assert.Eventually(t, func() bool {
		return len(m.Responses()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	for _, resp := range m.Responses() {
		assert.Equal(t, uint64(2), resp.Response.Index)
		assert.Equal(t, "ND1309", resp.Response.Flight)
	}
}

func TestServer_SkipHistoricalRequests(t *testing.T) {
	m := ledger.NewMockApi()
	m.Count = 3

	oracles := testAccounts(3)
	for i, addr := range oracles {
		addOracle(t, m, uint64(i), addr, [3]uint8{1, 2, 3})
	}
	addRequest(t, m, 5, 1, "OLD")

	testServer(t, m, testConfig())

	addRequest(t, m, 6, 1, "NEW")

	assert.Eventually(t, func() bool {
		return len(m.Responses()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	// give the skipped request time to show up if it was answered
	time.Sleep(50 * time.Millisecond)
	for _, resp := range m.Responses() {
		assert.Equal(t, "NEW", resp.Response.Flight)
	}

	// the ledger already had oracles
	assert.Len(t, m.Registered(), 0)
}

func TestServer_ReplayRequests(t *testing.T) {
	m := ledger.NewMockApi()
	m.Count = 1

	addOracle(t, m, 1, ethgo.HexToAddress("0xa"), [3]uint8{1, 2, 3})
	addRequest(t, m, 2, 1, "OLD")

	config := testConfig()
	config.OracleCount = 1
	config.ReplayRequests = true
	testServer(t, m, config)

	assert.Eventually(t, func() bool {
		return len(m.Responses()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_QuerySurface(t *testing.T) {
	m := ledger.NewMockApi()
	m.Count = 3
	m.Balance = big.NewInt(500)

	addrA := ethgo.HexToAddress("0xa")
	addrB := ethgo.HexToAddress("0xb")
	addAirline(t, m, 1, addrA, "Air A", false)
	addAirline(t, m, 2, addrB, "Air B", false)
	addAirline(t, m, 3, addrA, "Air A", true)

	require.NoError(t, m.AddLog(structs.EventFlightRegistered, 4, map[string]interface{}{
		"airline":          addrA,
		"flight":           "ND1309",
		"updatedTimestamp": big.NewInt(1600000000),
		"isRegistered":     true,
	}))
	require.NoError(t, m.AddLog(structs.EventFlightStatusInfo, 5, map[string]interface{}{
		"airline":   addrA,
		"flight":    "ND1309",
		"timestamp": big.NewInt(1600000000),
		"status":    uint8(20),
	}))

	srv := testServer(t, m, testConfig())

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var airlines []map[string]interface{}
	resp := getJSON(t, ts.URL+"/airlines", &airlines)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, airlines, 2)
	assert.Equal(t, true, airlines[0]["isFunded"])
	assert.Equal(t, "Air B", airlines[1]["airlineName"])

	var flights []map[string]interface{}
	getJSON(t, ts.URL+"/flights", &flights)
	require.Len(t, flights, 1)
	assert.Equal(t, "1600000000", flights[0]["timestamp"])

	var statuses []map[string]interface{}
	getJSON(t, ts.URL+"/flightsStatus", &statuses)
	require.Len(t, statuses, 1)
	assert.Equal(t, "20", statuses[0]["status"])

	var balance map[string]string
	getJSON(t, ts.URL+"/contractBalance", &balance)
	assert.Equal(t, "500", balance["amount"])

	// the ledger is not reachable, the cached value is served
	m.BalanceErr = &ledger.TransportError{Method: "getBalanceApp", Err: fmt.Errorf("down")}
	getJSON(t, ts.URL+"/contractBalance", &balance)
	assert.Equal(t, "500", balance["amount"])

	var requests []interface{}
	getJSON(t, ts.URL+"/requests", &requests)
	assert.NotNil(t, requests)
	assert.Len(t, requests, 0)

	var health Health
	getJSON(t, ts.URL+"/health", &health)
	assert.True(t, health.Ready)
	assert.Equal(t, uint64(6), health.NextBlock)

	// cors headers
	req, err := http.NewRequest("GET", ts.URL+"/flights", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:8000")

	corsResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	corsResp.Body.Close()
	assert.Equal(t, "*", corsResp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_EmptyCollections(t *testing.T) {
	m := ledger.NewMockApi()
	m.Count = 3

	srv := testServer(t, m, testConfig())

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	for _, path := range []string{"/airlines", "/flights", "/flightsStatus", "/oracles"} {
		var res []interface{}
		resp := getJSON(t, ts.URL+path, &res)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotNil(t, res, path)
		assert.Len(t, res, 0, path)
	}
}

func TestServer_CheckpointResume(t *testing.T) {
	dataDir, err := os.MkdirTemp("/tmp", "flight-relay-")
	require.NoError(t, err)
	defer os.RemoveAll(dataDir)

	m := ledger.NewMockApi()
	m.Count = 3
	addAirline(t, m, 1, ethgo.HexToAddress("0xa"), "Air A", false)
	require.NoError(t, m.AddLog(structs.EventFlightRegistered, 2, map[string]interface{}{
		"airline":          ethgo.HexToAddress("0xa"),
		"flight":           "ND1309",
		"updatedTimestamp": big.NewInt(1),
		"isRegistered":     true,
	}))

	config := testConfig()
	config.DataDir = dataDir

	srv, err := newServer(hclog.NewNullLogger(), config, m)
	require.NoError(t, err)
	srv.Run()
	<-srv.tracker.ReadyCh()
	srv.Stop()

	// a new flight while the relay is down
	require.NoError(t, m.AddLog(structs.EventFlightRegistered, 3, map[string]interface{}{
		"airline":          ethgo.HexToAddress("0xa"),
		"flight":           "ND1310",
		"updatedTimestamp": big.NewInt(2),
		"isRegistered":     true,
	}))

	srv = testServer(t, m, config)
	assert.Equal(t, uint64(4), srv.tracker.Next())

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	// flights are append-only, a full replay would duplicate ND1309
	var flights []map[string]interface{}
	getJSON(t, ts.URL+"/flights", &flights)
	require.Len(t, flights, 2)
	assert.Equal(t, "ND1309", flights[0]["flight"])
	assert.Equal(t, "ND1310", flights[1]["flight"])

	var airlines []interface{}
	getJSON(t, ts.URL+"/airlines", &airlines)
	assert.Len(t, airlines, 1)
}

func TestServer_ProjectionsStream(t *testing.T) {
	m := ledger.NewMockApi()
	m.Count = 3

	srv := testServer(t, m, testConfig())

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/events?stream="+projectionsStream, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	addAirline(t, m, 1, ethgo.HexToAddress("0xa"), "Air A", false)

	buf := make([]byte, 4096)
	found := false
	for !found {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		if n > 0 && strings.Contains(string(buf[:n]), "event: airlines") {
			found = true
		}
	}
	assert.True(t, found)
}
