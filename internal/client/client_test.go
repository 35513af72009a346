package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
)

func testRelay(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/airlines", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"airlineAddress":"0x000000000000000000000000000000000000000a","airlineName":"Air A","isFunded":true,"airlinesCounter":"1"}]`))
	})
	mux.HandleFunc("/contractBalance", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount":"1000000000000000000000"}`))
	})
	mux.HandleFunc("/flights", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Airlines(t *testing.T) {
	srv := testRelay(t)
	c := NewClient(srv.URL)

	airlines, err := c.Airlines()
	require.NoError(t, err)
	require.Len(t, airlines, 1)
	assert.Equal(t, ethgo.HexToAddress("0xa"), airlines[0].AirlineAddress)
	assert.True(t, airlines[0].IsFunded)
	assert.Equal(t, uint64(1), airlines[0].AirlinesCounter)
}

func TestClient_ContractBalance(t *testing.T) {
	srv := testRelay(t)
	c := NewClient(srv.URL)

	balance, err := c.ContractBalance()
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", balance.Amount.String())
}

func TestClient_Error(t *testing.T) {
	srv := testRelay(t)
	c := NewClient(srv.URL)

	_, err := c.Flights()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
