package testutil

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
)

// DevLedger is a go-ethereum node in dev mode. It mines a block
// every second and exposes a funded managed account.
type DevLedger struct {
	node   *node
	client *jsonrpc.Client
}

// NewDevLedger starts a dev ledger in docker. The test is skipped
// unless E2E_LEDGER is set.
func NewDevLedger(t *testing.T) *DevLedger {
	t.Helper()

	if os.Getenv("E2E_LEDGER") == "" {
		t.Skip("E2E_LEDGER not set")
	}

	cmd := []string{
		"--dev",
		"--dev.period", "1",
		"--http", "--http.addr", "0.0.0.0",
		"--http.api", "eth,net,web3,personal",
	}
	opts := []nodeOption{
		WithName("ledger"),
		WithContainer("ethereum/client-go", "v1.9.25"),
		WithCmd(cmd),
		WithLabels(map[string]string{"flight-relay": "e2e"}),
		WithRetry(func(n *node) error {
			return testHTTPEndpoint(fmt.Sprintf("http://%s:8545", n.IP()))
		}),
	}
	if testing.Verbose() {
		opts = append(opts, WithOutput(os.Stdout))
	}

	n, err := newNode(opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(n.Stop)

	l := &DevLedger{node: n}

	client, err := jsonrpc.NewClient(l.Endpoint())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	l.client = client

	return l
}

// Endpoint is the http jsonrpc endpoint of the node
func (l *DevLedger) Endpoint() string {
	return fmt.Sprintf("http://%s:8545", l.node.IP())
}

func (l *DevLedger) Provider() *jsonrpc.Client {
	return l.client
}

// Owner returns the funded account of the node
func (l *DevLedger) Owner() ethgo.Address {
	owner, _ := l.client.Eth().Accounts()
	return owner[0]
}

// WaitForBlock blocks until the node reaches the given block number
func (l *DevLedger) WaitForBlock(num uint64) error {
	for i := 0; i < 60; i++ {
		current, err := l.client.Eth().BlockNumber()
		if err != nil {
			return err
		}
		if current >= num {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("timeout waiting for block %d", num)
}

func testHTTPEndpoint(endpoint string) error {
	resp, err := http.Post(endpoint, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
