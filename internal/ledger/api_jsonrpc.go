package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/flight-relay/internal/server/structs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var _ Api = &JsonRPCApi{}

// Config is the configuration of the jsonrpc ledger api
type Config struct {
	// Endpoint is the http or websocket endpoint of the node
	Endpoint string

	// AppAddress is the address of the FlightSuretyApp contract
	AppAddress ethgo.Address

	// DataAddress is the address of the FlightSuretyData contract
	DataAddress ethgo.Address

	GasPrice       uint64
	ReceiptTimeout time.Duration
}

// JsonRPCApi is the ledger api on top of an ethereum jsonrpc endpoint.
// Transactions are sent from node managed accounts.
type JsonRPCApi struct {
	client *jsonrpc.Client
	config *Config
	logger hclog.Logger
}

func NewJsonRPCApi(config *Config) (*JsonRPCApi, error) {
	client, err := jsonrpc.NewClient(config.Endpoint)
	if err != nil {
		return nil, err
	}
	if config.ReceiptTimeout == 0 {
		config.ReceiptTimeout = 2 * time.Minute
	}
	j := &JsonRPCApi{
		client: client,
		config: config,
		logger: hclog.NewNullLogger(),
	}
	return j, nil
}

func (j *JsonRPCApi) SetLogger(logger hclog.Logger) {
	j.logger = logger.Named("ledger")
}

func (j *JsonRPCApi) Close() error {
	return j.client.Close()
}

func (j *JsonRPCApi) Accounts(ctx context.Context) ([]ethgo.Address, error) {
	_, span := otel.Tracer("Ledger").Start(ctx, "Accounts")
	defer span.End()

	accounts, err := j.client.Eth().Accounts()
	if err != nil {
		return nil, classify("eth_accounts", err)
	}
	return accounts, nil
}

func (j *JsonRPCApi) BlockNumber(ctx context.Context) (uint64, error) {
	_, span := otel.Tracer("Ledger").Start(ctx, "BlockNumber")
	defer span.End()

	num, err := j.client.Eth().BlockNumber()
	if err != nil {
		return 0, classify("eth_blockNumber", err)
	}
	return num, nil
}

// Logs returns the tracked events of both contracts in the block range
func (j *JsonRPCApi) Logs(ctx context.Context, from, to uint64) ([]*ethgo.Log, error) {
	_, span := otel.Tracer("Ledger").Start(ctx, "Logs")
	span.SetAttributes(attribute.Int64("from", int64(from)), attribute.Int64("to", int64(to)))
	defer span.End()

	topics := []*ethgo.Hash{}
	for _, topic := range EventTopics() {
		topic := topic
		topics = append(topics, &topic)
	}

	fromBlock, toBlock := ethgo.BlockNumber(from), ethgo.BlockNumber(to)
	filter := &ethgo.LogFilter{
		Address: []ethgo.Address{j.config.AppAddress, j.config.DataAddress},
		Topics:  [][]*ethgo.Hash{topics},
		From:    &fromBlock,
		To:      &toBlock,
	}
	logs, err := j.client.Eth().GetLogs(filter)
	if err != nil {
		return nil, classify("eth_getLogs", err)
	}
	return logs, nil
}

// NewHeads calls notify for every new block until the context is done
func (j *JsonRPCApi) NewHeads(ctx context.Context, notify func()) error {
	if !j.client.SubscriptionEnabled() {
		return ErrSubscriptionsDisabled
	}
	cancel, err := j.client.Subscribe("newHeads", func(b []byte) {
		notify()
	})
	if err != nil {
		return classify("eth_subscribe", err)
	}

	<-ctx.Done()
	return cancel()
}

func (j *JsonRPCApi) OraclesCount(ctx context.Context) (uint64, error) {
	out, err := j.call(ctx, getOraclesCountMethod)
	if err != nil {
		return 0, err
	}
	num, err := outputNum(out)
	if err != nil {
		return 0, err
	}
	if !num.IsUint64() {
		return 0, fmt.Errorf("oracles count %s out of range", num)
	}
	return num.Uint64(), nil
}

func (j *JsonRPCApi) BalanceApp(ctx context.Context) (*big.Int, error) {
	out, err := j.call(ctx, getBalanceAppMethod)
	if err != nil {
		return nil, err
	}
	return outputNum(out)
}

func (j *JsonRPCApi) RegisterOracle(ctx context.Context, from ethgo.Address, fee *big.Int, gas uint64) error {
	return j.send(ctx, registerOracleMethod, from, fee, gas)
}

func (j *JsonRPCApi) SubmitOracleResponse(ctx context.Context, from ethgo.Address, resp *structs.OracleResponse, gas uint64) error {
	return j.send(ctx, submitOracleResponseMethod, from, nil, gas,
		uint8(resp.Index),
		resp.Airline,
		resp.Flight,
		new(big.Int).SetUint64(resp.Timestamp),
		uint8(resp.Status),
	)
}

func (j *JsonRPCApi) call(ctx context.Context, method *abi.Method, args ...interface{}) (map[string]interface{}, error) {
	_, span := otel.Tracer("Ledger").Start(ctx, method.Name)
	defer span.End()

	if args == nil {
		args = []interface{}{}
	}
	input, err := method.Encode(args)
	if err != nil {
		return nil, err
	}

	to := j.config.AppAddress
	msg := &ethgo.CallMsg{
		To:   &to,
		Data: input,
	}
	res, err := j.client.Eth().Call(msg, ethgo.Latest)
	if err != nil {
		return nil, classify(method.Name, err)
	}
	buf, err := hex.DecodeString(strings.TrimPrefix(res, "0x"))
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, &RejectedError{Method: method.Name, Reason: "empty output"}
	}
	return method.Decode(buf)
}

func (j *JsonRPCApi) send(ctx context.Context, method *abi.Method, from ethgo.Address, value *big.Int, gas uint64, args ...interface{}) error {
	ctx, span := otel.Tracer("Ledger").Start(ctx, method.Name)
	span.SetAttributes(attribute.String("from", from.String()))
	defer span.End()

	if args == nil {
		args = []interface{}{}
	}
	input, err := method.Encode(args)
	if err != nil {
		return err
	}

	to := j.config.AppAddress
	txn := &ethgo.Transaction{
		From:     from,
		To:       &to,
		Input:    input,
		Gas:      gas,
		GasPrice: j.config.GasPrice,
		Value:    value,
	}
	hash, err := j.client.Eth().SendTransaction(txn)
	if err != nil {
		return classify(method.Name, err)
	}

	receipt, err := j.waitForReceipt(ctx, hash)
	if err != nil {
		return &TransportError{Method: method.Name, Err: err}
	}
	if receipt.Status != 1 {
		return &RejectedError{Method: method.Name, Reason: fmt.Sprintf("transaction %s reverted", hash)}
	}

	j.logger.Trace("transaction included", "method", method.Name, "hash", hash, "block", receipt.BlockNumber)
	return nil
}

func (j *JsonRPCApi) waitForReceipt(ctx context.Context, hash ethgo.Hash) (*ethgo.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, j.config.ReceiptTimeout)
	defer cancel()

	for {
		receipt, err := j.client.Eth().GetTransactionReceipt(hash)
		if err != nil {
			if err.Error() != "not found" {
				return nil, err
			}
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt for %s not found: %v", hash, ctx.Err())
		}
	}
}

func outputNum(out map[string]interface{}) (*big.Int, error) {
	num, ok := out["0"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to decode output at index 0")
	}
	return num, nil
}
