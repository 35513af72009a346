package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

var _ Api = &MockApi{}

// MockResponse is a response submitted to the mock
type MockResponse struct {
	From     ethgo.Address
	Response structs.OracleResponse
}

// MockApi is an in memory ledger for tests
type MockApi struct {
	lock sync.Mutex

	AccountsList []ethgo.Address
	Count        uint64
	Balance      *big.Int
	Head         uint64
	LogsList     []*ethgo.Log

	// BalanceErr is returned by BalanceApp if set
	BalanceErr error

	// RegisterErr and SubmitErr decide the result of each send
	RegisterErr func(from ethgo.Address) error
	SubmitErr   func(from ethgo.Address, resp *structs.OracleResponse) error

	registered []ethgo.Address
	responses  []*MockResponse
}

func NewMockApi() *MockApi {
	return &MockApi{}
}

func (m *MockApi) Accounts(ctx context.Context) ([]ethgo.Address, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]ethgo.Address{}, m.AccountsList...), nil
}

func (m *MockApi) BlockNumber(ctx context.Context) (uint64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.Head, nil
}

func (m *MockApi) Logs(ctx context.Context, from, to uint64) ([]*ethgo.Log, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	res := []*ethgo.Log{}
	for _, log := range m.LogsList {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			res = append(res, log)
		}
	}
	return res, nil
}

func (m *MockApi) NewHeads(ctx context.Context, notify func()) error {
	return ErrSubscriptionsDisabled
}

func (m *MockApi) OraclesCount(ctx context.Context) (uint64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.Count, nil
}

func (m *MockApi) BalanceApp(ctx context.Context) (*big.Int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	if m.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(m.Balance), nil
}

func (m *MockApi) RegisterOracle(ctx context.Context, from ethgo.Address, fee *big.Int, gas uint64) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.RegisterErr != nil {
		if err := m.RegisterErr(from); err != nil {
			return err
		}
	}
	m.registered = append(m.registered, from)
	return nil
}

func (m *MockApi) SubmitOracleResponse(ctx context.Context, from ethgo.Address, resp *structs.OracleResponse, gas uint64) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.SubmitErr != nil {
		if err := m.SubmitErr(from, resp); err != nil {
			return err
		}
	}
	m.responses = append(m.responses, &MockResponse{From: from, Response: *resp})
	return nil
}

// Registered returns the accounts that registered successfully
func (m *MockApi) Registered() []ethgo.Address {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]ethgo.Address{}, m.registered...)
}

// Responses returns the responses submitted successfully
func (m *MockApi) Responses() []*MockResponse {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]*MockResponse{}, m.responses...)
}

// AddLog appends an encoded event at the block and moves the head
func (m *MockApi) AddLog(typ structs.EventType, block uint64, args map[string]interface{}) error {
	log, err := EncodeLog(typ, args)
	if err != nil {
		return err
	}
	log.BlockNumber = block

	m.lock.Lock()
	defer m.lock.Unlock()

	log.LogIndex = uint64(len(m.LogsList))
	m.LogsList = append(m.LogsList, log)
	if block > m.Head {
		m.Head = block
	}
	return nil
}

// EncodeLog builds the log the contracts would emit for the event
func EncodeLog(typ structs.EventType, args map[string]interface{}) (*ethgo.Log, error) {
	spec, ok := eventsByType[typ]
	if !ok {
		return nil, fmt.Errorf("event '%s' not found", typ)
	}
	data, err := abi.Encode(args, spec.event.Inputs)
	if err != nil {
		return nil, err
	}
	log := &ethgo.Log{
		Topics: []ethgo.Hash{spec.event.ID()},
		Data:   data,
	}
	return log, nil
}
