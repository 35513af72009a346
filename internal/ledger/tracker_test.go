package ledger

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

type batchCollector struct {
	lock    sync.Mutex
	batches []*Batch
}

func (b *batchCollector) handle(ctx context.Context, batch *Batch) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.batches = append(b.batches, batch)
}

func (b *batchCollector) events() []*structs.Event {
	b.lock.Lock()
	defer b.lock.Unlock()

	res := []*structs.Event{}
	for _, batch := range b.batches {
		res = append(res, batch.Events...)
	}
	return res
}

func addBalanceLog(t *testing.T, m *MockApi, block uint64, amount int64) {
	t.Helper()

	err := m.AddLog(structs.EventContractBalanceApp, block, map[string]interface{}{
		"amount": big.NewInt(amount),
	})
	require.NoError(t, err)
}

func TestTracker_ReplayAndFollow(t *testing.T) {
	m := NewMockApi()
	for i := uint64(0); i < 5; i++ {
		addBalanceLog(t, m, i*3, int64(i))
	}

	tracker := NewTracker(m, &TrackerConfig{
		BatchSize:    4,
		PollInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &batchCollector{}
	go tracker.Run(ctx, c.handle)

	select {
	case <-tracker.ReadyCh():
	case <-time.After(5 * time.Second):
		t.Fatal("tracker not ready")
	}

	events := c.events()
	require.Len(t, events, 5)
	for i, event := range events {
		assert.True(t, event.Replayed)
		assert.Equal(t, int64(i), event.Payload.(*structs.ContractBalance).Amount.Int64())
	}

	// block ranges are contiguous
	c.lock.Lock()
	for i := 1; i < len(c.batches); i++ {
		assert.Equal(t, c.batches[i-1].To+1, c.batches[i].From)
	}
	c.lock.Unlock()

	// new events past the start head are live
	addBalanceLog(t, m, 20, 100)

	assert.Eventually(t, func() bool {
		return len(c.events()) == 6
	}, 5*time.Second, 10*time.Millisecond)

	last := c.events()[5]
	assert.False(t, last.Replayed)
	assert.Equal(t, uint64(20), last.BlockNumber)
	assert.Eventually(t, func() bool {
		return tracker.Next() == 21
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTracker_StartBlock(t *testing.T) {
	m := NewMockApi()
	addBalanceLog(t, m, 1, 1)
	addBalanceLog(t, m, 5, 5)

	tracker := NewTracker(m, &TrackerConfig{StartBlock: 3, PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &batchCollector{}
	go tracker.Run(ctx, c.handle)

	<-tracker.ReadyCh()

	events := c.events()
	require.Len(t, events, 1)
	assert.Equal(t, uint64(5), events[0].BlockNumber)
}

func TestTracker_SkipUnknownLogs(t *testing.T) {
	m := NewMockApi()
	m.LogsList = append(m.LogsList, &ethgo.Log{BlockNumber: 1, Topics: []ethgo.Hash{ethgo.HexToHash("0x1")}})
	addBalanceLog(t, m, 2, 2)

	tracker := NewTracker(m, &TrackerConfig{PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &batchCollector{}
	go tracker.Run(ctx, c.handle)

	<-tracker.ReadyCh()
	assert.Len(t, c.events(), 1)
}

func TestTracker_Stop(t *testing.T) {
	m := NewMockApi()
	tracker := NewTracker(m, &TrackerConfig{PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	doneCh := make(chan error)
	go func() {
		doneCh <- tracker.Run(ctx, func(ctx context.Context, batch *Batch) {})
	}()

	<-tracker.ReadyCh()
	cancel()

	select {
	case err := <-doneCh:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop")
	}
}
