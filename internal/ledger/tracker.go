package ledger

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// TrackerConfig is the configuration of the log tracker
type TrackerConfig struct {
	// StartBlock is the first block to process
	StartBlock uint64

	// BatchSize is the maximum number of blocks queried at once
	BatchSize uint64

	// PollInterval is how often the head is checked
	PollInterval time.Duration
}

// Batch is the set of events of a closed block range
type Batch struct {
	From   uint64
	To     uint64
	Events []*structs.Event
}

// Tracker replays the ledger events from a start block and follows the
// head afterwards. Events are delivered in block and log order.
type Tracker struct {
	logger hclog.Logger
	api    Api
	config *TrackerConfig

	next      uint64
	startHead uint64
	started   bool

	readyCh chan struct{}
	headCh  chan struct{}
}

func NewTracker(api Api, config *TrackerConfig) *Tracker {
	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}
	if config.PollInterval == 0 {
		config.PollInterval = 2 * time.Second
	}
	return &Tracker{
		logger:  hclog.NewNullLogger(),
		api:     api,
		config:  config,
		next:    config.StartBlock,
		readyCh: make(chan struct{}),
		headCh:  make(chan struct{}, 1),
	}
}

func (t *Tracker) SetLogger(logger hclog.Logger) {
	t.logger = logger.Named("tracker")
}

// ReadyCh is closed once the tracker has caught up with the head
// observed when it started
func (t *Tracker) ReadyCh() <-chan struct{} {
	return t.readyCh
}

// Next returns the next block to process
func (t *Tracker) Next() uint64 {
	return atomic.LoadUint64(&t.next)
}

func (t *Tracker) notifyHead() {
	select {
	case t.headCh <- struct{}{}:
	default:
	}
}

// Run tracks the ledger until the context is done. The handler is called
// once per block range, in order, and it is never retried.
func (t *Tracker) Run(ctx context.Context, handler func(ctx context.Context, batch *Batch)) error {
	go func() {
		if err := t.api.NewHeads(ctx, t.notifyHead); err != nil {
			t.logger.Debug("head notifications not available, polling", "err", err)
		}
	}()

	for {
		if err := t.sync(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Error("failed to sync logs", "next", t.Next(), "err", err)
		}

		select {
		case <-time.After(t.config.PollInterval):
		case <-t.headCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tracker) sync(ctx context.Context, handler func(ctx context.Context, batch *Batch)) error {
	head, err := t.api.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if !t.started {
		t.started = true
		t.startHead = head
		t.logger.Info("start tracking", "from", t.Next(), "head", head)
	}

	for t.Next() <= head {
		from := t.Next()
		to := from + t.config.BatchSize - 1
		if to > head {
			to = head
		}

		logs, err := t.api.Logs(ctx, from, to)
		if err != nil {
			return err
		}

		batch := &Batch{
			From:   from,
			To:     to,
			Events: []*structs.Event{},
		}
		for _, log := range logs {
			if log.Removed {
				continue
			}
			event, err := DecodeLog(log)
			if err == ErrUnknownEvent {
				t.logger.Debug("event not tracked", "block", log.BlockNumber, "address", log.Address)
				continue
			}
			if err != nil {
				t.logger.Error("failed to decode event", "block", log.BlockNumber, "tx", log.TransactionHash, "err", err)
				continue
			}
			event.Replayed = event.BlockNumber <= t.startHead
			batch.Events = append(batch.Events, event)
		}

		handler(ctx, batch)
		atomic.StoreUint64(&t.next, to+1)
	}

	select {
	case <-t.readyCh:
	default:
		t.logger.Info("caught up", "head", head)
		close(t.readyCh)
	}
	return nil
}
