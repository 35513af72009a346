package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/r3labs/sse/v2"
	"github.com/umbracle/flight-relay/internal/ledger"
	"github.com/umbracle/flight-relay/internal/routine"
	"github.com/umbracle/flight-relay/internal/server/state"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// Server is the off-chain relay of the flight insurance ledger
type Server struct {
	config     *Config
	logger     hclog.Logger
	state      *state.State
	api        ledger.Api
	tracker    *ledger.Tracker
	registry   *Registry
	simulator  *Simulator
	checkpoint *state.Checkpoint
	routines   *routine.Manager
	httpServer *http.Server
	sse        *sse.Server
	closeFns   []func() error
}

// NewServer creates the relay on top of the jsonrpc endpoint
func NewServer(logger hclog.Logger, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	api, err := ledger.NewJsonRPCApi(&ledger.Config{
		Endpoint:       config.Endpoint,
		AppAddress:     config.AppAddress,
		DataAddress:    config.DataAddress,
		GasPrice:       config.GasPrice,
		ReceiptTimeout: config.ReceiptTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect with the ledger: %v", err)
	}
	api.SetLogger(logger)

	srv, err := newServer(logger, config, api)
	if err != nil {
		api.Close()
		return nil, err
	}
	srv.closeFns = append(srv.closeFns, api.Close)

	if err := srv.setupHTTPServer(config.HttpAddr); err != nil {
		srv.Stop()
		return nil, err
	}
	return srv, nil
}

func newServer(logger hclog.Logger, config *Config, api ledger.Api) (*Server, error) {
	s := &Server{
		config:   config,
		logger:   logger,
		api:      api,
		routines: routine.NewManager(logger),
	}

	st, err := state.NewState(config.Policies)
	if err != nil {
		return nil, fmt.Errorf("failed to start state: %v", err)
	}
	s.state = st

	startBlock := config.StartBlock
	if config.DataDir != "" {
		block, err := s.restoreCheckpoint(config.DataDir)
		if err != nil {
			return nil, err
		}
		if block > startBlock {
			startBlock = block
		}
	}

	s.registry = NewRegistry(logger, api, st, &RegistryConfig{
		OracleCount:     config.OracleCount,
		RegistrationFee: config.RegistrationFee,
		Gas:             config.Gas,
		Mode:            config.RegistrationMode,
	})
	if err := s.registry.Load(); err != nil {
		return nil, err
	}

	s.simulator = NewSimulator(logger, api, st, &SimulatorConfig{
		Gas:       config.Gas,
		Broadcast: config.Broadcast,
	})

	s.tracker = ledger.NewTracker(api, &ledger.TrackerConfig{
		StartBlock:   startBlock,
		BatchSize:    config.BatchSize,
		PollInterval: config.PollInterval,
	})
	s.tracker.SetLogger(logger)

	s.sse = sse.New()
	s.sse.AutoReplay = false
	s.sse.CreateStream(projectionsStream)

	s.routines.Add("tracker", s.runTracker)
	s.routines.Add("bootstrap", s.runBootstrap)
	s.routines.Add("notifier", s.runNotifier)

	return s, nil
}

// restoreCheckpoint loads the last checkpoint of the data dir and returns
// the next block to process
func (s *Server) restoreCheckpoint(dataDir string) (uint64, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return 0, err
	}
	checkpoint, err := state.NewCheckpoint(filepath.Join(dataDir, "checkpoint.db"))
	if err != nil {
		return 0, fmt.Errorf("failed to open checkpoint: %v", err)
	}
	s.checkpoint = checkpoint
	s.closeFns = append(s.closeFns, checkpoint.Close)

	block, dump, err := checkpoint.Load()
	if errors.Is(err, state.ErrNoCheckpoint) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := s.state.Restore(dump); err != nil {
		return 0, fmt.Errorf("failed to restore projections: %v", err)
	}

	s.logger.Info("projections restored", "block", block)
	return block + 1, nil
}

// Run starts the relay
func (s *Server) Run() {
	s.routines.Start(context.Background())
	s.logger.Info("relay started", "endpoint", s.config.Endpoint, "oracles", s.config.OracleCount)
}

func (s *Server) runTracker(ctx context.Context) error {
	return s.tracker.Run(ctx, s.handleBatch)
}

// runBootstrap registers the oracles once the history is replayed
func (s *Server) runBootstrap(ctx context.Context) error {
	select {
	case <-s.tracker.ReadyCh():
	case <-ctx.Done():
		return nil
	}

	if _, err := s.registry.EnsureRegistered(ctx); err != nil {
		return err
	}
	if _, err := s.pollBalance(ctx); err != nil {
		s.logger.Warn("failed to query contract balance", "err", err)
	}
	return nil
}

func (s *Server) handleBatch(ctx context.Context, batch *ledger.Batch) {
	for _, event := range batch.Events {
		s.handleEvent(event)
	}

	if s.checkpoint == nil {
		return
	}
	dump, err := s.state.Dump()
	if err != nil {
		s.logger.Error("failed to dump projections", "err", err)
		return
	}
	if err := s.checkpoint.Save(batch.To, dump); err != nil {
		s.logger.Error("failed to save checkpoint", "block", batch.To, "err", err)
	}
}

func (s *Server) handleEvent(event *structs.Event) {
	metrics.IncrCounter([]string{"ledger", "event", string(event.Type)}, 1)

	logger := s.logger.With("event", event.Type, "block", event.BlockNumber)

	switch obj := event.Payload.(type) {
	case *structs.Oracle:
		if err := s.registry.Observe(obj); err != nil {
			logger.Error("failed to register oracle", "err", err)
		}

	case *structs.OracleRequest:
		if event.Replayed && !s.config.ReplayRequests {
			logger.Trace("skip historical request", "index", obj.Index, "flight", obj.Flight)
			return
		}
		req := *obj
		ok := s.routines.Go(func(ctx context.Context) {
			if _, err := s.simulator.OnStatusRequest(ctx, req); err != nil {
				logger.Error("failed to answer request", "err", err)
			}
		})
		if !ok {
			logger.Warn("relay stopping, request dropped", "flight", req.Flight)
		}

	default:
		if err := s.state.Apply(event); err != nil {
			logger.Error("failed to apply event", "tx", event.TxHash, "err", err)
		}
	}
}

// pollBalance queries the balance of the app contract and caches it
func (s *Server) pollBalance(ctx context.Context) (*structs.ContractBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	amount, err := s.api.BalanceApp(ctx)
	if err != nil {
		return nil, err
	}
	balance := &structs.ContractBalance{Amount: amount}
	if err := s.state.SetBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// Stop stops the relay
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to stop http server", "err", err)
		}
	}
	s.sse.Close()
	s.routines.Stop()

	for _, closeFn := range s.closeFns {
		if err := closeFn(); err != nil {
			s.logger.Error("failed to close", "err", err)
		}
	}
}
