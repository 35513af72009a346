package server

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-memdb"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/ledger"
	"github.com/umbracle/flight-relay/internal/server/state"
	"github.com/umbracle/flight-relay/internal/server/structs"
	"github.com/umbracle/flight-relay/internal/uuid"
)

// SimulatorConfig is the configuration of the response simulator
type SimulatorConfig struct {
	Gas       uint64
	Broadcast bool
}

// StatusPicker returns the status an oracle reports
type StatusPicker func() structs.StatusCode

// RandomStatus picks a status code uniformly at random
func RandomStatus() structs.StatusCode {
	return structs.StatusCodes[rand.Intn(len(structs.StatusCodes))]
}

type submission struct {
	from  ethgo.Address
	index uint64
}

// Simulator answers the oracle requests of the ledger on behalf
// of the registered oracles
type Simulator struct {
	logger hclog.Logger
	api    ledger.Api
	state  *state.State
	config *SimulatorConfig
	pick   StatusPicker
}

func NewSimulator(logger hclog.Logger, api ledger.Api, state *state.State, config *SimulatorConfig) *Simulator {
	return &Simulator{
		logger: logger.Named("simulator"),
		api:    api,
		state:  state,
		config: config,
		pick:   RandomStatus,
	}
}

// SetStatusPicker replaces the random status picker
func (s *Simulator) SetStatusPicker(pick StatusPicker) {
	s.pick = pick
}

// OnStatusRequest submits one response per matching (oracle, index) pair
// and waits for all of them. Failed submissions are counted in the report
// and never retried.
func (s *Simulator) OnStatusRequest(ctx context.Context, req structs.OracleRequest) (*structs.FanoutReport, error) {
	report := &structs.FanoutReport{
		ID:        uuid.Generate(),
		Request:   req,
		StartedAt: time.Now(),
	}

	targets, err := s.targets(req)
	if err != nil {
		return nil, err
	}
	report.Total = len(targets)

	logger := s.logger.With("id", uuid.Short(report.ID), "index", req.Index, "flight", req.Flight)
	logger.Debug("oracle request", "airline", req.Airline, "timestamp", req.Timestamp, "responses", report.Total)

	var (
		wg   sync.WaitGroup
		lock sync.Mutex
	)
	for _, target := range targets {
		resp := &structs.OracleResponse{
			Index:     target.index,
			Airline:   req.Airline,
			Flight:    req.Flight,
			Timestamp: req.Timestamp,
			Status:    s.pick(),
		}

		wg.Add(1)
		go func(from ethgo.Address, resp *structs.OracleResponse) {
			defer wg.Done()

			err := s.api.SubmitOracleResponse(ctx, from, resp, s.config.Gas)
			outcome := ledger.OutcomeOf(err)
			metrics.IncrCounter([]string{"simulator", "submission", string(outcome)}, 1)

			lock.Lock()
			defer lock.Unlock()

			switch outcome {
			case ledger.OutcomeSuccess:
				report.Succeeded++
			case ledger.OutcomeRejected:
				report.Rejected++
				logger.Debug("response rejected", "oracle", from, "err", err)
			case ledger.OutcomeTransportError:
				report.TransportErrors++
				logger.Error("failed to submit response", "oracle", from, "err", err)
			}
		}(target.from, resp)
	}
	wg.Wait()

	report.FinishedAt = time.Now()
	logger.Info("submitted", "result", report.Summary())

	if err := s.state.UpsertFanout(report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Simulator) targets(req structs.OracleRequest) ([]*submission, error) {
	res := []*submission{}

	if s.config.Broadcast {
		oracles, err := s.state.Oracles(memdb.NewWatchSet())
		if err != nil {
			return nil, err
		}
		for _, oracle := range oracles {
			for _, index := range oracle.Indexes {
				res = append(res, &submission{from: oracle.Address, index: index})
			}
		}
		return res, nil
	}

	oracles, err := s.state.OraclesByIndex(req.Index)
	if err != nil {
		return nil, err
	}
	for _, oracle := range oracles {
		for i := 0; i < oracle.HasIndex(req.Index); i++ {
			res = append(res, &submission{from: oracle.Address, index: req.Index})
		}
	}
	return res, nil
}
