package server

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-memdb"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/ledger"
	"github.com/umbracle/flight-relay/internal/server/state"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// RegistryConfig is the configuration of the oracle registry
type RegistryConfig struct {
	OracleCount     uint64
	RegistrationFee *big.Int
	Gas             uint64
	Mode            RegistrationMode
}

// RegistrationReport is the result of a registration round
type RegistrationReport struct {
	// Existing is the number of oracles the ledger had before
	Existing uint64

	Issued int
	Failed int
}

// Registry bootstraps the simulated oracles and tracks the ones
// registered in the ledger
type Registry struct {
	logger hclog.Logger
	api    ledger.Api
	state  *state.State
	config *RegistryConfig

	lock     sync.Mutex
	observed map[string]struct{}
	frozen   bool
	frozenCh chan struct{}
}

func NewRegistry(logger hclog.Logger, api ledger.Api, state *state.State, config *RegistryConfig) *Registry {
	return &Registry{
		logger:   logger.Named("registry"),
		api:      api,
		state:    state,
		config:   config,
		observed: map[string]struct{}{},
		frozenCh: make(chan struct{}),
	}
}

// Load reads the oracles already present in the state
// (i.e. restored from a checkpoint)
func (r *Registry) Load() error {
	oracles, err := r.state.Oracles(memdb.NewWatchSet())
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, oracle := range oracles {
		r.observed[oracle.Key()] = struct{}{}
	}
	r.checkFrozenLocked()
	return nil
}

// Observe handles an OracleRegistered event
func (r *Registry) Observe(oracle *structs.Oracle) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.frozen {
		r.logger.Debug("oracle registered after freeze, ignored", "addr", oracle.Address)
		return nil
	}
	if err := r.state.UpsertOracle(oracle); err != nil {
		return err
	}
	r.observed[oracle.Key()] = struct{}{}

	r.checkFrozenLocked()
	return nil
}

func (r *Registry) checkFrozenLocked() {
	if r.frozen || uint64(len(r.observed)) < r.config.OracleCount {
		return
	}
	r.frozen = true
	close(r.frozenCh)

	r.logger.Info("oracles registered", "total", len(r.observed))
}

// FrozenCh is closed once the target number of oracles is observed
func (r *Registry) FrozenCh() <-chan struct{} {
	return r.frozenCh
}

func (r *Registry) isObserved(addr ethgo.Address) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, ok := r.observed[(&structs.Oracle{Address: addr}).Key()]
	return ok
}

// EnsureRegistered registers the simulated oracles with the ledger. The
// sends are not retried, the oracles are only stored once the ledger
// emits the OracleRegistered event.
func (r *Registry) EnsureRegistered(ctx context.Context) (*RegistrationReport, error) {
	count, err := r.api.OraclesCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracles count: %v", err)
	}
	report := &RegistrationReport{
		Existing: count,
	}

	var missing uint64
	switch r.config.Mode {
	case RegistrationSkip:
		if count == 0 {
			missing = r.config.OracleCount
		}
	case RegistrationTopUp:
		if count < r.config.OracleCount {
			missing = r.config.OracleCount - count
		}
	default:
		return nil, fmt.Errorf("registration mode '%s' not found", r.config.Mode)
	}
	if missing == 0 {
		r.logger.Info("oracles already registered", "count", count, "mode", r.config.Mode)
		return report, nil
	}

	accounts, err := r.api.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %v", err)
	}
	candidates := r.candidates(accounts, missing)
	if uint64(len(candidates)) < missing {
		r.logger.Warn("not enough accounts for the oracles", "accounts", len(accounts), "missing", missing)
	}

	r.logger.Info("register oracles", "count", len(candidates), "existing", count)

	var (
		wg   sync.WaitGroup
		lock sync.Mutex
	)
	for _, addr := range candidates {
		wg.Add(1)

		go func(addr ethgo.Address) {
			defer wg.Done()

			err := r.api.RegisterOracle(ctx, addr, r.config.RegistrationFee, r.config.Gas)

			lock.Lock()
			defer lock.Unlock()

			report.Issued++
			if err != nil {
				report.Failed++
				metrics.IncrCounter([]string{"registry", "registration", string(ledger.OutcomeOf(err))}, 1)
				r.logger.Error("failed to register oracle", "addr", addr, "err", err)
				return
			}
			metrics.IncrCounter([]string{"registry", "registration", string(ledger.OutcomeSuccess)}, 1)
		}(addr)
	}
	wg.Wait()

	r.logger.Info("registration sent", "issued", report.Issued, "failed", report.Failed)
	return report, nil
}

// candidates returns up to n accounts from the tail of the pool
// that are not registered yet
func (r *Registry) candidates(accounts []ethgo.Address, n uint64) []ethgo.Address {
	res := []ethgo.Address{}
	for i := len(accounts) - 1; i >= 0 && uint64(len(res)) < n; i-- {
		if r.isObserved(accounts[i]) {
			continue
		}
		res = append(res, accounts[i])
	}
	return res
}
