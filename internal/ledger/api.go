package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// ErrSubscriptionsDisabled is returned by NewHeads when the provider
// cannot push notifications (i.e. http endpoints)
var ErrSubscriptionsDisabled = errors.New("subscriptions not enabled")

// Api is the api definition of the ledger required by the relay
type Api interface {
	Accounts(ctx context.Context) ([]ethgo.Address, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Logs(ctx context.Context, from, to uint64) ([]*ethgo.Log, error)
	NewHeads(ctx context.Context, notify func()) error
	OraclesCount(ctx context.Context) (uint64, error)
	BalanceApp(ctx context.Context) (*big.Int, error)
	RegisterOracle(ctx context.Context, from ethgo.Address, fee *big.Int, gas uint64) error
	SubmitOracleResponse(ctx context.Context, from ethgo.Address, resp *structs.OracleResponse, gas uint64) error
}
