package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/umbracle/ethgo/jsonrpc/codec"
)

func TestErrors_Classify(t *testing.T) {
	err := classify("submitOracleResponse", &codec.ErrorObject{Code: -32000, Message: "Index does not match oracle request"})
	assert.Equal(t, OutcomeRejected, OutcomeOf(err))
	assert.Contains(t, err.Error(), "Index does not match")

	err = classify("submitOracleResponse", fmt.Errorf("dial tcp: connection refused"))
	assert.Equal(t, OutcomeTransportError, OutcomeOf(err))

	err = classify("getOraclesCount", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Nil(t, classify("getOraclesCount", nil))
	assert.Equal(t, OutcomeSuccess, OutcomeOf(nil))
}
