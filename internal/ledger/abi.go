package ledger

import (
	"fmt"

	"github.com/umbracle/ethgo/abi"
)

// methods of the FlightSuretyApp contract used by the relay
var (
	registerOracleMethod       = mustNewMethod("function registerOracle()")
	getOraclesCountMethod      = mustNewMethod("function getOraclesCount() returns (uint256)")
	getBalanceAppMethod        = mustNewMethod("function getBalanceApp() returns (uint256)")
	submitOracleResponseMethod = mustNewMethod("function submitOracleResponse(uint8 index, address airline, string flight, uint256 timestamp, uint8 statusCode)")
)

func mustNewMethod(name string) *abi.Method {
	method, err := abi.NewMethod(name)
	if err != nil {
		panic(fmt.Errorf("BUG: failed to parse method %s: %v", name, err))
	}
	return method
}

// OracleRegisteredEvent is emitted by the app contract once an oracle
// paid the registration fee and got its indexes assigned
var OracleRegisteredEvent = abi.MustNewEvent(`event OracleRegistered(
	address oracleAddress,
	uint8[3] indexes
)`)

// OracleRequestEvent asks the oracles holding index for a flight status
var OracleRequestEvent = abi.MustNewEvent(`event OracleRequest(
	uint8 index,
	address airline,
	string flight,
	uint256 timestamp
)`)

// AirlineRegisteredEvent is emitted by the data contract
var AirlineRegisteredEvent = abi.MustNewEvent(`event AirlineRegistered(
	address airlineAddress,
	string airlineName,
	bool isFunded,
	address registeredBy,
	uint256 airlinesCounter
)`)

var FlightRegisteredEvent = abi.MustNewEvent(`event FlightRegistered(
	address airline,
	string flight,
	uint256 updatedTimestamp,
	bool isRegistered
)`)

// FlightStatusInfoEvent is emitted once enough oracles agree on a status
var FlightStatusInfoEvent = abi.MustNewEvent(`event FlightStatusInfo(
	address airline,
	string flight,
	uint256 timestamp,
	uint8 status
)`)

var ContractBalanceAppEvent = abi.MustNewEvent(`event ContractBalanceApp(
	uint256 amount
)`)
