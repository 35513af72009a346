package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// ErrUnknownEvent is returned for logs that are not tracked by the relay
var ErrUnknownEvent = errors.New("unknown event")

type payload interface {
	Validate() error
}

type eventSpec struct {
	typ   structs.EventType
	event *abi.Event
	new   func() payload
}

var eventSpecs = []*eventSpec{
	{
		typ:   structs.EventOracleRegistered,
		event: OracleRegisteredEvent,
		new:   func() payload { return &structs.Oracle{} },
	},
	{
		typ:   structs.EventOracleRequest,
		event: OracleRequestEvent,
		new:   func() payload { return &structs.OracleRequest{} },
	},
	{
		typ:   structs.EventAirlineRegistered,
		event: AirlineRegisteredEvent,
		new:   func() payload { return &structs.Airline{} },
	},
	{
		typ:   structs.EventFlightRegistered,
		event: FlightRegisteredEvent,
		new:   func() payload { return &structs.Flight{} },
	},
	{
		typ:   structs.EventFlightStatusInfo,
		event: FlightStatusInfoEvent,
		new:   func() payload { return &structs.FlightStatus{} },
	},
	{
		typ:   structs.EventContractBalanceApp,
		event: ContractBalanceAppEvent,
		new:   func() payload { return &structs.ContractBalance{} },
	},
}

var (
	eventsByTopic = map[ethgo.Hash]*eventSpec{}
	eventsByType  = map[structs.EventType]*eventSpec{}
)

func init() {
	for _, spec := range eventSpecs {
		eventsByTopic[spec.event.ID()] = spec
		eventsByType[spec.typ] = spec
	}
}

// EventTopics returns the topic of every tracked event
func EventTopics() []ethgo.Hash {
	topics := []ethgo.Hash{}
	for _, spec := range eventSpecs {
		topics = append(topics, spec.event.ID())
	}
	return topics
}

// DecodeLog decodes a ledger log into a typed event
func DecodeLog(log *ethgo.Log) (*structs.Event, error) {
	if len(log.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	spec, ok := eventsByTopic[log.Topics[0]]
	if !ok {
		return nil, ErrUnknownEvent
	}

	raw, err := spec.event.ParseLog(log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", spec.typ, err)
	}
	obj := spec.new()
	if err := decodePayload(raw, obj); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %v", spec.typ, err)
	}
	if err := obj.Validate(); err != nil {
		return nil, fmt.Errorf("malformed %s: %v", spec.typ, err)
	}

	event := &structs.Event{
		Type:        spec.typ,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.LogIndex,
		TxHash:      log.TransactionHash,
		Payload:     obj,
	}
	return event, nil
}

func decodePayload(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(arrayHook, bigIntHook),
		Result:     out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// arrayHook turns fixed size abi arrays (i.e. uint8[3]) into slices
func arrayHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.Array || to.Kind() != reflect.Slice {
		return data, nil
	}
	v := reflect.ValueOf(data)
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out, nil
}

// bigIntHook narrows uint256 values into the integer fields of the records
func bigIntHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	num, ok := data.(*big.Int)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !num.IsUint64() {
			return nil, fmt.Errorf("value %s does not fit in %s", num, to)
		}
		return num.Uint64(), nil
	}
	return data, nil
}
