package structs

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/umbracle/ethgo"
)

// EventType is the name of a ledger event tracked by the relay
type EventType string

const (
	EventOracleRegistered   EventType = "OracleRegistered"
	EventOracleRequest      EventType = "OracleRequest"
	EventAirlineRegistered  EventType = "AirlineRegistered"
	EventFlightRegistered   EventType = "FlightRegistered"
	EventFlightStatusInfo   EventType = "FlightStatusInfo"
	EventContractBalanceApp EventType = "ContractBalanceApp"
)

// Event is a decoded ledger log
type Event struct {
	Type        EventType
	BlockNumber uint64
	LogIndex    uint64
	TxHash      ethgo.Hash

	// Replayed is set for events at or below the head observed
	// when the relay started
	Replayed bool

	// Payload is one of the typed records below
	Payload interface{}
}

// Sequence is the position of a record in its collection
type Sequence struct {
	Seq uint64
}

func (s *Sequence) GetSeq() uint64 {
	return s.Seq
}

func (s *Sequence) SetSeq(seq uint64) {
	s.Seq = seq
}

// Airline is the projection of an AirlineRegistered event. The uint
// fields of the projections are encoded as decimal strings, like the
// event values web3 clients read.
type Airline struct {
	Sequence `json:"-"`

	AirlineAddress  ethgo.Address `json:"airlineAddress" mapstructure:"airlineAddress"`
	AirlineName     string        `json:"airlineName" mapstructure:"airlineName"`
	IsFunded        bool          `json:"isFunded" mapstructure:"isFunded"`
	RegisteredBy    ethgo.Address `json:"registeredBy" mapstructure:"registeredBy"`
	AirlinesCounter uint64        `json:"airlinesCounter,string" mapstructure:"airlinesCounter"`
}

// Key is the airline address
func (a *Airline) Key() string {
	return addressKey(a.AirlineAddress)
}

func (a *Airline) Validate() error {
	if a.AirlineAddress == (ethgo.Address{}) {
		return fmt.Errorf("airline address is empty")
	}
	return nil
}

func (a *Airline) Copy() *Airline {
	aa := new(Airline)
	*aa = *a
	return aa
}

// Flight is the projection of a FlightRegistered event
type Flight struct {
	Sequence `json:"-"`

	Airline      ethgo.Address `json:"airline" mapstructure:"airline"`
	Flight       string        `json:"flight" mapstructure:"flight"`
	Timestamp    uint64        `json:"timestamp,string" mapstructure:"updatedTimestamp"`
	IsRegistered bool          `json:"isRegistered" mapstructure:"isRegistered"`
}

// Key is the (airline, flight, timestamp) triple
func (f *Flight) Key() string {
	return flightKey(f.Airline, f.Flight, f.Timestamp)
}

func (f *Flight) Validate() error {
	if f.Airline == (ethgo.Address{}) {
		return fmt.Errorf("flight airline is empty")
	}
	return nil
}

func (f *Flight) Copy() *Flight {
	ff := new(Flight)
	*ff = *f
	return ff
}

// FlightStatus is the projection of a FlightStatusInfo event
type FlightStatus struct {
	Sequence `json:"-"`

	Airline   ethgo.Address `json:"airline" mapstructure:"airline"`
	Flight    string        `json:"flight" mapstructure:"flight"`
	Timestamp uint64        `json:"timestamp,string" mapstructure:"timestamp"`
	Status    StatusCode    `json:"status,string" mapstructure:"status"`
}

// Key is the (airline, flight, timestamp) triple of the reported flight
func (f *FlightStatus) Key() string {
	return flightKey(f.Airline, f.Flight, f.Timestamp)
}

func (f *FlightStatus) Validate() error {
	if f.Airline == (ethgo.Address{}) {
		return fmt.Errorf("flight status airline is empty")
	}
	return nil
}

func (f *FlightStatus) Copy() *FlightStatus {
	ff := new(FlightStatus)
	*ff = *f
	return ff
}

// ContractBalance is the balance of the app contract
type ContractBalance struct {
	Amount *big.Int `mapstructure:"amount"`
}

func (c *ContractBalance) Validate() error {
	if c.Amount == nil {
		return fmt.Errorf("balance amount is empty")
	}
	return nil
}

type contractBalanceJSON struct {
	Amount string `json:"amount,omitempty"`
}

// MarshalJSON encodes the amount as a decimal string since
// it does not fit in a json number
func (c *ContractBalance) MarshalJSON() ([]byte, error) {
	obj := &contractBalanceJSON{}
	if c.Amount != nil {
		obj.Amount = c.Amount.String()
	}
	return json.Marshal(obj)
}

func (c *ContractBalance) UnmarshalJSON(data []byte) error {
	var obj contractBalanceJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.Amount = nil
	if obj.Amount == "" {
		return nil
	}
	num, ok := new(big.Int).SetString(obj.Amount, 10)
	if !ok {
		return fmt.Errorf("failed to decode amount '%s'", obj.Amount)
	}
	c.Amount = num
	return nil
}

// Oracle is a simulated oracle registered in the ledger
type Oracle struct {
	Sequence `json:"-"`

	Address ethgo.Address `json:"oracleAddress" mapstructure:"oracleAddress"`
	Indexes []uint64      `json:"indexes" mapstructure:"indexes"`
}

func (o *Oracle) Key() string {
	return addressKey(o.Address)
}

// HasIndex returns how many times the oracle holds the index
func (o *Oracle) HasIndex(index uint64) int {
	count := 0
	for _, i := range o.Indexes {
		if i == index {
			count++
		}
	}
	return count
}

func (o *Oracle) Validate() error {
	if o.Address == (ethgo.Address{}) {
		return fmt.Errorf("oracle address is empty")
	}
	if len(o.Indexes) == 0 {
		return fmt.Errorf("oracle without indexes")
	}
	return nil
}

func (o *Oracle) Copy() *Oracle {
	oo := new(Oracle)
	*oo = *o
	oo.Indexes = append([]uint64{}, o.Indexes...)
	return oo
}

// OracleRequest is a request from the ledger for the status of a flight.
// It is passed by value to each fan out
type OracleRequest struct {
	Index     uint64        `json:"index,string" mapstructure:"index"`
	Airline   ethgo.Address `json:"airline" mapstructure:"airline"`
	Flight    string        `json:"flight" mapstructure:"flight"`
	Timestamp uint64        `json:"timestamp,string" mapstructure:"timestamp"`
}

func (o *OracleRequest) Validate() error {
	if o.Airline == (ethgo.Address{}) {
		return fmt.Errorf("request airline is empty")
	}
	return nil
}

// OracleResponse is the answer of one oracle for one of its indexes
type OracleResponse struct {
	Index     uint64
	Airline   ethgo.Address
	Flight    string
	Timestamp uint64
	Status    StatusCode
}

// FanoutReport is the outcome of the responses submitted for one request
type FanoutReport struct {
	Sequence `json:"-"`

	ID              string        `json:"id"`
	Request         OracleRequest `json:"request"`
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Rejected        int           `json:"rejected"`
	TransportErrors int           `json:"transportErrors"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      time.Time     `json:"finishedAt"`
}

func (f *FanoutReport) Key() string {
	return f.ID
}

// Summary returns the succeeded over total submissions
func (f *FanoutReport) Summary() string {
	return fmt.Sprintf("%d/%d", f.Succeeded, f.Total)
}

func (f *FanoutReport) Copy() *FanoutReport {
	ff := new(FanoutReport)
	*ff = *f
	return ff
}

func addressKey(addr ethgo.Address) string {
	return strings.ToLower(addr.String())
}

func flightKey(airline ethgo.Address, flight string, timestamp uint64) string {
	return fmt.Sprintf("%s/%s/%d", addressKey(airline), flight, timestamp)
}
