package state

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/umbracle/flight-relay/internal/server/structs"
)

// Policy is how a collection folds records that share a natural key
type Policy string

const (
	// PolicyKeyedUpsert replaces the record with the same key in place
	PolicyKeyedUpsert Policy = "keyed-upsert"

	// PolicyAppendOnly always appends a new record
	PolicyAppendOnly Policy = "append-only"
)

func (p Policy) Validate() error {
	if p != PolicyKeyedUpsert && p != PolicyAppendOnly {
		return fmt.Errorf("policy '%s' not found", p)
	}
	return nil
}

// Policies is the fold policy of each projection
type Policies struct {
	Airlines     Policy
	Flights      Policy
	FlightStatus Policy
}

// DefaultPolicies de-duplicates airlines by address and keeps every
// flight and status report
func DefaultPolicies() *Policies {
	return &Policies{
		Airlines:     PolicyKeyedUpsert,
		Flights:      PolicyAppendOnly,
		FlightStatus: PolicyAppendOnly,
	}
}

// Collection is the name of a projection exposed by the query surface
type Collection string

const (
	CollectionAirlines     Collection = "airlines"
	CollectionFlights      Collection = "flights"
	CollectionFlightStatus Collection = "flightsStatus"
	CollectionBalance      Collection = "contractBalance"
	CollectionOracles      Collection = "oracles"
	CollectionRequests     Collection = "requests"
)

var (
	// ErrNotProjected is returned when applying an event that is
	// not folded into any projection
	ErrNotProjected = errors.New("event is not projected")

	// ErrMalformedPayload is returned for payloads without identity
	ErrMalformedPayload = errors.New("malformed payload")
)

const balanceID = "app"

type balanceRecord struct {
	ID      string
	Balance *structs.ContractBalance
}

// State is the entity that stores the projections of the ledger events
type State struct {
	memdb    *memdb.MemDB
	policies *Policies

	// seq is the last position of each table. It is only
	// accessed inside write transactions, which memdb serializes
	seq map[string]uint64
}

func NewState(policies *Policies) (*State, error) {
	if policies == nil {
		policies = DefaultPolicies()
	}
	for _, p := range []Policy{policies.Airlines, policies.Flights, policies.FlightStatus} {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	state := &State{
		memdb:    db,
		policies: policies,
		seq:      map[string]uint64{},
	}
	return state, nil
}

// Apply folds one ledger event into its projection
func (s *State) Apply(event *structs.Event) error {
	switch obj := event.Payload.(type) {
	case *structs.Airline:
		return s.UpsertAirline(obj)
	case *structs.Flight:
		return s.InsertFlight(obj)
	case *structs.FlightStatus:
		return s.InsertFlightStatus(obj)
	case *structs.ContractBalance:
		return s.SetBalance(obj)
	default:
		return fmt.Errorf("%w: %s", ErrNotProjected, event.Type)
	}
}

func (s *State) UpsertAirline(airline *structs.Airline) error {
	if err := airline.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return s.put(airlinesTable, s.policies.Airlines, airline.Copy())
}

func (s *State) InsertFlight(flight *structs.Flight) error {
	if err := flight.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return s.put(flightsTable, s.policies.Flights, flight.Copy())
}

func (s *State) InsertFlightStatus(status *structs.FlightStatus) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return s.put(flightStatusTable, s.policies.FlightStatus, status.Copy())
}

// SetBalance overwrites the contract balance
func (s *State) SetBalance(balance *structs.ContractBalance) error {
	if err := balance.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	txn := s.memdb.Txn(true)
	defer txn.Abort()

	obj := &balanceRecord{
		ID:      balanceID,
		Balance: &structs.ContractBalance{Amount: balance.Amount},
	}
	if err := txn.Insert(balanceTable, obj); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// UpsertOracle stores a registered oracle, one per address
func (s *State) UpsertOracle(oracle *structs.Oracle) error {
	if err := oracle.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return s.put(oraclesTable, PolicyKeyedUpsert, oracle.Copy())
}

// UpsertFanout stores the report of an oracle response fan out
func (s *State) UpsertFanout(report *structs.FanoutReport) error {
	if report.ID == "" {
		return fmt.Errorf("%w: fanout without id", ErrMalformedPayload)
	}
	return s.put(fanoutsTable, PolicyKeyedUpsert, report.Copy())
}

func (s *State) put(table string, policy Policy, obj record) error {
	txn := s.memdb.Txn(true)
	defer txn.Abort()

	if err := s.putTxn(txn, table, policy, obj); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *State) putTxn(txn *memdb.Txn, table string, policy Policy, obj record) error {
	if policy == PolicyKeyedUpsert {
		existing, err := txn.First(table, "key", obj.Key())
		if err != nil {
			return err
		}
		if existing != nil {
			// replace in place
			obj.SetSeq(existing.(sequenced).GetSeq())
			return txn.Insert(table, obj)
		}
	}

	s.seq[table]++
	obj.SetSeq(s.seq[table])

	return txn.Insert(table, obj)
}

func (s *State) list(ws memdb.WatchSet, table string) (memdb.ResultIterator, error) {
	txn := s.memdb.Txn(false)

	iter, err := txn.Get(table, "id")
	if err != nil {
		return nil, err
	}
	ws.Add(iter.WatchCh())
	return iter, nil
}

// Airlines returns the airlines in registration order
func (s *State) Airlines(ws memdb.WatchSet) ([]*structs.Airline, error) {
	iter, err := s.list(ws, airlinesTable)
	if err != nil {
		return nil, err
	}
	res := []*structs.Airline{}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		res = append(res, obj.(*structs.Airline))
	}
	return res, nil
}

func (s *State) AirlineByAddress(key string) (*structs.Airline, error) {
	txn := s.memdb.Txn(false)

	obj, err := txn.First(airlinesTable, "key", key)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*structs.Airline), nil
}

func (s *State) Flights(ws memdb.WatchSet) ([]*structs.Flight, error) {
	iter, err := s.list(ws, flightsTable)
	if err != nil {
		return nil, err
	}
	res := []*structs.Flight{}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		res = append(res, obj.(*structs.Flight))
	}
	return res, nil
}

func (s *State) FlightStatuses(ws memdb.WatchSet) ([]*structs.FlightStatus, error) {
	iter, err := s.list(ws, flightStatusTable)
	if err != nil {
		return nil, err
	}
	res := []*structs.FlightStatus{}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		res = append(res, obj.(*structs.FlightStatus))
	}
	return res, nil
}

// Balance returns the last known balance, with a nil amount if
// none has been observed yet
func (s *State) Balance(ws memdb.WatchSet) (*structs.ContractBalance, error) {
	txn := s.memdb.Txn(false)

	watchCh, obj, err := txn.FirstWatch(balanceTable, "id", balanceID)
	if err != nil {
		return nil, err
	}
	ws.Add(watchCh)

	if obj == nil {
		return &structs.ContractBalance{}, nil
	}
	balance := obj.(*balanceRecord).Balance
	return &structs.ContractBalance{Amount: balance.Amount}, nil
}

func (s *State) Oracles(ws memdb.WatchSet) ([]*structs.Oracle, error) {
	iter, err := s.list(ws, oraclesTable)
	if err != nil {
		return nil, err
	}
	res := []*structs.Oracle{}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		res = append(res, obj.(*structs.Oracle))
	}
	return res, nil
}

// OraclesByIndex returns the oracles that hold the index
func (s *State) OraclesByIndex(index uint64) ([]*structs.Oracle, error) {
	txn := s.memdb.Txn(false)

	iter, err := txn.Get(oraclesTable, "index", index)
	if err != nil {
		return nil, err
	}
	res := []*structs.Oracle{}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		res = append(res, obj.(*structs.Oracle))
	}
	return res, nil
}

func (s *State) Fanouts(ws memdb.WatchSet) ([]*structs.FanoutReport, error) {
	iter, err := s.list(ws, fanoutsTable)
	if err != nil {
		return nil, err
	}
	res := []*structs.FanoutReport{}
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		res = append(res, obj.(*structs.FanoutReport))
	}
	return res, nil
}

func (s *State) FanoutByID(id string) (*structs.FanoutReport, error) {
	txn := s.memdb.Txn(false)

	obj, err := txn.First(fanoutsTable, "key", id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*structs.FanoutReport), nil
}

// Snapshot returns the current contents of a collection
func (s *State) Snapshot(ws memdb.WatchSet, collection Collection) (interface{}, error) {
	switch collection {
	case CollectionAirlines:
		return s.Airlines(ws)
	case CollectionFlights:
		return s.Flights(ws)
	case CollectionFlightStatus:
		return s.FlightStatuses(ws)
	case CollectionBalance:
		return s.Balance(ws)
	case CollectionOracles:
		return s.Oracles(ws)
	case CollectionRequests:
		return s.Fanouts(ws)
	default:
		return nil, fmt.Errorf("collection '%s' not found", collection)
	}
}

// Dump is the persisted form of the projections
type Dump struct {
	Airlines     []*structs.Airline       `json:"airlines"`
	Flights      []*structs.Flight        `json:"flights"`
	FlightStatus []*structs.FlightStatus  `json:"flightStatus"`
	Oracles      []*structs.Oracle        `json:"oracles"`
	Balance      *structs.ContractBalance `json:"balance"`
}

// Dump returns a consistent copy of the projections
func (s *State) Dump() (*Dump, error) {
	// each list is read in its own transaction. Checkpoints are taken
	// from the event loop, which is the only writer of these tables
	ws := memdb.NewWatchSet()

	var err error
	dump := &Dump{}
	if dump.Airlines, err = s.Airlines(ws); err != nil {
		return nil, err
	}
	if dump.Flights, err = s.Flights(ws); err != nil {
		return nil, err
	}
	if dump.FlightStatus, err = s.FlightStatuses(ws); err != nil {
		return nil, err
	}
	if dump.Oracles, err = s.Oracles(ws); err != nil {
		return nil, err
	}
	if dump.Balance, err = s.Balance(ws); err != nil {
		return nil, err
	}
	return dump, nil
}

// Restore loads a dump keeping the order of each collection
func (s *State) Restore(dump *Dump) error {
	txn := s.memdb.Txn(true)
	defer txn.Abort()

	for _, obj := range dump.Airlines {
		if err := s.putTxn(txn, airlinesTable, PolicyAppendOnly, obj.Copy()); err != nil {
			return err
		}
	}
	for _, obj := range dump.Flights {
		if err := s.putTxn(txn, flightsTable, PolicyAppendOnly, obj.Copy()); err != nil {
			return err
		}
	}
	for _, obj := range dump.FlightStatus {
		if err := s.putTxn(txn, flightStatusTable, PolicyAppendOnly, obj.Copy()); err != nil {
			return err
		}
	}
	for _, obj := range dump.Oracles {
		if err := s.putTxn(txn, oraclesTable, PolicyAppendOnly, obj.Copy()); err != nil {
			return err
		}
	}
	if dump.Balance != nil && dump.Balance.Amount != nil {
		obj := &balanceRecord{
			ID:      balanceID,
			Balance: &structs.ContractBalance{Amount: dump.Balance.Amount},
		}
		if err := txn.Insert(balanceTable, obj); err != nil {
			return err
		}
	}
	txn.Commit()
	return nil
}
