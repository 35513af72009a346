package state

import (
	"github.com/hashicorp/go-memdb"
)

const (
	airlinesTable     = "airlines"
	flightsTable      = "flights"
	flightStatusTable = "flightStatus"
	balanceTable      = "balance"
	oraclesTable      = "oracles"
	fanoutsTable      = "fanouts"
)

// sequencedTable is the schema of a collection ordered by insertion
// and looked up by its natural key
func sequencedTable(name string, extra map[string]*memdb.IndexSchema) *memdb.TableSchema {
	indexes := map[string]*memdb.IndexSchema{
		// position in the collection
		"id": {
			Name:    "id",
			Unique:  true,
			Indexer: &seqIndex{},
		},
		// natural key of the record
		"key": {
			Name:    "key",
			Indexer: &keyIndex{},
		},
	}
	for k, index := range extra {
		indexes[k] = index
	}
	return &memdb.TableSchema{
		Name:    name,
		Indexes: indexes,
	}
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		airlinesTable:     sequencedTable(airlinesTable, nil),
		flightsTable:      sequencedTable(flightsTable, nil),
		flightStatusTable: sequencedTable(flightStatusTable, nil),
		fanoutsTable:      sequencedTable(fanoutsTable, nil),
		oraclesTable: sequencedTable(oraclesTable, map[string]*memdb.IndexSchema{
			// oracles by each of their assigned indexes
			"index": {
				Name:         "index",
				AllowMissing: true,
				Indexer:      &oracleIndex{},
			},
		}),
		balanceTable: {
			Name: balanceTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
	},
}
