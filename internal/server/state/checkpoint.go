package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/golang/snappy"
)

var (
	checkpointBucket = []byte("checkpoint")
	cursorKey        = []byte("cursor")
	projectionsKey   = []byte("projections")
)

// ErrNoCheckpoint is returned by Load when nothing has been saved yet
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Checkpoint persists the projections together with the last
// processed block so that a restart resumes instead of replaying
type Checkpoint struct {
	db *bolt.DB
}

func NewCheckpoint(path string) (*Checkpoint, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	c := &Checkpoint{
		db: db,
	}
	return c, nil
}

// Save writes the block cursor and the projections in the same transaction
func (c *Checkpoint) Save(block uint64, dump *Dump) error {
	data, err := json.Marshal(dump)
	if err != nil {
		return err
	}
	cursor := make([]byte, 8)
	binary.BigEndian.PutUint64(cursor, block)

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(checkpointBucket)
		if err := b.Put(cursorKey, cursor); err != nil {
			return err
		}
		return b.Put(projectionsKey, snappy.Encode(nil, data))
	})
}

// Load returns the last processed block and the projections at that block
func (c *Checkpoint) Load() (uint64, *Dump, error) {
	var block uint64
	var dump *Dump

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(checkpointBucket)

		cursor := b.Get(cursorKey)
		if cursor == nil {
			return ErrNoCheckpoint
		}
		if len(cursor) != 8 {
			return fmt.Errorf("bad cursor size %d", len(cursor))
		}
		block = binary.BigEndian.Uint64(cursor)

		raw, err := snappy.Decode(nil, b.Get(projectionsKey))
		if err != nil {
			return fmt.Errorf("failed to decompress projections: %v", err)
		}
		dump = &Dump{}
		if err := json.Unmarshal(raw, dump); err != nil {
			return fmt.Errorf("failed to decode projections: %v", err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return block, dump, nil
}

func (c *Checkpoint) Close() error {
	return c.db.Close()
}
