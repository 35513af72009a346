package state

import (
	"encoding/binary"
	"fmt"

	"github.com/umbracle/flight-relay/internal/server/structs"
)

type sequenced interface {
	GetSeq() uint64
	SetSeq(seq uint64)
}

type keyed interface {
	Key() string
}

type record interface {
	sequenced
	keyed
}

// seqIndex indexes records by their position in big endian so that
// iterating the index returns them in insertion order
type seqIndex struct {
}

func (s *seqIndex) FromObject(raw interface{}) (bool, []byte, error) {
	obj, ok := raw.(sequenced)
	if !ok {
		return false, nil, fmt.Errorf("obj %T is not sequenced", raw)
	}

	bb := &bytesWritter{}
	bb.uint64(obj.GetSeq())

	return true, bb.out, nil
}

// FromArgs returns an empty prefix without arguments, which
// iterates the whole collection
func (s *seqIndex) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) == 0 {
		return []byte{}, nil
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("1 args expected but %d found", len(args))
	}
	seq, ok := args[0].(uint64)
	if !ok {
		return nil, fmt.Errorf("index 0 is not uint64 seq")
	}

	bb := &bytesWritter{}
	bb.uint64(seq)

	return bb.out, nil
}

type keyIndex struct {
}

func (k *keyIndex) FromObject(raw interface{}) (bool, []byte, error) {
	obj, ok := raw.(keyed)
	if !ok {
		return false, nil, fmt.Errorf("obj %T is not keyed", raw)
	}

	bb := &bytesWritter{}
	bb.string(obj.Key())

	return true, bb.out, nil
}

func (k *keyIndex) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	key, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("index 0 is not a string key")
	}

	bb := &bytesWritter{}
	bb.string(key)

	return bb.out, nil
}

type oracleIndex struct {
}

func (o *oracleIndex) FromObject(raw interface{}) (bool, [][]byte, error) {
	oracle, ok := raw.(*structs.Oracle)
	if !ok {
		return false, nil, fmt.Errorf("obj is not oracle")
	}
	if len(oracle.Indexes) == 0 {
		return false, nil, nil
	}

	buf := [][]byte{}
	for _, index := range oracle.Indexes {
		bb := &bytesWritter{}
		bb.uint64(index)
		buf = append(buf, bb.out)
	}
	return true, buf, nil
}

func (o *oracleIndex) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	index, ok := args[0].(uint64)
	if !ok {
		return nil, fmt.Errorf("index 0 is not uint64 oracle index")
	}

	bb := &bytesWritter{}
	bb.uint64(index)

	return bb.out, nil
}

type bytesWritter struct {
	out []byte
}

func (b *bytesWritter) write(buf []byte) {
	if b.out == nil {
		b.out = []byte{}
	}
	b.out = append(b.out, buf...)
}

func (b *bytesWritter) uint64(i uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	b.write(buf)
}

func (b *bytesWritter) string(s string) {
	b.write([]byte(s + "\x00"))
}
