package embeddings

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/snappy"
)

const keyPrefix = "emb/v1/"

// BadgerStore persists vectors in BadgerDB as snappy-compressed little-endian
// float32 arrays. Entries expire after the configured TTL.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadger opens a BadgerDB at dir. An empty dir opens an in-memory DB.
func OpenBadger(dir string, ttl time.Duration) (*BadgerStore, error) {
	return openBadger(badgerOptions(dir), ttl)
}

func badgerOptions(dir string) badger.Options {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	return opts
}

func openBadger(opts badger.Options, ttl time.Duration) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

func (s *BadgerStore) Load(_ context.Context, key string) ([]float32, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}

	vec, err := decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return vec, true, nil
}

func (s *BadgerStore) Save(_ context.Context, key string, vec []float32) error {
	entry := badger.NewEntry([]byte(keyPrefix+key), encode(vec))
	if s.ttl > 0 {
		entry = entry.WithTTL(s.ttl)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Close closes the underlying DB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return snappy.Encode(nil, buf)
}

func decode(raw []byte) ([]float32, error) {
	buf, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
