// Package badgerlog implements the replicated-log contract on a local
// BadgerDB for standalone deployments, equivalent to running the consensus
// log with a one-member quorum. GetLeader always reports the local node.
package badgerlog

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/zenjugit/zeppelin/internal/store"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

type Store struct {
	db   *badger.DB
	ip   string
	port int
}

var _ store.Log = (*Store)(nil)

// Open opens (or creates) the store at path. The given ip and port are what
// GetLeader reports.
func Open(path, ip string, port int) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, ip: ip, port: port}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetLeader() (string, int, bool) {
	return s.ip, s.port, true
}

func (s *Store) Read(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// DirtyRead is Read; a single-member log has no staleness to trade away.
func (s *Store) DirtyRead(key string) ([]byte, error) {
	return s.Read(key)
}

func (s *Store) Write(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
