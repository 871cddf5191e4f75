// Package badgerstore persists resolved denominations in a local Badger database.
package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"ibctrace/internal/model"
	"ibctrace/internal/resolver"
)

const keyPrefix = "res/"

// ResolutionStore implements resolver.Backing on Badger.
type ResolutionStore struct {
	db *badger.DB
}

// Open opens the database at path. An empty path keeps everything in memory.
func Open(path string, logger *zap.Logger) (*ResolutionStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	if logger != nil {
		opts.Logger = badgerLogger{logger.Sugar()}
	} else {
		opts.Logger = nil
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open resolution db at %s: %w", path, err)
	}
	return &ResolutionStore{db: db}, nil
}

func key(scope string, origin model.ChainID, observed string) []byte {
	return []byte(keyPrefix + scope + "/" + string(origin) + "/" + observed)
}

// Load returns the resolution stored under scope, if any.
func (s *ResolutionStore) Load(scope string, origin model.ChainID, observed string) (resolver.Resolution, bool, error) {
	var res resolver.Resolution
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(scope, origin, observed))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return resolver.Resolution{}, false, nil
	}
	if err != nil {
		return resolver.Resolution{}, false, fmt.Errorf("badger get: %w", err)
	}
	return res, true, nil
}

// Store writes res under scope, replacing any earlier entry.
func (s *ResolutionStore) Store(scope string, res resolver.Resolution) error {
	val, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(scope, res.Origin, res.Observed), val)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Count returns the number of entries stored under scope.
func (s *ResolutionStore) Count(scope string) (int, error) {
	prefix := []byte(keyPrefix + scope + "/")
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *ResolutionStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
