// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package store persists circuits and detection results in a BadgerDB
// database.
//
// Records are JSON encoded. Circuits are stored under circuit/<id> and their
// results under result/<circuit id>/<result id>. Ids are time ordered UUIDs,
// so that key order is creation order.
//
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/db47h/hazsim"
	"github.com/db47h/hazsim/detect"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a circuit or result does not exist.
//
var ErrNotFound = errors.New("not found")

// Config holds the database configuration.
//
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives BadgerDB's internal logs. If nil, they are discarded.
	Logger *slog.Logger
}

// InMemoryConfig returns a configuration for a throw-away database.
//
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Store is a circuit and result store. It is safe for concurrent use.
//
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens the database described by cfg, creating it if needed.
//
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("database path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
//
func (s *Store) Close() error {
	return s.db.Close()
}

// A Circuit is a stored circuit description.
//
type Circuit struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Expression  string              `json:"expression,omitempty"`
	Description *hazsim.Description `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ResultType is the type of a stored detection result.
//
type ResultType string

// Result types.
//
const (
	RaceCondition ResultType = "race_condition"
	Hazard        ResultType = "hazard"
)

// A Result is one finding of a detection run on a stored circuit.
//
type Result struct {
	ID          string          `json:"id"`
	CircuitID   string          `json:"circuit_id"`
	Type        ResultType      `json:"type"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	circuitPrefix = "circuit/"
	resultPrefix  = "result/"
)

func circuitKey(id string) []byte { return []byte(circuitPrefix + id) }
func resultsPrefix(circuitID string) []byte {
	return []byte(resultPrefix + circuitID + "/")
}
func resultKey(circuitID, id string) []byte {
	return []byte(resultPrefix + circuitID + "/" + id)
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "generate id")
	}
	return id.String(), nil
}

func notFound(what, id string) error {
	return errors.Wrap(ErrNotFound, what+" "+id)
}

func set(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return txn.Set(key, data)
}

func get(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// scan decodes every value under prefix, in key order, calling fn for each.
//
func scan(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// CreateCircuit stores c, setting its ID and creation time.
//
func (s *Store) CreateCircuit(ctx context.Context, c *Circuit) error {
	id, err := newID()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = s.now().UTC()
	return errors.Wrap(s.db.Update(func(txn *badger.Txn) error {
		return set(txn, circuitKey(c.ID), c)
	}), "create circuit")
}

// GetCircuit returns the circuit with the given id.
//
func (s *Store) GetCircuit(ctx context.Context, id string) (*Circuit, error) {
	var c Circuit
	err := s.db.View(func(txn *badger.Txn) error {
		return get(txn, circuitKey(id), &c)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("circuit", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get circuit "+id)
	}
	return &c, nil
}

// ListCircuits returns all circuits in creation order.
//
func (s *Store) ListCircuits(ctx context.Context) ([]*Circuit, error) {
	cs := make([]*Circuit, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(ctx, txn, []byte(circuitPrefix), func(val []byte) error {
			var c Circuit
			if err := json.Unmarshal(val, &c); err != nil {
				return err
			}
			cs = append(cs, &c)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list circuits")
	}
	return cs, nil
}

// DeleteCircuit deletes a circuit and all its results.
//
func (s *Store) DeleteCircuit(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(circuitKey(id)); err != nil {
			return err
		}
		var keys [][]byte
		prefix := resultsPrefix(id)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(circuitKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("circuit", id)
	}
	return errors.Wrap(err, "delete circuit "+id)
}

// AddResult stores r for circuit r.CircuitID, setting its ID and creation
// time.
//
func (s *Store) AddResult(ctx context.Context, r *Result) error {
	return s.addResults(r.CircuitID, []*Result{r})
}

func (s *Store) addResults(circuitID string, rs []*Result) error {
	now := s.now().UTC()
	for _, r := range rs {
		id, err := newID()
		if err != nil {
			return err
		}
		r.ID = id
		r.CircuitID = circuitID
		r.CreatedAt = now
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(circuitKey(circuitID)); err != nil {
			return err
		}
		for _, r := range rs {
			if err := set(txn, resultKey(circuitID, r.ID), r); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("circuit", circuitID)
	}
	return errors.Wrap(err, "add results")
}

// AddReport stores every race and hazard of rep as a result of the given
// circuit, in a single transaction. It returns the stored results.
//
func (s *Store) AddReport(ctx context.Context, circuitID string, rep detect.Report) ([]*Result, error) {
	rs := make([]*Result, 0, len(rep.RaceConditions)+len(rep.Hazards))
	for _, r := range rep.RaceConditions {
		details, err := json.Marshal(r)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		rs = append(rs, &Result{
			Type: RaceCondition,
			Description: fmt.Sprintf("race at gate %s (%s) between %s (%gns) and %s (%gns)",
				r.GateID, r.GateType, r.Input1, r.Delay1, r.Input2, r.Delay2),
			Details: details,
		})
	}
	for _, h := range rep.Hazards {
		details, err := json.Marshal(h)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		rs = append(rs, &Result{Type: Hazard, Description: h.Description, Details: details})
	}
	if len(rs) == 0 {
		return rs, nil
	}
	if err := s.addResults(circuitID, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Results returns the results of a circuit in creation order.
//
func (s *Store) Results(ctx context.Context, circuitID string) ([]*Result, error) {
	rs := make([]*Result, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(circuitKey(circuitID)); err != nil {
			return err
		}
		return scan(ctx, txn, resultsPrefix(circuitID), func(val []byte) error {
			var r Result
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			rs = append(rs, &r)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("circuit", circuitID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list results")
	}
	return rs, nil
}

// LatestResult returns the most recent result of the given type for a
// circuit. An empty typ matches any type.
//
func (s *Store) LatestResult(ctx context.Context, circuitID string, typ ResultType) (*Result, error) {
	rs, err := s.Results(ctx, circuitID)
	if err != nil {
		return nil, err
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if typ == "" || rs[i].Type == typ {
			return rs[i], nil
		}
	}
	return nil, notFound("result for circuit", circuitID)
}
