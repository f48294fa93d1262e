// Package history persists analysis reports in an embedded badger store so
// earlier runs can be listed and compared.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ritzau/relgraph/pkg/clusters"
	"github.com/ritzau/relgraph/pkg/layout"
	"github.com/ritzau/relgraph/pkg/logging"
	"github.com/ritzau/relgraph/pkg/network"
)

// ErrNotFound is returned by Get for an unknown report id.
var ErrNotFound = errors.New("report not found")

// Key prefixes
const (
	prefixReport = "r:"  // r:<unix nanos>:<id> -> report json
	prefixIndex  = "id:" // id:<id> -> report key
)

// Report is one complete analysis of a graph revision.
type Report struct {
	ID        string              `json:"id"`
	Source    string              `json:"source"`
	CreatedAt time.Time           `json:"createdAt"`
	Revision  uint64              `json:"revision"`
	Warnings  int                 `json:"warnings"`
	Metrics   *network.Metrics    `json:"metrics,omitempty"`
	Clusters  *clusters.Partition `json:"clusters,omitempty"`
	Layout    *layout.Result      `json:"layout,omitempty"`
}

// Store is a badger backed report history. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

var logger = logging.New("history")

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
}

// OpenInMemory opens a store that is discarded on Close.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func reportKey(r *Report) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixReport, r.CreatedAt.UnixNano(), r.ID))
}

// Save stores r, assigning ID and CreatedAt when unset.
func (s *Store) Save(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	key := reportKey(r)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixIndex+r.ID), key)
	})
	if err != nil {
		return fmt.Errorf("saving report %s: %w", r.ID, err)
	}
	logger.DebugContext(ctx, "report saved", "id", r.ID, "revision", r.Revision)
	return nil
}

// Get loads one report by id.
func (s *Store) Get(ctx context.Context, id string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r Report
	err := s.db.View(func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(prefixIndex + id))
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}
	return &r, nil
}

// List returns up to limit reports, newest first. A limit <= 0 lists all.
func (s *Store) List(ctx context.Context, limit int) ([]*Report, error) {
	reports := make([]*Report, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixReport)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefixReport + "\xff")); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Report
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				logger.Warn("skipping unreadable report", "key", string(it.Item().Key()), "error", err)
				continue
			}
			reports = append(reports, &r)
			if limit > 0 && len(reports) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// Prune deletes all but the newest keep reports and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	all, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}
	stale := all[keep:]
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range stale {
		if err := wb.Delete(reportKey(r)); err != nil {
			return 0, fmt.Errorf("pruning report %s: %w", r.ID, err)
		}
		if err := wb.Delete([]byte(prefixIndex + r.ID)); err != nil {
			return 0, fmt.Errorf("pruning report %s: %w", r.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}
	return len(stale), nil
}
