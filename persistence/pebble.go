package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/sirupsen/logrus"

	"github.com/bouthilx/track/structure"
)

func init() {
	Register("pebble", func(ctx context.Context, uri URI) (Storage, error) {
		return OpenPebble(uri.Location())
	})
}

const (
	pebbleProjectPrefix = "project/"
	pebbleGroupPrefix   = "group/"
	pebbleTrialPrefix   = "trial/"
)

// PebbleStorage keeps the object graph in a pebble key-value store, one
// keyspace per object kind with uid keys and JSON values. Key order is uid
// order, which keeps loads deterministic.
type PebbleStorage struct {
	*table
	db *pebble.DB
}

func pebbleOptions() *pebble.Options {
	// Metadata-scale data, keep the defaults except for a modest memtable.
	return &pebble.Options{
		MemTableSize: 16 << 20,
		MaxOpenFiles: 1024,
	}
}

// OpenPebble opens (or creates) a pebble database directory and loads the
// stored object graph.
func OpenPebble(dir string) (*PebbleStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble storage: empty directory")
	}

	db, err := pebble.Open(dir, pebbleOptions())
	if err != nil {
		return nil, fmt.Errorf("pebble storage: open %s: %w", dir, err)
	}

	s := &PebbleStorage{table: newTable(), db: db}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PebbleStorage) load() error {
	var snap snapshot

	if err := s.scanPrefix(pebbleProjectPrefix, func(raw []byte) error {
		var p structure.Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		snap.Projects = append(snap.Projects, &p)
		return nil
	}); err != nil {
		return fmt.Errorf("pebble storage: load projects: %w", err)
	}

	if err := s.scanPrefix(pebbleGroupPrefix, func(raw []byte) error {
		var g structure.TrialGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		snap.Groups = append(snap.Groups, &g)
		return nil
	}); err != nil {
		return fmt.Errorf("pebble storage: load groups: %w", err)
	}

	if err := s.scanPrefix(pebbleTrialPrefix, func(raw []byte) error {
		var t structure.Trial
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		snap.Trials = append(snap.Trials, &t)
		return nil
	}); err != nil {
		return fmt.Errorf("pebble storage: load trials: %w", err)
	}

	s.restore(snap)
	return nil
}

func (s *PebbleStorage) scanPrefix(prefix string, visit func(raw []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		if err := visit(value); err != nil {
			return err
		}
	}
	return iter.Error()
}

// keyUpperBound is the smallest key greater than every key with the given
// prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStorage) Refresh(ctx context.Context) error {
	return s.load()
}

func (s *PebbleStorage) Commit(ctx context.Context, pathOverride string) error {
	if pathOverride != "" {
		logrus.Debugf("pebble storage ignores path override %q", pathOverride)
	}

	snap := s.snapshot()

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, p := range snap.Projects {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("pebble storage: commit project %s: %w", p.UID, err)
		}
		if err := batch.Set([]byte(pebbleProjectPrefix+p.UID), raw, pebble.NoSync); err != nil {
			return fmt.Errorf("pebble storage: commit project %s: %w", p.UID, err)
		}
	}
	for _, g := range snap.Groups {
		raw, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("pebble storage: commit group %s: %w", g.UID, err)
		}
		if err := batch.Set([]byte(pebbleGroupPrefix+g.UID), raw, pebble.NoSync); err != nil {
			return fmt.Errorf("pebble storage: commit group %s: %w", g.UID, err)
		}
	}
	for _, t := range snap.Trials {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("pebble storage: commit trial %s: %w", t.UID, err)
		}
		if err := batch.Set([]byte(pebbleTrialPrefix+t.UID), raw, pebble.NoSync); err != nil {
			return fmt.Errorf("pebble storage: commit trial %s: %w", t.UID, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble storage: commit: %w", err)
	}
	return nil
}

func (s *PebbleStorage) Close() error {
	return s.db.Close()
}
