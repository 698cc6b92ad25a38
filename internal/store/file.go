package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const fileBackend = "file"

// FileStore is the local fallback adapter. Each collection lives in one JSON
// file holding the records of every user in insertion order. Writes hold an
// exclusive lock on a sidecar lock file for the read-modify-write cycle and
// replace the data file atomically, so the file stays parseable even if the
// process dies mid-write.
type FileStore struct {
	path        string
	schema      *Schema
	lockTimeout time.Duration
	now         func() time.Time
}

// NewFileStore creates dir if needed. The data file is created lazily.
func NewFileStore(dir string, schema *Schema, lockTimeout time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &FileStore{
		path:        filepath.Join(dir, schema.Collection+".json"),
		schema:      schema,
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// Path returns the data file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Create(ctx context.Context, userID string, fields Fields) (Record, error) {
	now := s.now()
	clean, err := s.schema.Normalize(fields, now)
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: uuid.NewString(), UserID: userID, Fields: clean, CreatedAt: now, UpdatedAt: now}
	err = s.mutate(ctx, OpCreate, func(recs []Record) ([]Record, error) {
		return append(recs, rec), nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *FileStore) List(ctx context.Context, userID string, filter Filter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var out []Record
	err := s.withLock(ctx, OpList, false, func() error {
		recs, err := s.load()
		if err != nil {
			return rejected(fileBackend, OpList, err)
		}
		for _, r := range recs {
			if r.UserID == userID {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applyFilter(s.schema, filter, out), nil
}

func (s *FileStore) Update(ctx context.Context, userID, id string, patch Fields) (Record, error) {
	now := s.now()
	clean, err := s.schema.NormalizePatch(patch, now)
	if err != nil {
		return Record{}, err
	}
	var updated Record
	err = s.mutate(ctx, OpUpdate, func(recs []Record) ([]Record, error) {
		i := indexOf(recs, userID, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		r := recs[i]
		r.Fields = r.Fields.clone()
		for k, v := range clean {
			if v == nil {
				delete(r.Fields, k)
				continue
			}
			r.Fields[k] = v
		}
		r.UpdatedAt = now
		recs[i] = r
		updated = r
		return recs, nil
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

func (s *FileStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, OpDelete, func(recs []Record) ([]Record, error) {
		i := indexOf(recs, userID, id)
		if i < 0 {
			return nil, nil
		}
		removed = true
		return append(recs[:i], recs[i+1:]...), nil
	})
	return removed, err
}

// All returns every record of every user. Used by reconciliation.
func (s *FileStore) All(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.withLock(ctx, OpList, false, func() error {
		recs, err := s.load()
		if err != nil {
			return rejected(fileBackend, OpList, err)
		}
		out = recs
		return nil
	})
	return out, err
}

// RemoveIDs deletes the given ids regardless of owner and reports how many
// were removed. Used by reconciliation once the primary holds the records.
func (s *FileStore) RemoveIDs(ctx context.Context, ids []string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	n := 0
	err := s.mutate(ctx, OpDelete, func(recs []Record) ([]Record, error) {
		kept := recs[:0]
		for _, r := range recs {
			if _, ok := drop[r.ID]; ok {
				n++
				continue
			}
			kept = append(kept, r)
		}
		if n == 0 {
			return nil, nil
		}
		return kept, nil
	})
	return n, err
}

// mutate runs fn over the current records under the exclusive lock and
// writes the result. A nil slice with a nil error means nothing changed.
func (s *FileStore) mutate(ctx context.Context, op Op, fn func([]Record) ([]Record, error)) error {
	return s.withLock(ctx, op, true, func() error {
		recs, err := s.load()
		if err != nil {
			return rejected(fileBackend, op, err)
		}
		next, err := fn(recs)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		if err := s.save(next); err != nil {
			return rejected(fileBackend, op, err)
		}
		return nil
	})
}

func (s *FileStore) withLock(ctx context.Context, op Op, exclusive bool, fn func() error) error {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(s.path + ".lock")
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(lctx, 10*time.Millisecond)
	} else {
		locked, err = fl.TryRLockContext(lctx, 10*time.Millisecond)
	}
	if err != nil || !locked {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return unavailable(fileBackend, op, fmt.Errorf("lock %s: %w", fl.Path(), err))
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []Record{}, nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	for i := range recs {
		recs[i].Fields = s.schema.Coerce(recs[i].Fields)
	}
	return recs, nil
}

func (s *FileStore) save(recs []Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func indexOf(recs []Record, userID, id string) int {
	for i, r := range recs {
		if r.ID == id && r.UserID == userID {
			return i
		}
	}
	return -1
}
