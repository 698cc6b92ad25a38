// Package reconcile moves records written to the local fallback while the
// primary was unavailable into the primary, then drops them locally.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/aide/internal/store"
)

// Source is the local side: every record of every user.
type Source interface {
	All(ctx context.Context) ([]store.Record, error)
	RemoveIDs(ctx context.Context, ids []string) (int, error)
}

// Target is the primary. Import reports false when the id already exists.
type Target interface {
	Import(ctx context.Context, rec store.Record) (bool, error)
}

// Pair is one collection's source and target.
type Pair struct {
	Collection string
	Source     Source
	Target     Target
}

// Report counts what happened to one collection. Rejected lists the records
// the primary refused as written; they stay local.
type Report struct {
	Collection string   `json:"collection"`
	Imported   int      `json:"imported"`
	Existing   int      `json:"existing"`
	Removed    int      `json:"removed"`
	Rejected   []string `json:"rejected,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type Job struct {
	pairs  []Pair
	logger zerolog.Logger
}

func NewJob(pairs []Pair, logger zerolog.Logger) *Job {
	return &Job{pairs: pairs, logger: logger.With().Str("component", "reconcile").Logger()}
}

// Options configures NewStoreJob.
type Options struct {
	DB             *sql.DB
	PrimaryTimeout time.Duration
	DataDir        string
	LockTimeout    time.Duration
	Logger         zerolog.Logger
}

// NewStoreJob pairs the file store and Postgres table of every collection.
func NewStoreJob(o Options) (*Job, error) {
	if o.DB == nil {
		return nil, errors.New("reconcile: primary database is not configured")
	}
	pairs := make([]Pair, 0, len(store.Collections()))
	for _, name := range store.Collections() {
		schema := store.MustSchema(name)
		fs, err := store.NewFileStore(o.DataDir, schema, o.LockTimeout)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Collection: name, Source: fs, Target: store.NewPostgres(o.DB, schema, o.PrimaryTimeout)})
	}
	return NewJob(pairs, o.Logger), nil
}

// Run reconciles every collection. A record is removed locally only once the
// primary holds it; a collection that fails keeps its remaining records for
// the next run and does not stop the others.
func (j *Job) Run(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(j.pairs))
	var errs []error
	for _, p := range j.pairs {
		r, err := j.collection(ctx, p)
		if err != nil {
			r.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", p.Collection, err))
			j.logger.Warn().Err(err).Str("collection", p.Collection).Msg("reconcile incomplete")
		}
		if r.Imported+r.Existing+len(r.Rejected) > 0 || err != nil {
			j.logger.Info().Str("collection", p.Collection).Int("imported", r.Imported).Int("existing", r.Existing).
				Int("removed", r.Removed).Int("rejected", len(r.Rejected)).Msg("reconciled")
		}
		reports = append(reports, r)
	}
	return reports, errors.Join(errs...)
}

func (j *Job) collection(ctx context.Context, p Pair) (Report, error) {
	r := Report{Collection: p.Collection}
	recs, err := p.Source.All(ctx)
	if err != nil {
		return r, err
	}
	done := make([]string, 0, len(recs))
	var importErr error
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			importErr = err
			break
		}
		inserted, err := p.Target.Import(ctx, rec)
		if errors.Is(err, store.ErrBackendOperation) {
			r.Rejected = append(r.Rejected, rec.ID)
			j.logger.Warn().Err(err).Str("collection", p.Collection).Str("id", rec.ID).Msg("primary rejected record, keeping it locally")
			continue
		}
		if err != nil {
			// primary gone again: stop, keep the rest for the next run
			importErr = err
			break
		}
		if inserted {
			r.Imported++
		} else {
			r.Existing++
		}
		done = append(done, rec.ID)
	}
	if len(done) > 0 {
		n, err := p.Source.RemoveIDs(ctx, done)
		r.Removed = n
		if err != nil {
			return r, errors.Join(importErr, err)
		}
	}
	return r, importErr
}
