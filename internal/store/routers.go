package store

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"
)

// Options configures NewRouterSet.
type Options struct {
	// UsePrimary enables the Postgres primary. With UsePrimary set and a nil
	// DB every primary call is unavailable and served by the fallback.
	UsePrimary     bool
	DB             *sql.DB
	PrimaryTimeout time.Duration
	DataDir        string
	LockTimeout    time.Duration
	Logger         zerolog.Logger
	Metrics        *Metrics
}

// NewRouterSet builds a router for every collection.
func NewRouterSet(o Options) (RouterSet, error) {
	set := make(RouterSet, len(schemas))
	for _, name := range Collections() {
		schema := MustSchema(name)
		fallback, err := NewFileStore(o.DataDir, schema, o.LockTimeout)
		if err != nil {
			return nil, err
		}
		var primary Adapter
		if o.UsePrimary {
			primary = NewPostgres(o.DB, schema, o.PrimaryTimeout)
		}
		set[name] = NewRouter(name, primary, fallback, o.Logger, o.Metrics)
	}
	return set, nil
}
