package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mohammad-safakhou/aide/internal/logging"
)

const postgresBackend = "postgres"

// rlsSetting is the session setting the row level security policies read.
const rlsSetting = "aide.user_id"

var errNotConfigured = errors.New("postgres is not configured")

// Postgres is the primary adapter. Each collection is one table with a column
// per schema field. Every call runs in a transaction that sets the RLS user
// before touching the table and is bounded by timeout on a context that
// ignores caller cancellation.
type Postgres struct {
	DB      *sql.DB
	schema  *Schema
	timeout time.Duration
	now     func() time.Time
}

// OpenPostgres opens a pool without connecting; the first call connects.
func OpenPostgres(dsn string, maxOpen int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	return db, nil
}

// NewPostgres builds the primary adapter for schema. A nil db yields an
// adapter that reports every call as unavailable.
func NewPostgres(db *sql.DB, schema *Schema, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Postgres{
		DB:      db,
		schema:  schema,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Ping checks connectivity within the adapter timeout.
func (p *Postgres) Ping(ctx context.Context) error {
	if p.DB == nil {
		return unavailable(postgresBackend, OpList, errNotConfigured)
	}
	ctx, cancel := logging.DetachWithTimeout(ctx, p.timeout)
	defer cancel()
	return p.classify(OpList, p.DB.PingContext(ctx))
}

func (p *Postgres) Create(ctx context.Context, userID string, fields Fields) (Record, error) {
	now := p.now()
	clean, err := p.schema.Normalize(fields, now)
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: uuid.NewString(), UserID: userID, Fields: clean, CreatedAt: now, UpdatedAt: now}
	err = p.inTx(ctx, OpCreate, userID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, p.insertSQL(false), p.insertArgs(rec)...)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, userID string, filter Filter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var out []Record
	err := p.inTx(ctx, OpList, userID, func(ctx context.Context, tx *sql.Tx) error {
		q := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at, id", p.columns(), p.table())
		rows, err := tx.QueryContext(ctx, q, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := p.scan(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return applyFilter(p.schema, filter, out), nil
}

func (p *Postgres) Update(ctx context.Context, userID, id string, patch Fields) (Record, error) {
	now := p.now()
	clean, err := p.schema.NormalizePatch(patch, now)
	if err != nil {
		return Record{}, err
	}
	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := []any{id, userID}
	for _, k := range keys {
		f, _ := p.schema.Field(k)
		args = append(args, sqlValue(f, clean[k]))
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND user_id = $2 RETURNING %s",
		p.table(), strings.Join(sets, ", "), p.columns())

	var rec Record
	err = p.inTx(ctx, OpUpdate, userID, func(ctx context.Context, tx *sql.Tx) error {
		r, err := p.scan(tx.QueryRowContext(ctx, q, args...))
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *Postgres) Delete(ctx context.Context, userID, id string) (bool, error) {
	var n int64
	err := p.inTx(ctx, OpDelete, userID, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND user_id = $2", p.table()), id, userID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Import inserts an existing record keeping its id and timestamps. It reports
// false when a record with that id is already present. Used by reconciliation.
func (p *Postgres) Import(ctx context.Context, rec Record) (bool, error) {
	var n int64
	err := p.inTx(ctx, OpCreate, rec.UserID, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, p.insertSQL(true), p.insertArgs(rec)...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) inTx(ctx context.Context, op Op, userID string, fn func(context.Context, *sql.Tx) error) error {
	if p.DB == nil {
		return unavailable(postgresBackend, op, errNotConfigured)
	}
	ctx, cancel := logging.DetachWithTimeout(ctx, p.timeout)
	defer cancel()

	fail := func(err error) error {
		cerr := p.classify(op, err)
		// drivers report an expired deadline in their own words
		if ctx.Err() != nil && !isSemantic(cerr) {
			return unavailable(postgresBackend, op, fmt.Errorf("%w: %v", ctx.Err(), err))
		}
		return cerr
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT set_config($1, $2, true)", rlsSetting, userID); err != nil {
		_ = tx.Rollback()
		return fail(err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	return nil
}

// classify maps driver errors onto the adapter error taxonomy.
func (p *Postgres) classify(op Op, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || IsValidation(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return unavailable(postgresBackend, op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "58":
			return unavailable(postgresBackend, op, err)
		}
		return rejected(postgresBackend, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return unavailable(postgresBackend, op, err)
	}
	return rejected(postgresBackend, op, err)
}

func (p *Postgres) table() string { return pq.QuoteIdentifier(p.schema.Collection) }

func (p *Postgres) columns() string {
	cols := make([]string, 0, len(p.schema.Fields)+4)
	cols = append(cols, "id", "user_id")
	for _, f := range p.schema.Fields {
		cols = append(cols, pq.QuoteIdentifier(f.Name))
	}
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

func (p *Postgres) insertSQL(skipExisting bool) string {
	n := len(p.schema.Fields) + 4
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", p.table(), p.columns(), strings.Join(ph, ", "))
	if skipExisting {
		q += " ON CONFLICT (id) DO NOTHING"
	}
	return q
}

func (p *Postgres) insertArgs(r Record) []any {
	args := make([]any, 0, len(p.schema.Fields)+4)
	args = append(args, r.ID, r.UserID)
	for _, f := range p.schema.Fields {
		args = append(args, sqlValue(f, r.Fields[f.Name]))
	}
	return append(args, r.CreatedAt, r.UpdatedAt)
}

func sqlValue(f Field, v any) any {
	if v == nil {
		return nil
	}
	if f.Kind == KindList {
		return pq.Array(Fields{f.Name: v}.Strings(f.Name))
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *Postgres) scan(row rowScanner) (Record, error) {
	var r Record
	holders := make([]any, len(p.schema.Fields))
	for i, f := range p.schema.Fields {
		switch f.Kind {
		case KindNumber:
			holders[i] = new(sql.NullFloat64)
		case KindInteger:
			holders[i] = new(sql.NullInt64)
		case KindBool:
			holders[i] = new(sql.NullBool)
		case KindList:
			holders[i] = new(pq.StringArray)
		default:
			holders[i] = new(sql.NullString)
		}
	}
	dest := make([]any, 0, len(holders)+4)
	dest = append(dest, &r.ID, &r.UserID)
	dest = append(dest, holders...)
	dest = append(dest, &r.CreatedAt, &r.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}

	r.Fields = make(Fields, len(holders))
	for i, f := range p.schema.Fields {
		switch h := holders[i].(type) {
		case *sql.NullFloat64:
			if h.Valid {
				r.Fields[f.Name] = h.Float64
			}
		case *sql.NullInt64:
			if h.Valid {
				r.Fields[f.Name] = h.Int64
			}
		case *sql.NullBool:
			if h.Valid {
				r.Fields[f.Name] = h.Bool
			}
		case *pq.StringArray:
			if *h != nil {
				r.Fields[f.Name] = []string(*h)
			}
		case *sql.NullString:
			if h.Valid {
				r.Fields[f.Name] = h.String
			}
		}
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
