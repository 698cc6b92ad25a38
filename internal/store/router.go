package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var routerTracer trace.Tracer = otel.Tracer("github.com/mohammad-safakhou/aide/internal/store")

// Request is one router operation. ID is used by update and delete, Fields
// by create (payload) and update (patch), Filter by list.
type Request struct {
	Op     Op
	UserID string
	ID     string
	Fields Fields
	Filter Filter
}

// Result is the outcome of a router operation together with its provenance.
type Result struct {
	Op         Op
	Record     Record   // create, update
	Records    []Record // list
	Deleted    bool     // delete
	Provenance Provenance
	// Diagnostic keeps the primary's error text when the fallback served the call.
	Diagnostic string
}

// Router serves one collection from a primary and a fallback adapter.
// The primary is always tried first and the fallback at most once per call.
type Router struct {
	collection string
	primary    Adapter
	fallback   Adapter
	logger     zerolog.Logger
	metrics    *Metrics
}

// NewRouter wires the adapters. primary may be nil when no primary backend is
// configured; results are then tagged ProvenanceFallback. metrics may be nil.
func NewRouter(collection string, primary, fallback Adapter, logger zerolog.Logger, metrics *Metrics) *Router {
	return &Router{
		collection: collection,
		primary:    primary,
		fallback:   fallback,
		logger:     logger.With().Str("component", "router").Str("collection", collection).Logger(),
		metrics:    metrics,
	}
}

// Collection returns the collection this router serves.
func (r *Router) Collection() string { return r.collection }

func (r *Router) Create(ctx context.Context, userID string, fields Fields) (Result, error) {
	return r.Execute(ctx, Request{Op: OpCreate, UserID: userID, Fields: fields})
}

func (r *Router) List(ctx context.Context, userID string, filter Filter) (Result, error) {
	return r.Execute(ctx, Request{Op: OpList, UserID: userID, Filter: filter})
}

func (r *Router) Update(ctx context.Context, userID, id string, patch Fields) (Result, error) {
	return r.Execute(ctx, Request{Op: OpUpdate, UserID: userID, ID: id, Fields: patch})
}

func (r *Router) Delete(ctx context.Context, userID, id string) (Result, error) {
	return r.Execute(ctx, Request{Op: OpDelete, UserID: userID, ID: id})
}

// Execute runs req against the primary, falling back on availability or
// operation errors. Validation and not-found errors are returned as is.
// When both backends fail the error is a *StorageUnavailableError.
func (r *Router) Execute(ctx context.Context, req Request) (Result, error) {
	ctx, span := routerTracer.Start(ctx, "store.Router.Execute", trace.WithAttributes(
		attribute.String("collection", r.collection),
		attribute.String("op", string(req.Op)),
	))
	defer span.End()

	res, err := r.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("provenance", string(res.Provenance)))
	r.metrics.observe(r.collection, req.Op, res.Provenance)
	return res, nil
}

func (r *Router) execute(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return Result{}, invalid("user_id", "is required")
	}
	if (req.Op == OpUpdate || req.Op == OpDelete) && strings.TrimSpace(req.ID) == "" {
		return Result{}, invalid("id", "is required")
	}

	res := Result{Op: req.Op}
	var call func(Adapter) error
	switch req.Op {
	case OpCreate:
		call = func(a Adapter) (err error) {
			res.Record, err = a.Create(ctx, req.UserID, req.Fields)
			return err
		}
	case OpList:
		return r.list(ctx, req)
	case OpUpdate:
		call = func(a Adapter) (err error) {
			res.Record, err = a.Update(ctx, req.UserID, req.ID, req.Fields)
			return err
		}
	case OpDelete:
		call = func(a Adapter) (err error) {
			res.Deleted, err = a.Delete(ctx, req.UserID, req.ID)
			return err
		}
	default:
		return Result{}, invalid("op", "unknown operation %q", req.Op)
	}

	prov, diag, err := r.run(req.Op, call)
	if err != nil {
		return Result{}, err
	}
	res.Provenance, res.Diagnostic = prov, diag
	if req.Op == OpDelete && !res.Deleted && prov == ProvenancePrimary {
		res.Deleted = r.deleteLocal(ctx, req)
	}
	return res, nil
}

// deleteLocal removes a record list showed from the fallback while the
// primary is reachable but does not hold it. A fallback failure leaves the
// primary's answer standing.
func (r *Router) deleteLocal(ctx context.Context, req Request) bool {
	ok, err := r.fallback.Delete(ctx, req.UserID, req.ID)
	if err != nil {
		r.logger.Warn().Err(err).Str("id", req.ID).Msg("fallback delete of a local only record failed")
		return false
	}
	return ok
}

// run applies the primary-then-fallback policy to a single call.
func (r *Router) run(op Op, call func(Adapter) error) (Provenance, string, error) {
	if r.primary == nil {
		if err := call(r.fallback); err != nil {
			if isSemantic(err) {
				return "", "", err
			}
			r.logger.Error().Err(err).Str("op", string(op)).Msg("fallback failed with no primary configured")
			return "", "", &StorageUnavailableError{Op: op, Primary: errNotConfigured, Fallback: err}
		}
		return ProvenanceFallback, "", nil
	}

	perr := call(r.primary)
	if perr == nil {
		return ProvenancePrimary, "", nil
	}
	if isSemantic(perr) {
		return "", "", perr
	}

	prov := fallbackProvenance(perr)
	r.metrics.fallback(r.collection, prov)
	r.logger.Warn().Err(perr).Str("op", string(op)).Str("provenance", string(prov)).Msg("primary failed, using fallback")

	if ferr := call(r.fallback); ferr != nil {
		if isSemantic(ferr) {
			return "", "", ferr
		}
		r.logger.Error().Err(ferr).Str("op", string(op)).Msg("fallback failed too")
		return "", "", &StorageUnavailableError{Op: op, Primary: perr, Fallback: ferr}
	}
	return prov, perr.Error(), nil
}

// list unions both backends when the primary is reachable. Primary records
// win on id collisions and the provenance stays primary.
func (r *Router) list(ctx context.Context, req Request) (Result, error) {
	res := Result{Op: OpList}
	if r.primary == nil {
		recs, err := r.fallback.List(ctx, req.UserID, req.Filter)
		if err != nil {
			if isSemantic(err) {
				return Result{}, err
			}
			return Result{}, &StorageUnavailableError{Op: OpList, Primary: errNotConfigured, Fallback: err}
		}
		res.Records, res.Provenance = recs, ProvenanceFallback
		return res, nil
	}

	primaryRecs, perr := r.primary.List(ctx, req.UserID, req.Filter)
	if perr != nil && isSemantic(perr) {
		return Result{}, perr
	}
	if perr != nil {
		prov := fallbackProvenance(perr)
		r.metrics.fallback(r.collection, prov)
		r.logger.Warn().Err(perr).Str("op", string(OpList)).Str("provenance", string(prov)).Msg("primary failed, using fallback")
		recs, ferr := r.fallback.List(ctx, req.UserID, req.Filter)
		if ferr != nil {
			if isSemantic(ferr) {
				return Result{}, ferr
			}
			r.logger.Error().Err(ferr).Str("op", string(OpList)).Msg("fallback failed too")
			return Result{}, &StorageUnavailableError{Op: OpList, Primary: perr, Fallback: ferr}
		}
		res.Records, res.Provenance, res.Diagnostic = recs, prov, perr.Error()
		return res, nil
	}

	localRecs, ferr := r.fallback.List(ctx, req.UserID, req.Filter)
	if ferr != nil {
		r.logger.Warn().Err(ferr).Msg("fallback list failed, returning primary records only")
	}
	res.Records = mergeByID(primaryRecs, localRecs)
	res.Provenance = ProvenancePrimary
	return res, nil
}

func mergeByID(primary, local []Record) []Record {
	seen := make(map[string]struct{}, len(primary))
	out := make([]Record, 0, len(primary)+len(local))
	for _, rec := range primary {
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	for _, rec := range local {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	sortRecords(out)
	return out
}

func isSemantic(err error) bool {
	return errors.Is(err, ErrNotFound) || IsValidation(err)
}

func fallbackProvenance(err error) Provenance {
	if errors.Is(err, ErrBackendOperation) && !errors.Is(err, ErrBackendUnavailable) {
		return ProvenanceFallbackError
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return ProvenanceFallbackUnavailable
	}
	// unclassified failures from custom adapters count as operation errors
	return ProvenanceFallbackError
}

// RouterSet holds one router per collection.
type RouterSet map[string]*Router

// Get returns the router of a collection or an error naming it.
func (s RouterSet) Get(collection string) (*Router, error) {
	r, ok := s[collection]
	if !ok {
		return nil, fmt.Errorf("no storage configured for %s", collection)
	}
	return r, nil
}
