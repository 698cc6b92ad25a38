// Package agent implements the domain agents. Each agent turns a natural
// language instruction into one storage operation (or a read-only report
// built on list), runs it through the storage router and renders a reply
// that always names the backend that served it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/aide/internal/store"
	"github.com/mohammad-safakhou/aide/internal/telemetry"
)

// Handler is what transports and the orchestrator call.
type Handler interface {
	Name() string
	Handle(ctx context.Context, instruction, userID string) (string, error)
}

// Operations understood by every agent. Domains may add their own.
const (
	OpCreate = "create"
	OpList   = "list"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Intent is the structured reading of an instruction.
type Intent struct {
	Operation  string         `json:"operation"`
	Collection string         `json:"collection,omitempty"`
	ID         string         `json:"id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Filter     store.Filter   `json:"filter,omitempty"`
	Period     string         `json:"period,omitempty"`
	GroupBy    string         `json:"group_by,omitempty"`
	Query      string         `json:"query,omitempty"`
}

// Profile describes a domain to interpreters.
type Profile struct {
	Name        string
	Title       string
	Collections []string
	// Operations lists every operation name the domain accepts.
	Operations []string
	// Examples are shown to the user when an instruction cannot be read.
	Examples []string
}

func (p Profile) accepts(op string) bool {
	for _, o := range p.Operations {
		if o == op {
			return true
		}
	}
	return false
}

func (p Profile) hasCollection(c string) bool {
	for _, x := range p.Collections {
		if x == c {
			return true
		}
	}
	return false
}

// Domain supplies the per-domain parts of an agent.
type Domain interface {
	Profile() Profile
	// Describe renders one record on a single line.
	Describe(collection string, rec store.Record) string
	// Report runs a domain specific read operation. ok is false when op is
	// not one of the domain's own operations.
	Report(ctx context.Context, env *Env, in Intent, userID string) (reply string, prov store.Provenance, ok bool, err error)
}

// Env gives domains access to storage and the clock.
type Env struct {
	Routers store.RouterSet
	Now     func() time.Time
}

// List is a convenience for reports.
func (e *Env) List(ctx context.Context, collection, userID string, f store.Filter) (store.Result, error) {
	r, err := e.Routers.Get(collection)
	if err != nil {
		return store.Result{}, err
	}
	return r.List(ctx, userID, f)
}

// Agent is a Handler for one domain.
type Agent struct {
	domain    Domain
	interp    Interpreter
	env       *Env
	logger    zerolog.Logger
	telemetry *telemetry.Telemetry
}

// New builds an agent. now may be nil.
func New(domain Domain, routers store.RouterSet, interp Interpreter, logger zerolog.Logger, now func() time.Time) *Agent {
	if now == nil {
		now = time.Now
	}
	return &Agent{
		domain: domain,
		interp: interp,
		env:    &Env{Routers: routers, Now: now},
		logger: logger.With().Str("component", "agent").Str("domain", domain.Profile().Name).Logger(),
	}
}

func (a *Agent) Name() string { return a.domain.Profile().Name }

// Handle interprets the instruction for userID and runs it. Validation,
// not-found and storage-unavailable outcomes are replies, not errors.
func (a *Agent) Handle(ctx context.Context, instruction, userID string) (string, error) {
	start := time.Now()
	p := a.domain.Profile()
	in, err := a.interp.Interpret(ctx, p, instruction)
	if err != nil {
		a.logger.Debug().Err(err).Str("instruction", instruction).Msg("could not interpret instruction")
		a.telemetry.RecordAgent(p.Name, "", telemetry.OutcomeNotUnderstood, time.Since(start))
		return a.notUnderstood(p), nil
	}
	if in.Collection == "" || !p.hasCollection(in.Collection) {
		in.Collection = p.Collections[0]
	}
	a.logger.Debug().Str("user_id", userID).Str("op", in.Operation).Str("collection", in.Collection).Msg("handling")

	body, prov, err := a.run(ctx, in, userID)
	a.telemetry.RecordAgent(p.Name, in.Operation, outcome(err), time.Since(start))
	if err != nil {
		return a.failure(err)
	}
	return body + "\n\n" + Indicator(prov), nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case store.IsValidation(err):
		return telemetry.OutcomeInvalid
	case errors.Is(err, store.ErrNotFound):
		return telemetry.OutcomeNotFound
	case errors.Is(err, store.ErrStorageUnavailable):
		return telemetry.OutcomeUnavailable
	}
	return telemetry.OutcomeError
}

func (a *Agent) run(ctx context.Context, in Intent, userID string) (string, store.Provenance, error) {
	if reply, prov, ok, err := a.domain.Report(ctx, a.env, in, userID); ok {
		return reply, prov, err
	}
	router, err := a.env.Routers.Get(in.Collection)
	if err != nil {
		return "", "", err
	}
	noun := nounFor(in.Collection)

	switch in.Operation {
	case OpCreate:
		res, err := router.Create(ctx, userID, in.Fields)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Added %s: %s", noun.one, a.domain.Describe(in.Collection, res.Record)), res.Provenance, nil
	case OpUpdate:
		res, err := router.Update(ctx, userID, in.ID, in.Fields)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Updated %s: %s", noun.one, a.domain.Describe(in.Collection, res.Record)), res.Provenance, nil
	case OpDelete:
		res, err := router.Delete(ctx, userID, in.ID)
		if err != nil {
			return "", "", err
		}
		if !res.Deleted {
			return fmt.Sprintf("No matching %s found with id %s.", noun.one, in.ID), res.Provenance, nil
		}
		return fmt.Sprintf("Deleted %s %s.", noun.one, in.ID), res.Provenance, nil
	default:
		res, err := router.List(ctx, userID, in.Filter)
		if err != nil {
			return "", "", err
		}
		return renderList(a.domain, in.Collection, res.Records), res.Provenance, nil
	}
}

func renderList(d Domain, collection string, recs []store.Record) string {
	noun := nounFor(collection)
	if len(recs) == 0 {
		return fmt.Sprintf("No %s found.", noun.many)
	}
	var b strings.Builder
	if len(recs) == 1 {
		fmt.Fprintf(&b, "Found 1 %s:", noun.one)
	} else {
		fmt.Fprintf(&b, "Found %d %s:", len(recs), noun.many)
	}
	for _, r := range recs {
		fmt.Fprintf(&b, "\n- %s (id: %s)", d.Describe(collection, r), r.ID)
	}
	return b.String()
}

func (a *Agent) failure(err error) (string, error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("I couldn't do that: %s. Please correct it and try again.", verr.Error()), nil
	case errors.Is(err, store.ErrNotFound):
		return "No matching record found.", nil
	case errors.Is(err, store.ErrStorageUnavailable):
		a.logger.Error().Err(err).Msg("storage unavailable")
		return "Sorry, I'm unable to save or retrieve your data right now. Please try again later.", nil
	}
	a.logger.Error().Err(err).Msg("agent failed")
	return "", err
}

func (a *Agent) notUnderstood(p Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't work out what to do with your %s request.", strings.ToLower(p.Title))
	if len(p.Examples) > 0 {
		b.WriteString(" Try something like:")
		for _, ex := range p.Examples {
			fmt.Fprintf(&b, "\n- %s", ex)
		}
	}
	return b.String()
}

// Indicator is the storage marker appended to every successful reply.
func Indicator(p store.Provenance) string {
	switch p {
	case store.ProvenancePrimary:
		return "☁️ Storage: cloud database"
	case store.ProvenanceFallbackUnavailable:
		return "📁 Storage: local file (cloud database unreachable)"
	case store.ProvenanceFallbackError:
		return "⚠️ Storage: local file (cloud database rejected the request)"
	default:
		return "📁 Storage: local file"
	}
}

type noun struct{ one, many string }

func nounFor(collection string) noun {
	switch collection {
	case store.Expenses:
		return noun{"expense", "expenses"}
	case store.Notes:
		return noun{"note", "notes"}
	case store.Meetings:
		return noun{"meeting", "meetings"}
	case store.HealthGoals:
		return noun{"health goal", "health goals"}
	case store.FoodLogs:
		return noun{"food log entry", "food log entries"}
	}
	return noun{"record", "records"}
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }
