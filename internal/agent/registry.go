package agent

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/aide/internal/store"
	"github.com/mohammad-safakhou/aide/internal/telemetry"
)

// Domains returns every domain in routing order.
func Domains() []Domain {
	return []Domain{ExpenseDomain{}, NoteDomain{}, MeetingDomain{}, HealthDomain{}}
}

// Set holds one agent per domain name.
type Set map[string]*Agent

// NewSet builds every agent over the same routers and interpreter.
func NewSet(routers store.RouterSet, interp Interpreter, logger zerolog.Logger, now func() time.Time) Set {
	set := make(Set, 4)
	for _, d := range Domains() {
		set[d.Profile().Name] = New(d, routers, interp, logger, now)
	}
	return set
}

// WithTelemetry makes every agent record its executions on t.
func (s Set) WithTelemetry(t *telemetry.Telemetry) Set {
	for _, a := range s {
		a.telemetry = t
	}
	return s
}

// Names lists the agent names in routing order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for _, d := range Domains() {
		if _, ok := s[d.Profile().Name]; ok {
			out = append(out, d.Profile().Name)
		}
	}
	return out
}

// aliases are the tool style names transports use for domains.
var aliases = map[string]string{
	"expense":         DomainExpenses,
	"expense_tracker": DomainExpenses,
	"note":            DomainNotes,
	"meeting":         DomainMeetings,
	"health_diet":     DomainHealth,
	"diet":            DomainHealth,
}

// Lookup finds the agent for a domain name or one of its aliases.
func (s Set) Lookup(name string) (*Agent, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	a, ok := s[name]
	return a, ok
}
