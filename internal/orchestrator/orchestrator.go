// Package orchestrator routes a free-form query to the domain agents. It
// resolves who is asking, decides which domains the query concerns and
// combines the agents' replies.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mohammad-safakhou/aide/internal/agent"
	"github.com/mohammad-safakhou/aide/internal/identity"
	"github.com/mohammad-safakhou/aide/internal/session"
)

var tracer = otel.Tracer("github.com/mohammad-safakhou/aide/internal/orchestrator")

// ErrUnknownDomain is returned by Ask for a domain no agent serves.
var ErrUnknownDomain = errors.New("unknown domain")

const services = "Expense Tracking, Notes Management, Meeting Scheduling, and Health & Diet Management"

const (
	replyGreeting      = "Hello! I'm your personal assistant. I can help you with four main areas: " + services + ". What would you like to work on today?"
	replyEmpty         = "Please tell me what you'd like help with. I can help you with " + services + "."
	replyAmbiguousUser = "Your request mentions more than one user. Please name just one user per request."
)

// Options configures New.
type Options struct {
	Agents     agent.Set
	Identity   *identity.Extractor
	Strict     bool
	Classifier Classifier
	Memory     session.Memory
	// Threshold is the lowest classification confidence that is acted on.
	Threshold    float64
	HistoryTurns int
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Orchestrator is the single entry point transports call for free-form queries.
type Orchestrator struct {
	agents     agent.Set
	identity   *identity.Extractor
	strict     bool
	classifier Classifier
	keywords   *KeywordClassifier
	memory     session.Memory
	threshold  float64
	history    int
	logger     zerolog.Logger
	now        func() time.Time
}

func New(o Options) *Orchestrator {
	kw := &KeywordClassifier{}
	if o.Classifier == nil {
		o.Classifier = kw
	}
	if o.Identity == nil {
		o.Identity = identity.New("")
	}
	if o.Memory == nil {
		o.Memory = session.Nop{}
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = 5
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Orchestrator{
		agents:     o.Agents,
		identity:   o.Identity,
		strict:     o.Strict,
		classifier: o.Classifier,
		keywords:   kw,
		memory:     o.Memory,
		threshold:  o.Threshold,
		history:    o.HistoryTurns,
		logger:     o.Logger.With().Str("component", "orchestrator").Logger(),
		now:        o.Now,
	}
}

// Route answers query for the identity named in it, or the configured default.
func (o *Orchestrator) Route(ctx context.Context, query string) (string, error) {
	return o.RouteAs(ctx, query, "")
}

// RouteAs is Route with a caller supplied default identity, used when the
// transport knows who is asking.
func (o *Orchestrator) RouteAs(ctx context.Context, query, defaultUser string) (string, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Route")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return replyEmpty, nil
	}
	userID, err := o.resolve(query, defaultUser)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityAmbiguous) {
			return replyAmbiguousUser, nil
		}
		return "", err
	}
	text := o.identity.Strip(query)
	if text == "" {
		text = query
	}
	span.SetAttributes(attribute.String("user_id", userID))
	log := o.logger.With().Str("user_id", userID).Logger()

	history, err := o.memory.Recent(ctx, userID, o.history)
	if err != nil {
		log.Warn().Err(err).Msg("session memory unavailable")
		history = nil
	}

	c, err := o.classifier.Classify(ctx, text, history)
	if err != nil {
		log.Warn().Err(err).Msg("classifier failed, using keywords")
		c, _ = o.keywords.Classify(ctx, text, history)
	}
	span.SetAttributes(attribute.String("kind", string(c.Kind)), attribute.StringSlice("domains", c.Domains))
	log.Debug().Str("kind", string(c.Kind)).Strs("domains", c.Domains).Float64("confidence", c.Confidence).Msg("classified")

	var reply string
	switch {
	case c.Kind == KindGreeting:
		reply = replyGreeting
	case c.Kind == KindUnsupported:
		reply = redirect(text)
	case c.Kind != KindDomain || len(c.Domains) == 0 || c.Confidence < o.threshold:
		reply = clarify(c)
	default:
		reply, err = o.dispatch(ctx, text, userID, c.Domains)
		if err != nil {
			log.Error().Err(err).Msg("agent failed")
			return "", err
		}
	}

	turn := session.Turn{Query: text, Domain: strings.Join(c.Domains, ","), Reply: reply, At: o.now()}
	if err := o.memory.Append(ctx, userID, turn); err != nil {
		log.Warn().Err(err).Msg("could not record turn")
	}
	return reply, nil
}

// Ask sends query straight to one domain's agent, skipping classification.
// Identity resolution and session memory work as in RouteAs.
func (o *Orchestrator) Ask(ctx context.Context, domain, query, defaultUser string) (string, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Ask")
	defer span.End()

	a, ok := o.agents.Lookup(domain)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return replyEmpty, nil
	}
	userID, err := o.resolve(query, defaultUser)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityAmbiguous) {
			return replyAmbiguousUser, nil
		}
		return "", err
	}
	text := o.identity.Strip(query)
	if text == "" {
		text = query
	}
	span.SetAttributes(attribute.String("user_id", userID), attribute.String("domain", a.Name()))

	reply, err := a.Handle(ctx, text, userID)
	if err != nil {
		o.logger.Error().Err(err).Str("user_id", userID).Str("domain", a.Name()).Msg("agent failed")
		return "", err
	}
	turn := session.Turn{Query: text, Domain: a.Name(), Reply: reply, At: o.now()}
	if err := o.memory.Append(ctx, userID, turn); err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("could not record turn")
	}
	return reply, nil
}

// Domains lists the domains Ask accepts, in routing order.
func (o *Orchestrator) Domains() []string { return o.agents.Names() }

func (o *Orchestrator) resolve(query, defaultUser string) (string, error) {
	if !o.strict {
		return o.identity.ResolveWithDefault(query, defaultUser), nil
	}
	if _, err := o.identity.ResolveStrict(query); err != nil {
		return "", err
	}
	// no identity in the text: the transport default wins over the configured one
	return o.identity.ResolveWithDefault(query, defaultUser), nil
}

type step struct {
	domain string
	text   string
}

// plan assigns an instruction to each domain. A compound query is split at
// its connectives; a domain without a clause of its own gets the whole query.
func (o *Orchestrator) plan(text string, domains []string) []step {
	if len(domains) == 1 {
		return []step{{domain: domains[0], text: text}}
	}
	byDomain := map[string]string{}
	for _, c := range o.keywords.split(text) {
		if _, ok := byDomain[c.domain]; !ok {
			byDomain[c.domain] = c.text
		}
	}
	steps := make([]step, 0, len(domains))
	for _, d := range domains {
		t, ok := byDomain[d]
		if !ok {
			t = text
		}
		steps = append(steps, step{domain: d, text: t})
	}
	return steps
}

func (o *Orchestrator) dispatch(ctx context.Context, text, userID string, domains []string) (string, error) {
	steps := o.plan(text, domains)
	replies := make([]string, 0, len(steps))
	titles := make([]string, 0, len(steps))
	for _, s := range steps {
		a, ok := o.agents[s.domain]
		if !ok {
			return "", fmt.Errorf("no agent for domain %q", s.domain)
		}
		r, err := a.Handle(ctx, s.text, userID)
		if err != nil {
			return "", fmt.Errorf("%s agent: %w", s.domain, err)
		}
		replies = append(replies, r)
		titles = append(titles, title(s.domain))
	}
	if len(replies) == 1 {
		return replies[0], nil
	}
	var b strings.Builder
	b.WriteString("Here's what I did for each part of your request:")
	for i, r := range replies {
		fmt.Fprintf(&b, "\n\n%s:\n%s", titles[i], r)
	}
	return b.String(), nil
}

func title(domain string) string {
	for _, d := range agent.Domains() {
		if p := d.Profile(); p.Name == domain {
			return p.Title
		}
	}
	return domain
}

func redirect(text string) string {
	return fmt.Sprintf("I'm here to help you with four main areas: %s. I can't assist with %q, but I'd be happy to help with any of these services. What would you like to know about?", services, text)
}

func clarify(c Classification) string {
	if len(c.Domains) > 0 {
		names := make([]string, len(c.Domains))
		for i, d := range c.Domains {
			names[i] = strings.ToLower(title(d))
		}
		return fmt.Sprintf("I'm not sure I understood. Is this about %s? Please rephrase with a bit more detail.", strings.Join(names, " or "))
	}
	return "I'm not sure which service you need. I can help you with " + services + ". Could you rephrase your request?"
}
