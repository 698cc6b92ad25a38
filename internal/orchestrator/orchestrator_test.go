package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/aide/internal/agent"
	"github.com/mohammad-safakhou/aide/internal/identity"
	"github.com/mohammad-safakhou/aide/internal/llm"
	"github.com/mohammad-safakhou/aide/internal/session"
	"github.com/mohammad-safakhou/aide/internal/store"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type fixture struct {
	routers store.RouterSet
	orch    *Orchestrator
}

func newFixture(t *testing.T, mutate func(*Options)) fixture {
	t.Helper()
	routers, err := store.NewRouterSet(store.Options{DataDir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	o := Options{
		Agents:    agent.NewSet(routers, agent.NewInterpreter(nil, fixedNow), zerolog.Nop(), fixedNow),
		Identity:  identity.New("default_user"),
		Threshold: 0.5,
		Logger:    zerolog.Nop(),
		Now:       fixedNow,
	}
	if mutate != nil {
		mutate(&o)
	}
	return fixture{routers: routers, orch: New(o)}
}

func TestRouteGreeting(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{"Hello!", "hi there", "Good morning", "what can you do?"} {
		reply, err := f.orch.Route(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, replyGreeting, reply, q)
	}
}

func TestRouteSingleDomainUsesResolvedIdentity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, err := f.orch.Route(ctx, "I spent $12.50 on lunch today for user: alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Added expense: $12.50 on food (lunch) on 2024-03-15"), reply)
	assert.True(t, strings.HasSuffix(reply, agent.Indicator(store.ProvenanceFallback)))

	res, err := f.routers[store.Expenses].List(ctx, "alice", store.Filter{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	res, err = f.routers[store.Expenses].List(ctx, "default_user", store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestRouteAsUsesTransportDefault(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.routers[store.Notes].Create(ctx, "carol", store.Fields{"content": "carol's secret"})
	require.NoError(t, err)

	reply, err := f.orch.RouteAs(ctx, "show my notes", "carol")
	require.NoError(t, err)
	assert.Contains(t, reply, "carol's secret")

	reply, err = f.orch.Route(ctx, "show my notes")
	require.NoError(t, err)
	assert.NotContains(t, reply, "carol's secret")
}

func TestRouteCompoundQuery(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	reply, err := f.orch.RouteAs(ctx, "I spent $12 on lunch today and add a note to call mom", "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Here's what I did for each part of your request:"), reply)
	exp := strings.Index(reply, "Expense tracking:")
	notes := strings.Index(reply, "Notes:")
	require.GreaterOrEqual(t, exp, 0)
	require.Greater(t, notes, exp)
	assert.Contains(t, reply, "Added expense: $12.00 on food (lunch)")
	assert.Contains(t, reply, "Added note: [ ] call mom")

	res, err := f.routers[store.Notes].List(ctx, "alice", store.Filter{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "call mom", res.Records[0].Fields.String("content"))
}

func TestRouteUnclearAndLowConfidence(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Threshold = 0.9 })
	ctx := context.Background()

	reply, err := f.orch.Route(ctx, "what's the weather like in Paris")
	require.NoError(t, err)
	assert.Contains(t, reply, "I'm not sure which service you need")

	reply, err = f.orch.Route(ctx, "what should I eat")
	require.NoError(t, err)
	assert.Contains(t, reply, "Is this about health and diet?")
}

func TestRouteStrictIdentity(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Strict = true })
	reply, err := f.orch.Route(context.Background(), "for user: alice show bob's expenses")
	require.NoError(t, err)
	assert.Equal(t, replyAmbiguousUser, reply)
}

func TestRouteFollowUpUsesCallerMemoryOnly(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Memory = session.NewInMemory(5, 0) })
	ctx := context.Background()

	_, err := f.orch.RouteAs(ctx, "show my notes", "alice")
	require.NoError(t, err)

	reply, err := f.orch.RouteAs(ctx, "and the completed ones", "alice")
	require.NoError(t, err)
	assert.Contains(t, reply, "No completed notes found.")

	reply, err = f.orch.RouteAs(ctx, "and the completed ones", "bob")
	require.NoError(t, err)
	assert.Contains(t, reply, "I'm not sure which service you need")
}

func TestRouteLLMClassifier(t *testing.T) {
	answer := `{"kind":"unsupported","domains":[],"confidence":0.9}`
	model := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "broken") {
			return "", errors.New("model down")
		}
		return answer, nil
	})
	profiles := make([]agent.Profile, 0, 4)
	for _, d := range agent.Domains() {
		profiles = append(profiles, d.Profile())
	}
	f := newFixture(t, func(o *Options) {
		o.Classifier = Fallback{Primary: &LLMClassifier{LLM: model, Domains: profiles}, Secondary: &KeywordClassifier{}}
	})
	ctx := context.Background()

	reply, err := f.orch.Route(ctx, "book me a flight to Rome")
	require.NoError(t, err)
	assert.Contains(t, reply, `I can't assist with "book me a flight to Rome"`)

	// the model failing falls back to keywords
	reply, err = f.orch.Route(ctx, "show my broken notes")
	require.NoError(t, err)
	assert.Contains(t, reply, "No notes found.")
}

func TestKeywordClassifier(t *testing.T) {
	k := &KeywordClassifier{}
	ctx := context.Background()

	c, _ := k.Classify(ctx, "Show my food expenses this month", nil)
	assert.Equal(t, KindDomain, c.Kind)
	assert.Equal(t, []string{agent.DomainExpenses}, c.Domains)
	assert.InDelta(t, 2.0/3.0, c.Confidence, 0.001)

	c, _ = k.Classify(ctx, `Add a note: "meeting budget and calories"`, nil)
	assert.Equal(t, []string{agent.DomainNotes}, c.Domains)

	c, _ = k.Classify(ctx, "Add a note: buy eggs and bread", nil)
	assert.Equal(t, []string{agent.DomainNotes}, c.Domains)

	c, _ = k.Classify(ctx, "schedule a meeting tomorrow at 3pm; log 300 calories for breakfast", nil)
	assert.Equal(t, []string{agent.DomainMeetings, agent.DomainHealth}, c.Domains)
}

func TestLLMClassifierDropsUnknownDomains(t *testing.T) {
	model := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"kind":"domain","domains":["travel","Notes"],"confidence":0.7}`, nil
	})
	l := &LLMClassifier{LLM: model, Domains: []agent.Profile{agent.NoteDomain{}.Profile()}}
	c, err := l.Classify(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{agent.DomainNotes}, c.Domains)

	model = func(ctx context.Context, prompt string) (string, error) {
		return `{"kind":"domain","domains":["travel"],"confidence":0.7}`, nil
	}
	l.LLM = model
	_, err = l.Classify(context.Background(), "x", nil)
	assert.Error(t, err)
}

func TestAskGoesStraightToAgent(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Memory = session.NewInMemory(5, 0) })
	ctx := context.Background()

	reply, err := f.orch.Ask(ctx, "notes", "add a note to water the plants for user: dana", "")
	require.NoError(t, err)
	assert.Contains(t, reply, "Added note: [ ] water the plants")

	res, err := f.routers[store.Notes].List(ctx, "dana", store.Filter{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	reply, err = f.orch.Ask(ctx, "expense_tracker", "show my expenses", "dana")
	require.NoError(t, err)
	assert.Contains(t, reply, "No expenses found.")

	_, err = f.orch.Ask(ctx, "travel", "book a flight", "dana")
	assert.ErrorIs(t, err, ErrUnknownDomain)

	assert.Equal(t, []string{agent.DomainExpenses, agent.DomainNotes, agent.DomainMeetings, agent.DomainHealth}, f.orch.Domains())
}
