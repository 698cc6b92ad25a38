package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/aide/internal/agent"
	"github.com/mohammad-safakhou/aide/internal/llm"
	"github.com/mohammad-safakhou/aide/internal/session"
)

// Kind is what a query is about at the top level.
type Kind string

const (
	KindDomain      Kind = "domain"
	KindGreeting    Kind = "greeting"
	KindUnsupported Kind = "unsupported"
	KindUnclear     Kind = "unclear"
)

// Classification names the domains a query concerns, in the order the
// query mentions them.
type Classification struct {
	Kind       Kind     `json:"kind"`
	Domains    []string `json:"domains"`
	Confidence float64  `json:"confidence"`
}

// Classifier decides which domains a query concerns. history holds the
// caller's recent turns, oldest first.
type Classifier interface {
	Classify(ctx context.Context, query string, history []session.Turn) (Classification, error)
}

// Cue is a keyword and how strongly it points at a domain.
type Cue struct {
	Word   string
	Weight int
}

// DefaultCues are the keyword cues per domain. Nouns that name a domain
// outright weigh more than verbs and topics shared between domains.
var DefaultCues = map[string][]Cue{
	agent.DomainExpenses: {
		{"expense", 2}, {"expenses", 2}, {"budget", 2}, {"spending", 2},
		{"spend", 1}, {"spent", 1}, {"cost", 1}, {"costs", 1}, {"money", 1}, {"paid", 1},
		{"pay", 1}, {"bought", 1}, {"purchase", 1}, {"$", 1},
	},
	agent.DomainNotes: {
		{"note", 2}, {"notes", 2}, {"todo", 2}, {"to-do", 2},
		{"search", 1}, {"organize", 1}, {"complete", 1}, {"remember", 1}, {"remind", 1}, {"jot", 1},
	},
	agent.DomainMeetings: {
		{"meeting", 2}, {"meetings", 2}, {"calendar", 2}, {"appointment", 2}, {"appointments", 2},
		{"schedule", 1}, {"reschedule", 1}, {"standup", 1}, {"sync", 1}, {"agenda", 1},
	},
	agent.DomainHealth: {
		{"health", 2}, {"diet", 2}, {"calorie", 2}, {"calories", 2}, {"workout", 2}, {"nutrition", 2},
		{"fitness", 2}, {"goal", 1}, {"goals", 1}, {"weight", 1}, {"exercise", 1}, {"meal", 1},
		{"food", 1}, {"ate", 1}, {"eat", 1}, {"target", 1}, {"breakfast", 1}, {"dinner", 1},
		{"steps", 1}, {"water", 1},
	},
}

var (
	reGreeting = regexp.MustCompile(`(?i)^\s*(?:(?:hi|hello|hey|hiya|howdy|greetings|yo|good\s+(?:morning|afternoon|evening)|thanks|thank\s+you)(?:\s+there)?[\s!,.]*)+$`)
	reAbout    = regexp.MustCompile(`(?i)^\s*(?:what\s+can\s+you\s+do|who\s+are\s+you|what\s+do\s+you\s+do|help|how\s+can\s+you\s+help(?:\s+me)?)\s*[?!.]*\s*$`)
	reFollowUp = regexp.MustCompile(`(?i)^\s*(?:and|also|what\s+about|how\s+about|same|now|then|ok(?:ay)?|it|that|those|them)\b`)
	reQuotes   = regexp.MustCompile(`"[^"]*"|“[^”]*”`)
	reToken    = regexp.MustCompile(`\$|[a-z]+(?:-[a-z]+)?`)
	reClause   = regexp.MustCompile(`(?i)\s*(?:;|\band\s+then\b|\bthen\b|\band\s+also\b|\balso\b|\band\b)\s*`)
)

// KeywordClassifier scores cue words. It never fails.
type KeywordClassifier struct {
	Cues map[string][]Cue
}

type score struct {
	domain string
	total  int
	first  int
}

func (k *KeywordClassifier) cues() map[string][]Cue {
	if k.Cues != nil {
		return k.Cues
	}
	return DefaultCues
}

// scores returns the matching domains ordered by first mention. Quoted text
// is content, not a cue.
func (k *KeywordClassifier) scores(text string) []score {
	tokens := reToken.FindAllString(strings.ToLower(reQuotes.ReplaceAllString(text, " ")), -1)
	var out []score
	for domain, cues := range k.cues() {
		s := score{domain: domain, first: -1}
		for i, tok := range tokens {
			for _, c := range cues {
				if tok == c.Word {
					s.total += c.Weight
					if s.first < 0 {
						s.first = i
					}
				}
			}
		}
		if s.total > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].first != out[j].first {
			return out[i].first < out[j].first
		}
		return out[i].domain < out[j].domain
	})
	return out
}

func (k *KeywordClassifier) Classify(_ context.Context, query string, history []session.Turn) (Classification, error) {
	if reGreeting.MatchString(query) || reAbout.MatchString(query) {
		return Classification{Kind: KindGreeting, Confidence: 1}, nil
	}

	// a clause naming its own domain makes the query compound
	if domains := k.clauseDomains(query); len(domains) > 1 {
		return Classification{Kind: KindDomain, Domains: domains, Confidence: 0.8}, nil
	}

	scores := k.scores(query)
	if len(scores) == 0 {
		if last := lastDomain(history); last != "" && reFollowUp.MatchString(query) {
			return Classification{Kind: KindDomain, Domains: []string{last}, Confidence: 0.6}, nil
		}
		return Classification{Kind: KindUnclear}, nil
	}

	best, sum := scores[0], 0
	for _, s := range scores {
		sum += s.total
		if s.total > best.total {
			best = s
		}
	}
	conf := float64(best.total) / float64(sum)
	if best.total < 2 {
		conf *= 0.75
	}
	return Classification{Kind: KindDomain, Domains: []string{best.domain}, Confidence: conf}, nil
}

// clause is one part of a compound query and the domain it belongs to.
type clause struct {
	domain string
	text   string
}

// split cuts a query on connectives and attaches clauses without a domain
// of their own to the clause before them.
func (k *KeywordClassifier) split(query string) []clause {
	var out []clause
	var pending []string
	for _, part := range splitClauses(query) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		domain := ""
		if s := k.scores(part); len(s) > 0 {
			domain = topDomain(s)
		}
		switch {
		case domain == "" && len(out) == 0:
			pending = append(pending, part)
		case domain == "":
			out[len(out)-1].text += " and " + part
		case len(out) > 0 && out[len(out)-1].domain == domain:
			out[len(out)-1].text += " and " + part
		default:
			text := part
			if len(pending) > 0 {
				text = strings.Join(append(pending, part), " and ")
				pending = nil
			}
			out = append(out, clause{domain: domain, text: text})
		}
	}
	return out
}

// splitClauses splits on connectives outside quoted text.
func splitClauses(query string) []string {
	quoted := reQuotes.FindAllStringIndex(query, -1)
	inQuote := func(i int) bool {
		for _, q := range quoted {
			if i >= q[0] && i < q[1] {
				return true
			}
		}
		return false
	}
	var parts []string
	last := 0
	for _, m := range reClause.FindAllStringIndex(query, -1) {
		if inQuote(m[0]) {
			continue
		}
		parts = append(parts, query[last:m[0]])
		last = m[1]
	}
	return append(parts, query[last:])
}

func (k *KeywordClassifier) clauseDomains(query string) []string {
	clauses := k.split(query)
	seen := map[string]bool{}
	var out []string
	for _, c := range clauses {
		if !seen[c.domain] {
			seen[c.domain] = true
			out = append(out, c.domain)
		}
	}
	return out
}

func topDomain(scores []score) string {
	best := scores[0]
	for _, s := range scores[1:] {
		if s.total > best.total {
			best = s
		}
	}
	return best.domain
}

func lastDomain(history []session.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if d := history[i].Domain; d != "" && !strings.Contains(d, ",") {
			return d
		}
	}
	return ""
}

// LLMClassifier asks the completion model. Domains it returns that are not
// known are dropped.
type LLMClassifier struct {
	LLM     llm.Completer
	Domains []agent.Profile
}

func (l *LLMClassifier) Classify(ctx context.Context, query string, history []session.Turn) (Classification, error) {
	out, err := l.LLM.Complete(ctx, l.prompt(query, history))
	if err != nil {
		return Classification{}, err
	}
	var c Classification
	if err := llm.DecodeJSON(out, &c); err != nil {
		return Classification{}, err
	}
	known := map[string]bool{}
	for _, p := range l.Domains {
		known[p.Name] = true
	}
	domains := c.Domains[:0]
	for _, d := range c.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if known[d] {
			domains = append(domains, d)
		}
	}
	c.Domains = domains
	switch c.Kind {
	case KindGreeting, KindUnsupported, KindUnclear:
	case KindDomain:
		if len(c.Domains) == 0 {
			return Classification{}, fmt.Errorf("classifier named no known domain")
		}
	default:
		return Classification{}, fmt.Errorf("classifier returned kind %q", c.Kind)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		c.Confidence = 0
	}
	return c, nil
}

func (l *LLMClassifier) prompt(query string, history []session.Turn) string {
	var b strings.Builder
	b.WriteString("Classify a request to a personal assistant. The assistant has these services:\n")
	for _, p := range l.Domains {
		fmt.Fprintf(&b, "- %s: %s (e.g. %q)\n", p.Name, p.Title, strings.Join(p.Examples, `", "`))
	}
	if len(history) > 0 {
		b.WriteString("\nRecent conversation, oldest first:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "- user: %s [%s]\n", t.Query, t.Domain)
		}
	}
	b.WriteString(`
Return exactly {"kind": "domain|greeting|unsupported|unclear", "domains": ["..."], "confidence": 0.0-1.0}.
Use "greeting" for greetings and questions about what the assistant can do, "unsupported" for requests no
service covers, "unclear" when you cannot tell. List every service a compound request needs, in the order
the request mentions them.

Request: `)
	b.WriteString(query)
	return b.String()
}

// Fallback tries Primary and uses Secondary when it fails.
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
}

func (f Fallback) Classify(ctx context.Context, query string, history []session.Turn) (Classification, error) {
	if f.Primary != nil {
		if c, err := f.Primary.Classify(ctx, query, history); err == nil {
			return c, nil
		}
	}
	return f.Secondary.Classify(ctx, query, history)
}
