// Package identity resolves the user a free-form instruction is about.
//
// Resolution is driven by an ordered list of rules. Each rule is a regular
// expression whose first capture group is the identity token; the first rule
// that yields an acceptable token wins.
package identity

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultUser is used when the extractor is built without a default.
const DefaultUser = "default_user"

// ErrIdentityAmbiguous is returned by ResolveStrict when rules disagree.
var ErrIdentityAmbiguous = errors.New("instruction names more than one user")

// Rule is one phrase pattern. Pattern must have one capture group.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// domainNouns matches the collection names people use in prose.
const domainNouns = `(?:expenses?|spending|costs?|notes?|meetings?|calendar|goals?|health|food\s+logs?|meals?|diet)`

// DefaultRules are tried in order.
var DefaultRules = []Rule{
	{Name: "for-user", Pattern: regexp.MustCompile(`(?i)\b(?:for\s+)?user\s*:\s*([a-z0-9_-]+)`)},
	{Name: "possessive", Pattern: regexp.MustCompile(`(?i)\b([a-z0-9_-]+)'s\s+` + domainNouns + `\b`)},
	{Name: "my-domain-as", Pattern: regexp.MustCompile(`(?i)\bmy\s+` + domainNouns + `\s+as\s+([a-z0-9_-]+)`)},
	{Name: "as-user", Pattern: regexp.MustCompile(`(?i)\bas\s+user\s+([a-z0-9_-]+)`)},
}

var trailingAs = regexp.MustCompile(`(?i)\s+as\s*$`)

// stopwords are never accepted as identities.
var stopwords = map[string]struct{}{
	"my": {}, "me": {}, "i": {}, "the": {}, "a": {}, "an": {}, "user": {}, "all": {},
	"today": {}, "yesterday": {}, "tomorrow": {}, "this": {}, "last": {}, "next": {},
	"week": {}, "month": {}, "year": {}, "your": {}, "our": {}, "their": {}, "it": {},
	"someone": {}, "everyone": {}, "everybody": {}, "let": {}, "what": {}, "that": {},
	"team": {}, "family": {}, "household": {}, "company": {}, "office": {},
	"tonight": {}, "morning": {}, "afternoon": {}, "evening": {}, "night": {},
	"weekend": {}, "weekday": {}, "day": {}, "daily": {}, "weekly": {}, "monthly": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {},
	"saturday": {}, "sunday": {},
	"january": {}, "february": {}, "march": {}, "april": {}, "may": {}, "june": {},
	"july": {}, "august": {}, "september": {}, "october": {}, "november": {}, "december": {},
}

// Extractor resolves identities. It is safe for concurrent use.
type Extractor struct {
	rules       []Rule
	defaultUser string
}

// New builds an extractor with DefaultRules. An empty defaultUser becomes DefaultUser.
func New(defaultUser string) *Extractor {
	return NewWithRules(defaultUser, DefaultRules)
}

func NewWithRules(defaultUser string, rules []Rule) *Extractor {
	d := normalize(defaultUser)
	if d == "" {
		d = DefaultUser
	}
	return &Extractor{rules: rules, defaultUser: d}
}

// Default returns the configured fallback identity.
func (e *Extractor) Default() string { return e.defaultUser }

// Resolve returns the first identity found in text, or the configured default.
func (e *Extractor) Resolve(text string) string {
	return e.ResolveWithDefault(text, "")
}

// ResolveWithDefault is Resolve with a per-call default, such as one supplied
// by the transport. An empty def means the configured default.
func (e *Extractor) ResolveWithDefault(text, def string) string {
	for _, r := range e.rules {
		if id, ok := match(r, text); ok {
			return id
		}
	}
	if d := normalize(def); d != "" {
		return d
	}
	return e.defaultUser
}

// ResolveStrict behaves like Resolve but fails when two rules name different users.
func (e *Extractor) ResolveStrict(text string) (string, error) {
	found := ""
	for _, r := range e.rules {
		for _, id := range matchAll(r, text) {
			if found == "" {
				found = id
				continue
			}
			if id != found {
				return "", ErrIdentityAmbiguous
			}
		}
	}
	if found == "" {
		return e.defaultUser, nil
	}
	return found, nil
}

// Strip removes identity phrases so they are not mistaken for content.
func (e *Extractor) Strip(text string) string {
	out := text
	for _, r := range e.rules {
		if r.Name == "possessive" || r.Name == "my-domain-as" {
			// the domain noun carries meaning; only drop the owner part
			out = r.Pattern.ReplaceAllStringFunc(out, func(m string) string {
				sub := r.Pattern.FindStringSubmatch(m)
				if len(sub) < 2 || isStopword(sub[1]) {
					return m
				}
				if r.Name == "possessive" {
					return strings.TrimSpace(strings.TrimPrefix(m, sub[1]+"'s"))
				}
				return strings.TrimSpace(trailingAs.ReplaceAllString(strings.TrimSuffix(m, sub[1]), ""))
			})
			continue
		}
		out = r.Pattern.ReplaceAllStringFunc(out, func(m string) string {
			sub := r.Pattern.FindStringSubmatch(m)
			if len(sub) < 2 || isStopword(sub[1]) {
				return m
			}
			return ""
		})
	}
	return strings.Join(strings.Fields(out), " ")
}

func match(r Rule, text string) (string, bool) {
	for _, sub := range r.Pattern.FindAllStringSubmatch(text, -1) {
		if len(sub) < 2 {
			continue
		}
		if id := normalize(sub[1]); id != "" && !isStopword(id) {
			return id, true
		}
	}
	return "", false
}

func matchAll(r Rule, text string) []string {
	var ids []string
	for _, sub := range r.Pattern.FindAllStringSubmatch(text, -1) {
		if len(sub) < 2 {
			continue
		}
		if id := normalize(sub[1]); id != "" && !isStopword(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func isStopword(s string) bool {
	_, ok := stopwords[normalize(s)]
	return ok
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
