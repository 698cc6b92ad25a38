package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/aide/internal/llm"
	"github.com/mohammad-safakhou/aide/internal/store"
)

// ErrNotUnderstood is returned when an instruction maps to no operation.
var ErrNotUnderstood = errors.New("instruction not understood")

// Interpreter reads an instruction as an Intent for one domain.
type Interpreter interface {
	Interpret(ctx context.Context, p Profile, instruction string) (Intent, error)
}

// Chain tries each interpreter in order and returns the first valid intent.
type Chain []Interpreter

func (c Chain) Interpret(ctx context.Context, p Profile, instruction string) (Intent, error) {
	errs := make([]error, 0, len(c))
	for _, in := range c {
		if in == nil {
			continue
		}
		intent, err := in.Interpret(ctx, p, instruction)
		if err == nil {
			return intent, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Intent{}, ErrNotUnderstood
	}
	return Intent{}, errors.Join(errs...)
}

// NewInterpreter prefers the completion model when one is configured and
// always keeps the rule based reader as a fallback.
func NewInterpreter(c llm.Completer, now func() time.Time) Interpreter {
	rules := &RuleInterpreter{Now: now}
	if c == nil {
		return rules
	}
	return Chain{&LLMInterpreter{LLM: c, Now: now}, rules}
}

// check normalizes and validates an intent against the profile.
func (in *Intent) check(p Profile) error {
	in.Operation = strings.ToLower(strings.TrimSpace(in.Operation))
	if in.Operation == "" || !p.accepts(in.Operation) {
		return fmt.Errorf("%w: operation %q", ErrNotUnderstood, in.Operation)
	}
	in.Collection = strings.ToLower(strings.TrimSpace(in.Collection))
	if in.Collection != "" && !p.hasCollection(in.Collection) {
		in.Collection = ""
	}
	in.ID = strings.TrimSpace(in.ID)
	if (in.Operation == OpUpdate || in.Operation == OpDelete) && in.ID == "" {
		return fmt.Errorf("%w: %s needs a record id", ErrNotUnderstood, in.Operation)
	}
	if in.Operation == OpUpdate && len(in.Fields) == 0 {
		return fmt.Errorf("%w: update needs at least one field", ErrNotUnderstood)
	}
	return nil
}

// LLMInterpreter asks the completion model for a JSON intent.
type LLMInterpreter struct {
	LLM llm.Completer
	Now func() time.Time
}

func (l *LLMInterpreter) Interpret(ctx context.Context, p Profile, instruction string) (Intent, error) {
	out, err := l.LLM.Complete(ctx, l.prompt(p, instruction))
	if err != nil {
		return Intent{}, err
	}
	var in Intent
	if err := llm.DecodeJSON(out, &in); err != nil {
		return Intent{}, err
	}
	if err := in.check(p); err != nil {
		return Intent{}, err
	}
	return in, nil
}

func (l *LLMInterpreter) prompt(p Profile, instruction string) string {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You translate requests for the %s assistant into one JSON object.\n", p.Title)
	fmt.Fprintf(&b, "Today is %s.\n\n", now().Format("2006-01-02 (Monday)"))
	b.WriteString("Collections and their fields:\n")
	for _, c := range p.Collections {
		s, ok := store.SchemaFor(c)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s:", c)
		for _, f := range s.Fields {
			fmt.Fprintf(&b, " %s (%s", f.Name, kindName(f.Kind))
			if f.Required {
				b.WriteString(", required")
			}
			if len(f.Enum) > 0 {
				fmt.Fprintf(&b, ", one of %s", strings.Join(f.Enum, "|"))
			}
			b.WriteString(");")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nOperations: %s.\n", strings.Join(p.Operations, ", "))
	b.WriteString(`Return exactly:
{"operation": "...", "collection": "...", "id": "record id for update/delete", "fields": {...},
 "filter": {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD", "category": "...", "text": "..."},
 "period": "week|month|quarter|year", "group_by": "category|date|payment_method", "query": "search text"}
Omit keys you do not need. Dates are YYYY-MM-DD, times HH:MM (24h). Never invent ids.

Request: `)
	b.WriteString(instruction)
	return b.String()
}

func kindName(k store.Kind) string {
	switch k {
	case store.KindNumber:
		return "number"
	case store.KindInteger:
		return "integer"
	case store.KindBool:
		return "boolean"
	case store.KindDate:
		return "date"
	case store.KindTime:
		return "time"
	case store.KindList:
		return "list of strings"
	}
	return "text"
}
