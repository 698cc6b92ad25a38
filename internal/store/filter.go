package store

import (
	"strings"
	"time"
)

// Filter narrows a list. It is always applied after the user_id filter.
// Zero values match everything.
type Filter struct {
	From      string   `json:"from,omitempty"` // inclusive, YYYY-MM-DD
	To        string   `json:"to,omitempty"`   // inclusive, YYYY-MM-DD
	Category  string   `json:"category,omitempty"`
	Text      string   `json:"text,omitempty"`
	MinAmount *float64 `json:"min_amount,omitempty"`
	MaxAmount *float64 `json:"max_amount,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.From == "" && f.To == "" && f.Category == "" && f.Text == "" && f.MinAmount == nil && f.MaxAmount == nil
}

// Validate checks date bounds.
func (f Filter) Validate() error {
	for name, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, v); err != nil {
			return invalid(name, "%q is not a date (YYYY-MM-DD)", v)
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return invalid("from", "must not be after to")
	}
	return nil
}

// Match reports whether r satisfies every predicate under schema s.
// Predicates on fields the schema does not declare are ignored.
func (f Filter) Match(s *Schema, r Record) bool {
	if s.DateField != "" && (f.From != "" || f.To != "") {
		d := r.Fields.String(s.DateField)
		if d == "" {
			return false
		}
		// YYYY-MM-DD compares lexically
		if f.From != "" && d < f.From {
			return false
		}
		if f.To != "" && d > f.To {
			return false
		}
	}
	if f.Category != "" && s.CategoryField != "" {
		if !strings.EqualFold(r.Fields.String(s.CategoryField), strings.TrimSpace(f.Category)) {
			return false
		}
	}
	if s.AmountField != "" {
		amt := r.Fields.Float(s.AmountField)
		if f.MinAmount != nil && amt < *f.MinAmount {
			return false
		}
		if f.MaxAmount != nil && amt > *f.MaxAmount {
			return false
		}
	}
	if t := strings.ToLower(strings.TrimSpace(f.Text)); t != "" {
		hit := false
		for _, name := range s.TextFields {
			var hay string
			if l := r.Fields.Strings(name); l != nil {
				hay = strings.Join(l, " ")
			} else {
				hay = r.Fields.String(name)
			}
			if strings.Contains(strings.ToLower(hay), t) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func applyFilter(s *Schema, f Filter, recs []Record) []Record {
	if f.IsZero() {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if f.Match(s, r) {
			out = append(out, r)
		}
	}
	return out
}
