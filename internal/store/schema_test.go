package store

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestNormalizeExpenseDefaults(t *testing.T) {
	s := MustSchema(Expenses)
	got, err := s.Normalize(Fields{"amount": "$12.50", "category": "Food", "bogus": 1}, testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Float("amount") != 12.5 {
		t.Fatalf("amount: got %v", got["amount"])
	}
	if got.String("category") != "food" {
		t.Fatalf("category should be lower-cased, got %q", got.String("category"))
	}
	if got.String("date") != "2024-03-15" {
		t.Fatalf("date should default to today, got %q", got.String("date"))
	}
	if got.String("payment_method") != "credit" || got.String("currency") != "USD" {
		t.Fatalf("defaults not applied: %#v", got)
	}
	if _, ok := got["bogus"]; ok {
		t.Fatalf("unknown keys must be dropped")
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name       string
		collection string
		in         Fields
		field      string
	}{
		{"missing amount", Expenses, Fields{"category": "food"}, "amount"},
		{"non numeric amount", Expenses, Fields{"amount": "lots", "category": "food"}, "amount"},
		{"negative amount", Expenses, Fields{"amount": -3.0, "category": "food"}, "amount"},
		{"amount rounds to zero", Expenses, Fields{"amount": 0.001, "category": "food"}, "amount"},
		{"amount too large", Expenses, Fields{"amount": 1e10, "category": "food"}, "amount"},
		{"unknown category", Expenses, Fields{"amount": 3.0, "category": "rent"}, "category"},
		{"bad date", Expenses, Fields{"amount": 3.0, "category": "food", "date": "15/03/2024"}, "date"},
		{"missing content", Notes, Fields{"content": "   "}, "content"},
		{"bad meeting time", Meetings, Fields{"title": "x", "date": "2024-03-15", "time": "noonish"}, "time"},
		{"fractional duration", Meetings, Fields{"title": "x", "date": "2024-03-15", "time": "10:00", "duration_minutes": 1.5}, "duration_minutes"},
		{"bad meal", FoodLogs, Fields{"meal_type": "brunch", "food_item": "eggs"}, "meal_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MustSchema(tc.collection).Normalize(tc.in, testNow)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, verr.Field, verr)
			}
		})
	}
}

func TestNormalizeRoundsAmountToCents(t *testing.T) {
	s := MustSchema(Expenses)
	got, err := s.Normalize(Fields{"amount": 12.346, "category": "food"}, testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Float("amount") != 12.35 {
		t.Fatalf("amount should round to cents, got %v", got["amount"])
	}
	patch, err := s.NormalizePatch(Fields{"amount": "9.999"}, testNow)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patch.Float("amount") != 10 {
		t.Fatalf("patched amount should round to cents, got %v", patch["amount"])
	}
}

func TestNormalizeMeetingCoercion(t *testing.T) {
	got, err := MustSchema(Meetings).Normalize(Fields{
		"title":     "Standup",
		"date":      "tomorrow",
		"time":      "2:30 pm",
		"attendees": "a@x.io, b@x.io",
	}, testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.String("date") != "2024-03-16" || got.String("time") != "14:30" {
		t.Fatalf("unexpected date/time: %#v", got)
	}
	if got.Int("duration_minutes") != 60 || got.String("status") != "scheduled" {
		t.Fatalf("defaults not applied: %#v", got)
	}
	if l := got.Strings("attendees"); len(l) != 2 || l[1] != "b@x.io" {
		t.Fatalf("attendees: %#v", l)
	}
}

func TestNormalizePatch(t *testing.T) {
	s := MustSchema(Expenses)
	if _, err := s.NormalizePatch(Fields{}, testNow); !IsValidation(err) {
		t.Fatalf("empty patch must fail validation, got %v", err)
	}
	if _, err := s.NormalizePatch(Fields{"user_id": "mallory"}, testNow); !IsValidation(err) {
		t.Fatalf("user_id must not be patchable, got %v", err)
	}
	if _, err := s.NormalizePatch(Fields{"amount": ""}, testNow); !IsValidation(err) {
		t.Fatalf("clearing a required field must fail, got %v", err)
	}
	got, err := s.NormalizePatch(Fields{"amount": "15.75", "subcategory": ""}, testNow)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got.Float("amount") != 15.75 || got["subcategory"] != nil {
		t.Fatalf("unexpected patch: %#v", got)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]string{"9am": "09:00", "12am": "00:00", "12:15pm": "12:15", "23:59": "23:59", "07:05:00": "07:05"}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"25:00", "9", "noon", "10:61"} {
		if _, err := ParseClock(in); err == nil {
			t.Fatalf("ParseClock(%q) should fail", in)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	s := MustSchema(Expenses)
	r := Record{Fields: Fields{"amount": 20.0, "category": "food", "date": "2024-03-10", "description": "Team Lunch"}}
	min, max := 10.0, 15.0
	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"zero", Filter{}, true},
		{"in range", Filter{From: "2024-03-01", To: "2024-03-31"}, true},
		{"before range", Filter{From: "2024-03-11"}, false},
		{"category case", Filter{Category: "FOOD"}, true},
		{"other category", Filter{Category: "shopping"}, false},
		{"text", Filter{Text: "lunch"}, true},
		{"text miss", Filter{Text: "dinner"}, false},
		{"min ok", Filter{MinAmount: &min}, true},
		{"max exceeded", Filter{MaxAmount: &max}, false},
	}
	for _, tc := range cases {
		if got := tc.f.Match(s, r); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
	if err := (Filter{From: "2024-04-01", To: "2024-03-01"}).Validate(); !IsValidation(err) {
		t.Fatalf("inverted range must fail validation")
	}
}
