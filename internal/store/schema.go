package store

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the value type of a schema field.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindInteger
	KindBool
	KindDate // YYYY-MM-DD
	KindTime // HH:MM, 24h
	KindList // list of strings
)

const dateLayout = "2006-01-02"

// Field describes one payload field of a collection.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Default  any
	// DefaultToday fills a missing date with the current day.
	DefaultToday bool
	Enum         []string
	Positive     bool
	NonNegative  bool
	// Decimals rounds numbers to that many places; Below rejects numbers at
	// or above it. Both follow the primary's column type.
	Decimals int
	Below    float64
}

// Schema describes a collection. Both adapters validate through it so they
// accept and reject exactly the same input.
type Schema struct {
	Collection string
	Fields     []Field
	// DateField, CategoryField and AmountField drive Filter; TextFields are
	// searched by Filter.Text.
	DateField     string
	CategoryField string
	AmountField   string
	TextFields    []string
}

// Field returns the named field definition.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Normalize validates a create payload and returns a copy with coerced values
// and defaults applied. Unknown keys are dropped.
func (s *Schema) Normalize(in Fields, now time.Time) (Fields, error) {
	out := make(Fields, len(s.Fields))
	for _, f := range s.Fields {
		v, present := in[f.Name]
		if !present || isBlank(v) {
			switch {
			case f.DefaultToday:
				out[f.Name] = now.Format(dateLayout)
			case f.Default != nil:
				out[f.Name] = copyDefault(f.Default)
			case f.Required:
				return nil, invalid(f.Name, "is required")
			}
			continue
		}
		cv, err := f.coerce(v, now)
		if err != nil {
			return nil, err
		}
		out[f.Name] = cv
	}
	return out, nil
}

// NormalizePatch validates an update payload. Only schema fields may be
// patched and required fields cannot be cleared.
func (s *Schema) NormalizePatch(patch Fields, now time.Time) (Fields, error) {
	if len(patch) == 0 {
		return nil, invalid("", "nothing to update")
	}
	out := make(Fields, len(patch))
	for k, v := range patch {
		f, ok := s.Field(k)
		if !ok {
			return nil, invalid(k, "is not a field of %s", s.Collection)
		}
		if isBlank(v) {
			if f.Required {
				return nil, invalid(k, "cannot be empty")
			}
			out[k] = nil
			continue
		}
		cv, err := f.coerce(v, now)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

// Coerce converts decoded values (from JSON or the database) back to the
// schema's value types without enforcing required fields. Stored records
// that no longer validate keep their raw values.
func (s *Schema) Coerce(in Fields) Fields {
	out := make(Fields, len(in))
	for k, v := range in {
		f, ok := s.Field(k)
		if !ok || v == nil {
			continue
		}
		if cv, err := f.coerce(v, time.Time{}); err == nil {
			out[k] = cv
		} else {
			out[k] = v
		}
	}
	return out
}

func (f Field) coerce(v any, now time.Time) (any, error) {
	var (
		out any
		err error
	)
	switch f.Kind {
	case KindText:
		out, err = toText(v)
	case KindNumber:
		out, err = toNumber(v)
	case KindInteger:
		out, err = toInteger(v)
	case KindBool:
		out, err = toBool(v)
	case KindDate:
		out, err = toDate(v, now)
	case KindTime:
		out, err = toClock(v)
	case KindList:
		out, err = toList(v)
	}
	if err != nil {
		return nil, invalid(f.Name, "%v", err)
	}
	if len(f.Enum) > 0 {
		s := strings.ToLower(out.(string))
		if !contains(f.Enum, s) {
			return nil, invalid(f.Name, "must be one of %s", strings.Join(f.Enum, ", "))
		}
		out = s
	}
	if n, ok := out.(float64); ok && f.Decimals > 0 {
		scale := math.Pow10(f.Decimals)
		out = math.Round(n*scale) / scale
	}
	if n, ok := asFloat(out); ok {
		if f.Below > 0 && n >= f.Below {
			return nil, invalid(f.Name, "must be less than %g", f.Below)
		}
		if f.Positive && n <= 0 {
			return nil, invalid(f.Name, "must be greater than zero")
		}
		if f.NonNegative && n < 0 {
			return nil, invalid(f.Name, "must not be negative")
		}
	}
	return out, nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func copyDefault(v any) any {
	if l, ok := v.([]string); ok {
		return append([]string{}, l...)
	}
	return v
}

func toText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64, int, int64, bool:
		return fmt.Sprint(t), nil
	}
	return "", fmt.Errorf("expected text, got %T", v)
}

var numberCleaner = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

func toNumber(v any) (float64, error) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(numberCleaner.Replace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		n = f
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return n, nil
}

func toInteger(v any) (int64, error) {
	n, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%v is not a whole number", n)
	}
	return int64(n), nil
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "done", "completed":
			return true, nil
		case "false", "no", "n", "0", "open", "pending":
			return false, nil
		}
		return false, fmt.Errorf("%q is not yes or no", t)
	case float64:
		return t != 0, nil
	}
	return false, fmt.Errorf("expected true or false, got %T", v)
}

func toDate(v any, now time.Time) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(dateLayout), nil
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if now.IsZero() {
			now = time.Now()
		}
		switch s {
		case "today":
			return now.Format(dateLayout), nil
		case "yesterday":
			return now.AddDate(0, 0, -1).Format(dateLayout), nil
		case "tomorrow":
			return now.AddDate(0, 0, 1).Format(dateLayout), nil
		}
		if len(s) > len(dateLayout) {
			// accept RFC 3339 timestamps by keeping the day
			if ts, err := time.Parse(time.RFC3339, t); err == nil {
				return ts.Format(dateLayout), nil
			}
		}
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return "", fmt.Errorf("%q is not a date (YYYY-MM-DD)", t)
		}
		return d.Format(dateLayout), nil
	}
	return "", fmt.Errorf("expected a date, got %T", v)
}

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::\d{2})?\s*(am|pm)?$`)

// ParseClock accepts "14:30", "2:30 pm", "2pm" and "14:30:00" and returns HH:MM.
func ParseClock(s string) (string, error) {
	m := clockPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return "", fmt.Errorf("%q is not a time (HH:MM)", s)
	}
	h, _ := strconv.Atoi(m[1])
	min := 0
	if m[2] != "" {
		min, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	default:
		if m[2] == "" {
			return "", fmt.Errorf("%q is not a time (HH:MM)", s)
		}
	}
	if h > 23 || min > 59 {
		return "", fmt.Errorf("%q is not a valid time", s)
	}
	return fmt.Sprintf("%02d:%02d", h, min), nil
}

func toClock(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a time, got %T", v)
	}
	return ParseClock(s)
}

func toList(v any) ([]string, error) {
	var out []string
	switch t := v.(type) {
	case []string:
		out = t
	case []any:
		for _, e := range t {
			s, err := toText(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	case string:
		out = strings.Split(t, ",")
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	clean := make([]string, 0, len(out))
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	return clean, nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
