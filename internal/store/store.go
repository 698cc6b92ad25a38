// Package store persists domain records for the assistant.
//
// Every collection is served by two adapters that share one contract: the
// Postgres primary and the local JSON file fallback. A Router puts them
// behind a single interface and tags each result with the backend that
// actually answered.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Adapter is the CRUD contract shared by the primary and fallback backends.
// Every call is scoped to userID; records of other users are invisible.
type Adapter interface {
	Create(ctx context.Context, userID string, fields Fields) (Record, error)
	List(ctx context.Context, userID string, filter Filter) ([]Record, error)
	Update(ctx context.Context, userID, id string, patch Fields) (Record, error)
	// Delete reports whether a record was removed. A missing id is not an error.
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// Record is one stored item of a collection.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields holds the collection specific payload of a record.
// After schema normalization values are string, float64, int64, bool or []string.
type Fields map[string]any

func (f Fields) String(k string) string {
	switch v := f[k].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (f Fields) Float(k string) float64 {
	switch v := f[k].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return n
	}
	return 0
}

func (f Fields) Int(k string) int64 {
	switch v := f[k].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func (f Fields) Bool(k string) bool {
	b, _ := f[k].(bool)
	return b
}

func (f Fields) Strings(k string) []string {
	switch v := f[k].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, fmt.Sprint(s))
		}
		return out
	}
	return nil
}

// Has reports whether k is present with a non-nil value.
func (f Fields) Has(k string) bool {
	v, ok := f[k]
	return ok && v != nil
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if l, ok := v.([]string); ok {
			v = append([]string(nil), l...)
		}
		out[k] = v
	}
	return out
}

// Provenance names the backend that answered a router call.
type Provenance string

const (
	// ProvenancePrimary means the primary answered (for list: was reachable).
	ProvenancePrimary Provenance = "primary"
	// ProvenanceFallback means only the fallback is configured.
	ProvenanceFallback Provenance = "fallback"
	// ProvenanceFallbackUnavailable means the primary was unreachable.
	ProvenanceFallbackUnavailable Provenance = "fallback-unavailable"
	// ProvenanceFallbackError means the primary rejected the operation.
	ProvenanceFallbackError Provenance = "fallback-error"
)

// Local reports whether the result came from the local file.
func (p Provenance) Local() bool { return p != ProvenancePrimary }

// Op is a router operation.
type Op string

const (
	OpCreate Op = "create"
	OpList   Op = "list"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ParseOp accepts the operation names used in instructions and configs.
func ParseOp(s string) (Op, bool) {
	switch Op(strings.ToLower(strings.TrimSpace(s))) {
	case OpCreate:
		return OpCreate, true
	case OpList:
		return OpList, true
	case OpUpdate:
		return OpUpdate, true
	case OpDelete:
		return OpDelete, true
	}
	return "", false
}

// sortRecords orders by creation time then id so merged lists are stable.
func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
