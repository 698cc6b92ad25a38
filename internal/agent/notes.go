package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/aide/internal/store"
)

const (
	DomainNotes = "notes"

	OpSearch = "search"
)

// NoteDomain keeps free-form notes and to-dos.
type NoteDomain struct{}

func (NoteDomain) Profile() Profile {
	return Profile{
		Name:        DomainNotes,
		Title:       "Notes",
		Collections: []string{store.Notes},
		Operations:  []string{OpCreate, OpList, OpUpdate, OpDelete, OpSearch},
		Examples: []string{
			`Add a note: "buy milk on the way home"`,
			"Show my notes",
			"Search my notes about groceries",
			"Mark note id 1234 as done",
		},
	}
}

func (NoteDomain) Describe(_ string, rec store.Record) string {
	mark := "[ ]"
	if rec.Fields.Bool("is_completed") {
		mark = "[x]"
	}
	return mark + " " + rec.Fields.String("content")
}

func (d NoteDomain) Report(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, bool, error) {
	switch in.Operation {
	case OpSearch:
		reply, prov, err := d.search(ctx, env, in, userID)
		return reply, prov, true, err
	case OpList:
		if in.Query != "open" && in.Query != "completed" {
			return "", "", false, nil
		}
		reply, prov, err := d.byState(ctx, env, in, userID)
		return reply, prov, true, err
	}
	return "", "", false, nil
}

func (d NoteDomain) byState(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, error) {
	res, err := env.List(ctx, store.Notes, userID, in.Filter)
	if err != nil {
		return "", "", err
	}
	want := in.Query == "completed"
	var b strings.Builder
	n := 0
	for _, r := range res.Records {
		if r.Fields.Bool("is_completed") != want {
			continue
		}
		n++
		fmt.Fprintf(&b, "\n- %s (id: %s)", d.Describe(store.Notes, r), r.ID)
	}
	if n == 0 {
		return fmt.Sprintf("No %s notes found.", in.Query), res.Provenance, nil
	}
	return fmt.Sprintf("Found %d %s note(s):%s", n, in.Query, b.String()), res.Provenance, nil
}

// search ranks the caller's notes with an in-memory full text index built
// per request, so no index ever holds another user's notes.
func (d NoteDomain) search(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, error) {
	q := strings.TrimSpace(in.Query)
	if q == "" {
		q = strings.TrimSpace(in.Filter.Text)
	}
	res, err := env.List(ctx, store.Notes, userID, store.Filter{From: in.Filter.From, To: in.Filter.To})
	if err != nil {
		return "", "", err
	}
	if q == "" || len(res.Records) == 0 {
		return "No notes found.", res.Provenance, nil
	}
	hits, err := rankNotes(res.Records, q, 10)
	if err != nil {
		return "", "", err
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No notes match %q.", q), res.Provenance, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d note(s) matching %q:", len(hits), q)
	for _, r := range hits {
		fmt.Fprintf(&b, "\n- %s (id: %s)", d.Describe(store.Notes, r), r.ID)
	}
	return b.String(), res.Provenance, nil
}

func rankNotes(notes []store.Record, q string, k int) ([]store.Record, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	defer index.Close()

	byID := make(map[string]store.Record, len(notes))
	batch := index.NewBatch()
	for _, r := range notes {
		byID[r.ID] = r
		if err := batch.Index(r.ID, map[string]any{"content": r.Fields.String("content")}); err != nil {
			return nil, err
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, err
	}

	query := bleve.NewMatchQuery(q)
	query.SetFuzziness(1)
	res, err := index.Search(bleve.NewSearchRequestOptions(query, k, 0, false))
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, 0, len(res.Hits))
	seen := map[string]bool{}
	for _, h := range res.Hits {
		if r, ok := byID[h.ID]; ok {
			out = append(out, r)
			seen[h.ID] = true
		}
	}
	// the analyzer drops stop words and short fragments; substrings still count
	lower := strings.ToLower(q)
	for _, r := range notes {
		if len(out) >= k {
			break
		}
		if !seen[r.ID] && strings.Contains(strings.ToLower(r.Fields.String("content")), lower) {
			out = append(out, r)
		}
	}
	return out, nil
}
