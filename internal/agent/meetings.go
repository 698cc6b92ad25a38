package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/aide/internal/store"
)

const DomainMeetings = "meetings"

// MeetingDomain schedules meetings.
type MeetingDomain struct{}

func (MeetingDomain) Profile() Profile {
	return Profile{
		Name:        DomainMeetings,
		Title:       "Meeting scheduling",
		Collections: []string{store.Meetings},
		Operations:  []string{OpCreate, OpList, OpUpdate, OpDelete, OpSearch},
		Examples: []string{
			"Schedule a project sync tomorrow at 3pm for 30 minutes with ana@example.com",
			"Show my upcoming meetings",
			`Find meetings about "budget review"`,
			"Cancel meeting id 1234",
		},
	}
}

func (MeetingDomain) Describe(_ string, rec store.Record) string {
	f := rec.Fields
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s at %s", f.String("title"), f.String("date"), f.String("time"))
	if m := f.Int("duration_minutes"); m > 0 {
		fmt.Fprintf(&b, " (%d min)", m)
	}
	if a := f.Strings("attendees"); len(a) > 0 {
		fmt.Fprintf(&b, " with %s", strings.Join(a, ", "))
	}
	if l := f.String("location"); l != "" {
		fmt.Fprintf(&b, " at %s", l)
	}
	if s := f.String("status"); s != "" && s != "scheduled" {
		fmt.Fprintf(&b, " [%s]", s)
	}
	return b.String()
}

func (d MeetingDomain) Report(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, bool, error) {
	switch in.Operation {
	case OpSearch:
		f := in.Filter
		if q := strings.TrimSpace(in.Query); q != "" {
			f.Text = q
		}
		res, err := env.List(ctx, store.Meetings, userID, f)
		if err != nil {
			return "", "", true, err
		}
		sortMeetings(res.Records)
		if len(res.Records) == 0 {
			return fmt.Sprintf("No meetings match %q.", f.Text), res.Provenance, true, nil
		}
		return renderList(d, store.Meetings, res.Records), res.Provenance, true, nil
	case OpList:
		// chronological rather than insertion order
		res, err := env.List(ctx, store.Meetings, userID, in.Filter)
		if err != nil {
			return "", "", true, err
		}
		sortMeetings(res.Records)
		return renderList(d, store.Meetings, res.Records), res.Provenance, true, nil
	}
	return "", "", false, nil
}

func sortMeetings(recs []store.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a := recs[i].Fields.String("date") + " " + recs[i].Fields.String("time")
		b := recs[j].Fields.String("date") + " " + recs[j].Fields.String("time")
		return a < b
	})
}
