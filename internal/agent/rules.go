package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/aide/internal/store"
)

// RuleInterpreter reads instructions with keyword and pattern rules. It
// needs no model and is deterministic, which also makes it the reference
// behaviour in tests.
type RuleInterpreter struct {
	Now func() time.Time
}

var (
	reID        = regexp.MustCompile(`(?i)\b([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\b`)
	reLabeledID = regexp.MustCompile(`(?i)\bid\s*[:#]?\s*([a-z0-9_-]+)`)
	reQuoted    = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|'([^']{2,})'`)
	reISODate   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	reDateRange = regexp.MustCompile(`(?i)\bfrom\s+(\d{4}-\d{2}-\d{2})\s+(?:to|until|through)\s+(\d{4}-\d{2}-\d{2})\b`)
	reDollar    = regexp.MustCompile(`\$\s*(\d+(?:,\d{3})*(?:\.\d{1,2})?)`)
	reCurrency  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d{1,2})?)\s*(?:dollars?|usd|bucks|euros?|eur)\b`)
	reNumber    = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
	reAssign    = regexp.MustCompile(`(?i)\b([a-z_]+)\s+(?:to|=|:)\s+("[^"]*"|[^\s,;]+)`)
	reClockAt   = regexp.MustCompile(`(?i)\bat\s+(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)\b`)
	reClock     = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm))\b`)
	reMinutes   = regexp.MustCompile(`(?i)\b(?:for\s+)?(\d+)\s*(?:min|mins|minutes)\b`)
	reHours     = regexp.MustCompile(`(?i)\b(?:for\s+)?(\d+(?:\.\d+)?)\s*(?:h|hr|hrs|hours?)\b`)
	reEmail     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reLocation  = regexp.MustCompile(`(?i)\blocation\s*[:=]\s*([^,;]+)`)
	reCalories  = regexp.MustCompile(`(?i)\b(\d+)\s*(?:kcal|cals?|calories)\b`)
	reWeekday   = regexp.MustCompile(`(?i)\b(?:on\s+|next\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var (
	verbsDelete = wordsRe("delete", "remove", "erase", "discard")
	leadDelete  = regexp.MustCompile(`(?i)^(?:please\s+)?(?:delete|remove|erase|discard)\b`)
	verbsUpdate = wordsRe("update", "change", "edit", "modify", "mark", "set", "rename", "reschedule", "move")
	verbsCreate = wordsRe("add", "create", "log", "record", "new", "save", "spent", "spend", "paid", "bought", "schedule", "book", "remember", "jot", "ate", "eaten", "had", "drank", "track", "note down", "write down", "set up", "remind me")
	verbsSearch = wordsRe("search", "find", "look for", "containing", "mentioning", "about")
	verbsList   = wordsRe("show", "list", "view", "display", "get", "what", "which", "see", "my")
)

func wordsRe(words ...string) *regexp.Regexp {
	for i, w := range words {
		words[i] = strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

func (r *RuleInterpreter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *RuleInterpreter) Interpret(_ context.Context, p Profile, instruction string) (Intent, error) {
	text := strings.TrimSpace(instruction)
	if text == "" {
		return Intent{}, fmt.Errorf("%w: empty instruction", ErrNotUnderstood)
	}
	var in Intent
	switch p.Name {
	case DomainExpenses:
		in = r.expenses(text)
	case DomainNotes:
		in = r.notes(text)
	case DomainMeetings:
		in = r.meetings(text)
	case DomainHealth:
		in = r.health(text)
	default:
		return Intent{}, fmt.Errorf("%w: no rules for %s", ErrNotUnderstood, p.Name)
	}
	if err := in.check(p); err != nil {
		return Intent{}, err
	}
	return in, nil
}

// baseOp finds delete or update (both need an id) before anything else. A
// leading delete verb without an id still yields delete so that it is
// rejected instead of read as something else.
func baseOp(text string) (op, id string) {
	id = findID(text)
	if id == "" {
		if leadDelete.MatchString(text) {
			return OpDelete, ""
		}
		return "", ""
	}
	if verbsDelete.MatchString(text) {
		return OpDelete, id
	}
	if verbsUpdate.MatchString(text) {
		return OpUpdate, id
	}
	return "", id
}

func findID(text string) string {
	if m := reID.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	if m := reLabeledID.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func quoted(text string) string {
	m := reQuoted.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}

// assignments reads "field to value" pairs, keeping only schema fields.
func assignments(text string, s *store.Schema, aliases map[string]string) map[string]any {
	out := map[string]any{}
	for _, m := range reAssign.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		if a, ok := aliases[name]; ok {
			name = a
		}
		if _, ok := s.Field(name); !ok {
			continue
		}
		out[name] = strings.Trim(m[2], `"`)
	}
	return out
}

func (r *RuleInterpreter) date(text string) string {
	if m := reISODate.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	lower := strings.ToLower(text)
	now := r.now()
	switch {
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1).Format("2006-01-02")
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(lower, "today") || strings.Contains(lower, "tonight"):
		return now.Format("2006-01-02")
	}
	if m := reWeekday.FindStringSubmatch(text); m != nil {
		return nextWeekday(now, m[1]).Format("2006-01-02")
	}
	return ""
}

func (r *RuleInterpreter) dateOrToday(text string) string {
	if d := r.date(text); d != "" {
		return d
	}
	return r.now().Format("2006-01-02")
}

func nextWeekday(now time.Time, name string) time.Time {
	for i := 1; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		if strings.EqualFold(d.Weekday().String(), name) {
			return d
		}
	}
	return now
}

// rangeFilter reads explicit ranges, or a named period for reports.
func (r *RuleInterpreter) rangeFilter(text string) (from, to, period string) {
	if m := reDateRange.FindStringSubmatch(text); m != nil {
		return m[1], m[2], ""
	}
	lower := strings.ToLower(text)
	now := r.now()
	day := func(t time.Time) string { return t.Format("2006-01-02") }
	switch {
	case strings.Contains(lower, "today"):
		return day(now), day(now), ""
	case strings.Contains(lower, "yesterday"):
		y := now.AddDate(0, 0, -1)
		return day(y), day(y), ""
	case strings.Contains(lower, "tomorrow"):
		t := now.AddDate(0, 0, 1)
		return day(t), day(t), ""
	case strings.Contains(lower, "last month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return day(first.AddDate(0, -1, 0)), day(first.AddDate(0, 0, -1)), ""
	case strings.Contains(lower, "week"):
		return "", "", "week"
	case strings.Contains(lower, "month"):
		return "", "", "month"
	case strings.Contains(lower, "quarter"):
		return "", "", "quarter"
	case strings.Contains(lower, "year"):
		return "", "", "year"
	}
	if m := reISODate.FindStringSubmatch(text); m != nil {
		return m[1], m[1], ""
	}
	return "", "", ""
}

// PeriodStart returns the first day of a reporting period. Unknown periods
// have no lower bound.
func PeriodStart(now time.Time, period string) string {
	switch period {
	case "week":
		return now.AddDate(0, 0, -7).Format("2006-01-02")
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	case "quarter":
		m := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), m, 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	case "year":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	}
	return ""
}

func (r *RuleInterpreter) listFilter(text string, categories []string, keywords []keyword) store.Filter {
	from, to, period := r.rangeFilter(text)
	if period != "" {
		from = PeriodStart(r.now(), period)
	}
	f := store.Filter{From: from, To: to}
	f.Category = findCategory(text, categories, keywords)
	if q := quoted(text); q != "" {
		f.Text = q
	}
	return f
}

// keyword maps a word in an instruction onto a category value.
type keyword struct{ word, value string }

func findCategory(text string, categories []string, keywords []keyword) string {
	lower := strings.ToLower(text)
	for _, c := range categories {
		if hasWord(lower, c) {
			return c
		}
	}
	for _, kw := range keywords {
		if hasWord(lower, kw.word) {
			return kw.value
		}
	}
	return ""
}

func hasWord(lower, word string) bool {
	i := 0
	for {
		j := strings.Index(lower[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(lower[start-1])) && (end == len(lower) || !isWordByte(lower[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z'
}

// ---- expenses

var expenseKeywords = []keyword{
	{"lunch", "food"}, {"dinner", "food"}, {"breakfast", "food"}, {"coffee", "food"}, {"restaurant", "food"},
	{"groceries", "food"}, {"grocery", "food"}, {"pizza", "food"}, {"meal", "food"}, {"snack", "food"},
	{"uber", "transportation"}, {"lyft", "transportation"}, {"taxi", "transportation"}, {"gas", "transportation"},
	{"fuel", "transportation"}, {"bus", "transportation"}, {"train", "transportation"}, {"parking", "transportation"},
	{"movie", "entertainment"}, {"movies", "entertainment"}, {"concert", "entertainment"}, {"netflix", "entertainment"},
	{"game", "entertainment"}, {"tickets", "entertainment"},
	{"electricity", "utilities"}, {"water bill", "utilities"}, {"internet", "utilities"}, {"phone bill", "utilities"}, {"rent", "utilities"},
	{"doctor", "healthcare"}, {"pharmacy", "healthcare"}, {"medicine", "healthcare"}, {"dentist", "healthcare"},
	{"clothes", "shopping"}, {"shoes", "shopping"}, {"amazon", "shopping"}, {"gift", "shopping"},
}

var expenseAliases = map[string]string{"method": "payment_method", "payment": "payment_method", "cost": "amount", "price": "amount"}

var (
	reExpenseDesc = regexp.MustCompile(`(?i)\b(?:on|for)\s+(.+?)(?:\s+(?:today|yesterday|tomorrow|with|using|via|by|paid|in\s+cash|on\s+\d{4}-\d{2}-\d{2})\b.*)?$`)
	rePayment     = regexp.MustCompile(`(?i)\b(cash|credit|debit|online|card)\b`)
	reSummary     = regexp.MustCompile(`(?i)\b(summary|summarize|summarise|breakdown|break\s+down|total|how\s+much)\b`)
	reGroupBy     = regexp.MustCompile(`(?i)\bby\s+(category|date|day|payment(?:\s+method)?|method)\b`)
)

func (r *RuleInterpreter) expenses(text string) Intent {
	schema := store.MustSchema(store.Expenses)
	if op, id := baseOp(text); op != "" {
		in := Intent{Operation: op, ID: id}
		if op == OpUpdate {
			in.Fields = assignments(text, schema, expenseAliases)
		}
		return in
	}
	lower := strings.ToLower(text)
	_, _, period := r.rangeFilter(text)
	switch {
	case strings.Contains(lower, "all time") || hasWord(lower, "ever"):
		period = "all"
	case period == "":
		period = "month"
	}
	if strings.Contains(lower, "budget") {
		return Intent{Operation: OpBudget, Period: period, Filter: store.Filter{Category: findCategory(text, store.ExpenseCategories, nil)}}
	}
	if reSummary.MatchString(text) {
		groupBy := "category"
		if m := reGroupBy.FindStringSubmatch(text); m != nil {
			switch g := strings.ToLower(m[1]); {
			case g == "date" || g == "day":
				groupBy = "date"
			case strings.HasPrefix(g, "payment") || g == "method":
				groupBy = "payment_method"
			}
		}
		return Intent{Operation: OpSummary, Period: period, GroupBy: groupBy}
	}

	if amount := findAmount(text); amount != "" && verbsCreate.MatchString(text) {
		fields := map[string]any{"amount": amount}
		if c := findCategory(text, store.ExpenseCategories, expenseKeywords); c != "" {
			fields["category"] = c
		} else {
			fields["category"] = "other"
		}
		fields["date"] = r.dateOrToday(text)
		if m := rePayment.FindStringSubmatch(text); m != nil {
			pm := strings.ToLower(m[1])
			if pm == "card" {
				pm = "credit"
			}
			fields["payment_method"] = pm
		}
		if q := quoted(text); q != "" {
			fields["description"] = q
		} else if m := reExpenseDesc.FindStringSubmatch(text); m != nil {
			fields["description"] = strings.TrimSpace(m[1])
		}
		if strings.Contains(lower, "recurring") || strings.Contains(lower, "every month") || strings.Contains(lower, "monthly") {
			fields["is_recurring"] = true
		}
		return Intent{Operation: OpCreate, Fields: fields}
	}
	if verbsCreate.MatchString(text) && !verbsList.MatchString(text) {
		// an add without an amount still goes to create so validation can ask for it
		return Intent{Operation: OpCreate, Fields: map[string]any{
			"category": findCategory(text, store.ExpenseCategories, expenseKeywords),
			"date":     r.dateOrToday(text),
		}}
	}
	return Intent{Operation: OpList, Filter: r.listFilter(text, store.ExpenseCategories, expenseKeywords)}
}

func findAmount(text string) string {
	if m := reDollar.FindStringSubmatch(text); m != nil {
		return strings.ReplaceAll(m[1], ",", "")
	}
	if m := reCurrency.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	clean := reISODate.ReplaceAllString(text, " ")
	clean = reID.ReplaceAllString(clean, " ")
	if m := reNumber.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	return ""
}

// ---- notes

var (
	reNoteLead   = regexp.MustCompile(`(?i)^(?:please\s+)?(?:add|create|save|make|new|write(?:\s+down)?|jot(?:\s+down)?|note(?:\s+down)?|remember|remind\s+me)\b\s*(?:a\s+|an\s+|new\s+)?(?:note\s*)?(?:that\b|to\b|saying\b|:|-)?\s*`)
	reNoteAbout  = regexp.MustCompile(`(?i)\b(?:about|containing|mentioning|regarding)\s+(.+)$`)
	reNoteSearch = regexp.MustCompile(`(?i)^(?:search|find|look\s+for)\s+(?:my\s+)?(?:notes?\s+)?(?:for\s+)?(.+)$`)
	reDone       = regexp.MustCompile(`(?i)\b(?:as\s+)?(done|complete|completed|finished)\b`)
	reUndone     = regexp.MustCompile(`(?i)\b(?:as\s+)?(not\s+done|incomplete|open|pending|undone)\b`)
)

func (r *RuleInterpreter) notes(text string) Intent {
	schema := store.MustSchema(store.Notes)
	if op, id := baseOp(text); op != "" {
		in := Intent{Operation: op, ID: id}
		if op == OpUpdate {
			in.Fields = assignments(text, schema, map[string]string{"text": "content", "completed": "is_completed", "done": "is_completed"})
			switch {
			case reUndone.MatchString(text):
				in.Fields["is_completed"] = false
			case reDone.MatchString(text):
				in.Fields["is_completed"] = true
			}
			if q := quoted(text); q != "" {
				in.Fields["content"] = q
			}
		}
		return in
	}
	if verbsSearch.MatchString(text) && !reNoteLead.MatchString(text) {
		q := quoted(text)
		if q == "" {
			if m := reNoteAbout.FindStringSubmatch(text); m != nil {
				q = m[1]
			} else if m := reNoteSearch.FindStringSubmatch(text); m != nil {
				q = m[1]
			}
			q = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(q), "?"))
		}
		if q != "" {
			return Intent{Operation: OpSearch, Query: q}
		}
	}
	if reNoteLead.MatchString(text) {
		content := quoted(text)
		if content == "" {
			content = strings.TrimSpace(reNoteLead.ReplaceAllString(text, ""))
		}
		return Intent{Operation: OpCreate, Fields: map[string]any{"content": content}}
	}
	f := store.Filter{}
	if q := quoted(text); q != "" {
		f.Text = q
	}
	in := Intent{Operation: OpList, Filter: f}
	switch {
	case reUndone.MatchString(text):
		in.Query = "open"
	case reDone.MatchString(text):
		in.Query = "completed"
	}
	return in
}

// ---- meetings

var (
	reCancel       = regexp.MustCompile(`(?i)\bcancel`)
	reFind         = regexp.MustCompile(`(?i)\b(search|find)\b`)
	reMeetingAbout = regexp.MustCompile(`(?i)\b(?:with|about|for|titled)\s+(.+)$`)
	reMeetingLead  = regexp.MustCompile(`(?i)^(?:please\s+)?(?:schedule|book|add|create|set\s+up|arrange|plan)\s+(?:a\s+|an\s+|new\s+)?`)
	reMeetingJunk  = regexp.MustCompile(`(?i)\b(?:on\s+)?(?:today|tomorrow|tonight)\b|\bon\s+\d{4}-\d{2}-\d{2}\b|\d{4}-\d{2}-\d{2}|\bwith\s+[A-Za-z0-9._%+-]+@[^\s,]+(?:\s*(?:,|and)\s*[A-Za-z0-9._%+-]+@[^\s,]+)*|\blocation\s*[:=]\s*[^,;]+`)
)

func (r *RuleInterpreter) meetings(text string) Intent {
	schema := store.MustSchema(store.Meetings)
	lower := strings.ToLower(text)
	id := findID(text)
	if id != "" && reCancel.MatchString(text) && !verbsDelete.MatchString(text) {
		return Intent{Operation: OpUpdate, ID: id, Fields: map[string]any{"status": "cancelled"}}
	}
	if op, id := baseOp(text); op != "" {
		in := Intent{Operation: op, ID: id}
		if op == OpUpdate {
			in.Fields = assignments(text, schema, map[string]string{"duration": "duration_minutes", "place": "location", "name": "title"})
			if reDone.MatchString(text) {
				in.Fields["status"] = "completed"
			}
			if d := r.date(text); d != "" {
				if _, ok := in.Fields["date"]; !ok && strings.Contains(lower, "reschedule") {
					in.Fields["date"] = d
				}
			}
			if m := reClockAt.FindStringSubmatch(text); m != nil && strings.Contains(lower, "reschedule") {
				in.Fields["time"] = m[1]
			}
		}
		return in
	}
	if reFind.MatchString(text) {
		if q := quoted(text); q != "" {
			return Intent{Operation: OpSearch, Query: q}
		}
		if m := reMeetingAbout.FindStringSubmatch(text); m != nil {
			return Intent{Operation: OpSearch, Query: strings.TrimSpace(strings.TrimSuffix(m[1], "?"))}
		}
	}
	if reMeetingLead.MatchString(text) {
		fields := map[string]any{}
		if d := r.date(text); d != "" {
			fields["date"] = d
		}
		rest := text
		if m := reClockAt.FindStringSubmatch(text); m != nil {
			fields["time"] = strings.TrimSpace(m[1])
			rest = strings.Replace(rest, m[0], " ", 1)
		} else if m := reClock.FindStringSubmatch(text); m != nil {
			fields["time"] = strings.TrimSpace(m[1])
			rest = strings.Replace(rest, m[0], " ", 1)
		}
		if m := reMinutes.FindStringSubmatch(rest); m != nil {
			fields["duration_minutes"] = m[1]
			rest = strings.Replace(rest, m[0], " ", 1)
		} else if m := reHours.FindStringSubmatch(rest); m != nil {
			h, _ := strconv.ParseFloat(m[1], 64)
			fields["duration_minutes"] = int64(h * 60)
			rest = strings.Replace(rest, m[0], " ", 1)
		}
		if emails := reEmail.FindAllString(text, -1); len(emails) > 0 {
			fields["attendees"] = emails
		}
		if m := reLocation.FindStringSubmatch(text); m != nil {
			fields["location"] = strings.TrimSpace(m[1])
		}
		title := quoted(text)
		if title == "" {
			rest = reMeetingLead.ReplaceAllString(strings.TrimSpace(rest), "")
			rest = reMeetingJunk.ReplaceAllString(rest, " ")
			rest = reWeekday.ReplaceAllString(rest, " ")
			title = strings.Trim(strings.Join(strings.Fields(rest), " "), " ,.")
		}
		fields["title"] = title
		return Intent{Operation: OpCreate, Fields: fields}
	}

	f := r.listFilter(text, store.MeetingStatuses, []keyword{{"canceled", "cancelled"}})
	if strings.Contains(lower, "upcoming") || strings.Contains(lower, "coming up") {
		f.From, f.To = r.now().Format("2006-01-02"), ""
	} else if f.From == "" && f.To == "" {
		if d := r.date(text); d != "" {
			f.From, f.To = d, d
		}
	}
	return Intent{Operation: OpList, Filter: f}
}

// ---- health

var (
	reFoodWords  = wordsRe("ate", "eat", "eaten", "had", "food", "meal", "meals", "breakfast", "lunch", "dinner", "snack", "calorie", "calories", "diet", "drank")
	reGoalWords  = wordsRe("goal", "goals", "target", "targets", "aim")
	reFoodItem   = regexp.MustCompile(`(?i)\b(?:ate|eat|eaten|had|drank|log(?:ged)?)\s+(?:a\s+|an\s+|some\s+|the\s+)?(.+?)(?:\s+for\s+(?:breakfast|lunch|dinner|a\s+snack|snack)\b.*|\s*\(.*|\s*,.*|\s+(?:with|at|today|yesterday)\b.*|\s+\d+\s*(?:kcal|cals?|calories)\b.*)?$`)
	reDaily      = regexp.MustCompile(`(?i)\b(daily|total|how\s+many\s+calories|calories\s+(?:today|yesterday))\b`)
	reGoalCreate = regexp.MustCompile(`(?i)\b(?:i\s+want\s+to|my\s+goal\s+is|set\s+(?:a\s+|my\s+)?(?:new\s+)?(?:\w+\s+)?goal|goal\s+(?:to|of))\b`)
	goalTypes    = []keyword{
		{"weight", "weight"}, {"kg", "weight"}, {"lbs", "weight"}, {"pounds", "weight"},
		{"steps", "steps"}, {"walk", "steps"},
		{"water", "water"}, {"glasses", "water"}, {"liters", "water"},
		{"calorie", "calories"}, {"calories", "calories"},
		{"exercise", "exercise"}, {"workout", "exercise"}, {"run", "exercise"}, {"gym", "exercise"},
		{"sleep", "sleep"},
	}
)

func (r *RuleInterpreter) health(text string) Intent {
	lower := strings.ToLower(text)
	collection := store.FoodLogs
	if reGoalWords.MatchString(text) || strings.Contains(lower, "progress") {
		collection = store.HealthGoals
	} else if !reFoodWords.MatchString(text) && !strings.Contains(lower, "food") {
		collection = store.HealthGoals
	}

	if op, id := baseOp(text); op != "" {
		in := Intent{Operation: op, ID: id, Collection: collection}
		if op == OpUpdate {
			schema := store.MustSchema(collection)
			in.Fields = assignments(text, schema, map[string]string{
				"current": "current_value", "progress": "current_value", "target": "target_value",
				"type": "goal_type", "meal": "meal_type", "food": "food_item", "item": "food_item",
			})
		}
		return in
	}
	if strings.Contains(lower, "progress") {
		return Intent{Operation: OpProgress, Collection: store.HealthGoals}
	}
	if collection == store.FoodLogs && reDaily.MatchString(text) {
		in := Intent{Operation: OpDaily, Collection: store.FoodLogs}
		if d := r.date(text); d != "" {
			in.Filter = store.Filter{From: d, To: d}
		}
		return in
	}

	if verbsCreate.MatchString(text) || reGoalCreate.MatchString(text) {
		if collection == store.FoodLogs {
			return Intent{Operation: OpCreate, Collection: store.FoodLogs, Fields: r.foodFields(text)}
		}
		fields := map[string]any{}
		goalType := findCategory(text, nil, goalTypes)
		if goalType == "" {
			goalType = "general"
		}
		fields["goal_type"] = goalType
		if m := reNumber.FindStringSubmatch(reISODate.ReplaceAllString(text, " ")); m != nil {
			fields["target_value"] = m[1]
		}
		fields["description"] = text
		return Intent{Operation: OpCreate, Collection: store.HealthGoals, Fields: fields}
	}

	if collection == store.FoodLogs {
		f := r.listFilter(text, store.MealTypes, nil)
		return Intent{Operation: OpList, Collection: store.FoodLogs, Filter: f}
	}
	return Intent{Operation: OpList, Collection: store.HealthGoals, Filter: store.Filter{Category: findCategory(text, nil, goalTypes)}}
}

func (r *RuleInterpreter) foodFields(text string) map[string]any {
	fields := map[string]any{}
	if c := findCategory(text, store.MealTypes, nil); c != "" {
		fields["meal_type"] = c
	} else {
		fields["meal_type"] = mealForHour(r.now().Hour())
	}
	if m := reCalories.FindStringSubmatch(text); m != nil {
		fields["calories"] = m[1]
	}
	fields["date"] = r.dateOrToday(text)
	if q := quoted(text); q != "" {
		fields["food_item"] = q
	} else if m := reFoodItem.FindStringSubmatch(text); m != nil {
		fields["food_item"] = strings.TrimSpace(m[1])
	}
	return fields
}

func mealForHour(h int) string {
	switch {
	case h < 11:
		return "breakfast"
	case h < 16:
		return "lunch"
	case h < 21:
		return "dinner"
	}
	return "snack"
}
