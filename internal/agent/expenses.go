package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/aide/internal/store"
)

const (
	DomainExpenses = "expenses"

	OpSummary = "summary"
	OpBudget  = "budget"
)

// BudgetLimits are the per-category spending limits by period.
var BudgetLimits = map[string]map[string]float64{
	"food":           {"week": 150, "month": 600, "quarter": 1800, "year": 7200},
	"transportation": {"week": 75, "month": 300, "quarter": 900, "year": 3600},
	"entertainment":  {"week": 100, "month": 400, "quarter": 1200, "year": 4800},
	"utilities":      {"week": 50, "month": 200, "quarter": 600, "year": 2400},
	"healthcare":     {"week": 25, "month": 100, "quarter": 300, "year": 1200},
	"shopping":       {"week": 125, "month": 500, "quarter": 1500, "year": 6000},
	"other":          {"week": 50, "month": 200, "quarter": 600, "year": 2400},
}

// ExpenseDomain tracks spending.
type ExpenseDomain struct{}

func (ExpenseDomain) Profile() Profile {
	return Profile{
		Name:        DomainExpenses,
		Title:       "Expense tracking",
		Collections: []string{store.Expenses},
		Operations:  []string{OpCreate, OpList, OpUpdate, OpDelete, OpSummary, OpBudget},
		Examples: []string{
			"I spent $12.50 on lunch today",
			"Show my food expenses this month",
			"Give me a summary of this month's spending by category",
			"How is my food budget this month?",
		},
	}
}

func (ExpenseDomain) Describe(_ string, rec store.Record) string {
	f := rec.Fields
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s", money(f.Float("amount")), f.String("category"))
	if d := f.String("description"); d != "" {
		fmt.Fprintf(&b, " (%s)", d)
	}
	if d := f.String("date"); d != "" {
		fmt.Fprintf(&b, " on %s", d)
	}
	if pm := f.String("payment_method"); pm != "" {
		fmt.Fprintf(&b, " via %s", pm)
	}
	if f.Bool("is_recurring") {
		b.WriteString(", recurring")
	}
	return b.String()
}

func (d ExpenseDomain) Report(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, bool, error) {
	switch in.Operation {
	case OpSummary:
		reply, prov, err := d.summary(ctx, env, in, userID)
		return reply, prov, true, err
	case OpBudget:
		reply, prov, err := d.budget(ctx, env, in, userID)
		return reply, prov, true, err
	}
	return "", "", false, nil
}

func periodLabel(period string) string {
	switch period {
	case "week":
		return "the last 7 days"
	case "month":
		return "this month"
	case "quarter":
		return "this quarter"
	case "year":
		return "this year"
	}
	return "all time"
}

type group struct {
	key   string
	total float64
	count int
}

func (ExpenseDomain) summary(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, error) {
	f := in.Filter
	if start := PeriodStart(env.Now(), in.Period); start != "" && f.From == "" {
		f.From = start
	}
	res, err := env.List(ctx, store.Expenses, userID, f)
	if err != nil {
		return "", "", err
	}
	label := periodLabel(in.Period)
	if len(res.Records) == 0 {
		return fmt.Sprintf("No expenses recorded for %s.", label), res.Provenance, nil
	}

	key := in.GroupBy
	switch key {
	case "date", "payment_method":
	default:
		key = "category"
	}
	groups := map[string]*group{}
	var total float64
	for _, r := range res.Records {
		amt := r.Fields.Float("amount")
		total += amt
		k := r.Fields.String(key)
		if k == "" {
			k = "unspecified"
		}
		g, ok := groups[k]
		if !ok {
			g = &group{key: k}
			groups[k] = g
		}
		g.total += amt
		g.count++
	}
	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].total != sorted[j].total {
			return sorted[i].total > sorted[j].total
		}
		return sorted[i].key < sorted[j].key
	})

	n := len(res.Records)
	var b strings.Builder
	fmt.Fprintf(&b, "Expense summary for %s:\n", label)
	fmt.Fprintf(&b, "Total: %s across %d transaction", money(total), n)
	if n != 1 {
		b.WriteString("s")
	}
	fmt.Fprintf(&b, " (average %s)\n", money(total/float64(n)))
	fmt.Fprintf(&b, "By %s:", strings.ReplaceAll(key, "_", " "))
	for _, g := range sorted {
		pct := 0.0
		if total > 0 {
			pct = g.total / total * 100
		}
		fmt.Fprintf(&b, "\n- %s: %s (%.1f%%, %d)", g.key, money(g.total), pct, g.count)
	}
	return b.String(), res.Provenance, nil
}

// BudgetVerdict describes how much of a limit has been used.
func BudgetVerdict(pct float64) string {
	switch {
	case pct < 50:
		return "You're well within your budget."
	case pct < 80:
		return "You're on track, but keep monitoring your spending."
	case pct < 100:
		return "You're approaching your budget limit."
	}
	return "You've exceeded your budget."
}

func (ExpenseDomain) budget(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, error) {
	period := in.Period
	switch period {
	case "week", "month", "quarter", "year":
	default:
		period = "month"
	}
	res, err := env.List(ctx, store.Expenses, userID, store.Filter{From: PeriodStart(env.Now(), period)})
	if err != nil {
		return "", "", err
	}
	spent := map[string]float64{}
	for _, r := range res.Records {
		spent[r.Fields.String("category")] += r.Fields.Float("amount")
	}
	label := periodLabel(period)

	category := strings.ToLower(strings.TrimSpace(in.Filter.Category))
	if limits, ok := BudgetLimits[category]; ok {
		limit := limits[period]
		used := spent[category]
		pct := used / limit * 100
		var b strings.Builder
		fmt.Fprintf(&b, "Budget for %s (%s): spent %s of %s (%.1f%%), %s remaining.\n",
			category, label, money(used), money(limit), pct, money(max(limit-used, 0)))
		b.WriteString(BudgetVerdict(pct))
		return b.String(), res.Provenance, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Budget status for %s:", label)
	var over []string
	for _, c := range store.ExpenseCategories {
		limit := BudgetLimits[c][period]
		used := spent[c]
		pct := used / limit * 100
		fmt.Fprintf(&b, "\n- %s: %s of %s (%.1f%%)", c, money(used), money(limit), pct)
		if pct >= 100 {
			over = append(over, c)
		}
	}
	if len(over) > 0 {
		fmt.Fprintf(&b, "\nTip: you're over budget on %s. Look for cuts there first.", strings.Join(over, ", "))
	} else {
		b.WriteString("\nTip: ask about a single category to see how close you are to its limit.")
	}
	return b.String(), res.Provenance, nil
}
