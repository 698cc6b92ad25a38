package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/aide/internal/store"
)

const (
	DomainHealth = "health"

	OpProgress = "progress"
	OpDaily    = "daily"
)

// HealthDomain covers health goals and the food log.
type HealthDomain struct{}

func (HealthDomain) Profile() Profile {
	return Profile{
		Name:        DomainHealth,
		Title:       "Health and diet",
		Collections: []string{store.HealthGoals, store.FoodLogs},
		Operations:  []string{OpCreate, OpList, OpUpdate, OpDelete, OpProgress, OpDaily},
		Examples: []string{
			"I ate a chicken salad for lunch, 450 calories",
			"Set a goal to walk 10000 steps a day",
			"How many calories did I eat today?",
			"Show my goal progress",
		},
	}
}

func (HealthDomain) Describe(collection string, rec store.Record) string {
	f := rec.Fields
	if collection == store.FoodLogs {
		s := fmt.Sprintf("%s: %s", f.String("meal_type"), f.String("food_item"))
		if f.Has("calories") {
			s += fmt.Sprintf(" (%d kcal)", f.Int("calories"))
		}
		if d := f.String("date"); d != "" {
			s += " on " + d
		}
		return s
	}
	s := fmt.Sprintf("%s goal: %s of %s", f.String("goal_type"), num(f.Float("current_value")), num(f.Float("target_value")))
	if d := f.String("description"); d != "" {
		s += " (" + d + ")"
	}
	return s
}

func (d HealthDomain) Report(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, bool, error) {
	switch in.Operation {
	case OpProgress:
		reply, prov, err := d.progress(ctx, env, in, userID)
		return reply, prov, true, err
	case OpDaily:
		reply, prov, err := d.daily(ctx, env, in, userID)
		return reply, prov, true, err
	}
	return "", "", false, nil
}

func (HealthDomain) progress(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, error) {
	res, err := env.List(ctx, store.HealthGoals, userID, store.Filter{Category: in.Filter.Category})
	if err != nil {
		return "", "", err
	}
	if len(res.Records) == 0 {
		return "You have no health goals yet. Try \"set a goal to drink 8 glasses of water a day\".", res.Provenance, nil
	}
	var b strings.Builder
	b.WriteString("Goal progress:")
	for _, r := range res.Records {
		cur, target := r.Fields.Float("current_value"), r.Fields.Float("target_value")
		pct := 0.0
		if target != 0 {
			pct = cur / target * 100
		}
		fmt.Fprintf(&b, "\n- %s: %s / %s (%.0f%%)", r.Fields.String("goal_type"), num(cur), num(target), pct)
		if desc := r.Fields.String("description"); desc != "" {
			fmt.Fprintf(&b, " %s", desc)
		}
		if pct >= 100 {
			b.WriteString(" - reached!")
		}
		fmt.Fprintf(&b, " (id: %s)", r.ID)
	}
	return b.String(), res.Provenance, nil
}

func (HealthDomain) daily(ctx context.Context, env *Env, in Intent, userID string) (string, store.Provenance, error) {
	day := in.Filter.From
	if day == "" {
		day = env.Now().Format("2006-01-02")
	}
	res, err := env.List(ctx, store.FoodLogs, userID, store.Filter{From: day, To: day})
	if err != nil {
		return "", "", err
	}
	if len(res.Records) == 0 {
		return fmt.Sprintf("Nothing logged for %s.", day), res.Provenance, nil
	}
	byMeal := map[string]int64{}
	var total int64
	for _, r := range res.Records {
		c := r.Fields.Int("calories")
		byMeal[r.Fields.String("meal_type")] += c
		total += c
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Calories on %s: %d kcal across %d item(s)", day, total, len(res.Records))
	for _, m := range store.MealTypes {
		if c, ok := byMeal[m]; ok {
			fmt.Fprintf(&b, "\n- %s: %d kcal", m, c)
		}
	}
	return b.String(), res.Provenance, nil
}

func num(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
