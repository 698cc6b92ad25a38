package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/aide/internal/store"
)

// 2024-03-15 is a Friday.
var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func TestRuleInterpreterExpenses(t *testing.T) {
	r := &RuleInterpreter{Now: fixedNow}
	p := ExpenseDomain{}.Profile()

	cases := []struct {
		name  string
		input string
		check func(t *testing.T, in Intent)
	}{
		{"create", "I spent $12.50 on lunch today", func(t *testing.T, in Intent) {
			assert.Equal(t, OpCreate, in.Operation)
			assert.Equal(t, "12.50", in.Fields["amount"])
			assert.Equal(t, "food", in.Fields["category"])
			assert.Equal(t, "lunch", in.Fields["description"])
			assert.Equal(t, "2024-03-15", in.Fields["date"])
		}},
		{"create with card", "Paid 40 dollars for an uber yesterday with card", func(t *testing.T, in Intent) {
			assert.Equal(t, OpCreate, in.Operation)
			assert.Equal(t, "40", in.Fields["amount"])
			assert.Equal(t, "transportation", in.Fields["category"])
			assert.Equal(t, "credit", in.Fields["payment_method"])
			assert.Equal(t, "2024-03-14", in.Fields["date"])
		}},
		{"list by category and month", "Show my food expenses this month", func(t *testing.T, in Intent) {
			assert.Equal(t, OpList, in.Operation)
			assert.Equal(t, "food", in.Filter.Category)
			assert.Equal(t, "2024-03-01", in.Filter.From)
		}},
		{"delete", "delete expense id abc123", func(t *testing.T, in Intent) {
			assert.Equal(t, OpDelete, in.Operation)
			assert.Equal(t, "abc123", in.ID)
		}},
		{"update", "update expense id abc123 amount to 20", func(t *testing.T, in Intent) {
			assert.Equal(t, OpUpdate, in.Operation)
			assert.Equal(t, map[string]any{"amount": "20"}, in.Fields)
		}},
		{"summary", "Give me a summary of this month's spending by payment method", func(t *testing.T, in Intent) {
			assert.Equal(t, OpSummary, in.Operation)
			assert.Equal(t, "month", in.Period)
			assert.Equal(t, "payment_method", in.GroupBy)
		}},
		{"budget", "How is my food budget this week?", func(t *testing.T, in Intent) {
			assert.Equal(t, OpBudget, in.Operation)
			assert.Equal(t, "week", in.Period)
			assert.Equal(t, "food", in.Filter.Category)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := r.Interpret(context.Background(), p, tc.input)
			require.NoError(t, err)
			tc.check(t, in)
		})
	}
}

func TestRuleInterpreterNotes(t *testing.T) {
	r := &RuleInterpreter{Now: fixedNow}
	p := NoteDomain{}.Profile()
	ctx := context.Background()

	in, err := r.Interpret(ctx, p, `Add a note: "buy milk on the way home"`)
	require.NoError(t, err)
	assert.Equal(t, OpCreate, in.Operation)
	assert.Equal(t, "buy milk on the way home", in.Fields["content"])

	in, err = r.Interpret(ctx, p, "Add a note to call mom")
	require.NoError(t, err)
	assert.Equal(t, "call mom", in.Fields["content"])

	in, err = r.Interpret(ctx, p, "Search my notes about groceries")
	require.NoError(t, err)
	assert.Equal(t, OpSearch, in.Operation)
	assert.Equal(t, "groceries", in.Query)

	in, err = r.Interpret(ctx, p, "Mark note id n1 as done")
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, in.Operation)
	assert.Equal(t, true, in.Fields["is_completed"])

	in, err = r.Interpret(ctx, p, "Mark note id n1 as not done")
	require.NoError(t, err)
	assert.Equal(t, false, in.Fields["is_completed"])

	in, err = r.Interpret(ctx, p, "show my notes")
	require.NoError(t, err)
	assert.Equal(t, OpList, in.Operation)
}

func TestRuleInterpreterMeetings(t *testing.T) {
	r := &RuleInterpreter{Now: fixedNow}
	p := MeetingDomain{}.Profile()
	ctx := context.Background()

	in, err := r.Interpret(ctx, p, "Schedule a project sync tomorrow at 3pm for 30 minutes with ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, OpCreate, in.Operation)
	assert.Equal(t, "project sync", in.Fields["title"])
	assert.Equal(t, "2024-03-16", in.Fields["date"])
	assert.Equal(t, "3pm", in.Fields["time"])
	assert.Equal(t, "30", in.Fields["duration_minutes"])
	assert.Equal(t, []string{"ana@example.com"}, in.Fields["attendees"])

	in, err = r.Interpret(ctx, p, "Show my upcoming meetings")
	require.NoError(t, err)
	assert.Equal(t, OpList, in.Operation)
	assert.Equal(t, "2024-03-15", in.Filter.From)
	assert.Empty(t, in.Filter.To)

	in, err = r.Interpret(ctx, p, "Cancel meeting id m1")
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, in.Operation)
	assert.Equal(t, "cancelled", in.Fields["status"])

	in, err = r.Interpret(ctx, p, `find meetings about "budget review"`)
	require.NoError(t, err)
	assert.Equal(t, OpSearch, in.Operation)
	assert.Equal(t, "budget review", in.Query)
}

func TestRuleInterpreterHealth(t *testing.T) {
	r := &RuleInterpreter{Now: fixedNow}
	p := HealthDomain{}.Profile()
	ctx := context.Background()

	in, err := r.Interpret(ctx, p, "I ate a chicken salad for lunch, 450 calories")
	require.NoError(t, err)
	assert.Equal(t, OpCreate, in.Operation)
	assert.Equal(t, store.FoodLogs, in.Collection)
	assert.Equal(t, "lunch", in.Fields["meal_type"])
	assert.Equal(t, "chicken salad", in.Fields["food_item"])
	assert.Equal(t, "450", in.Fields["calories"])

	in, err = r.Interpret(ctx, p, "Set a goal to walk 10000 steps a day")
	require.NoError(t, err)
	assert.Equal(t, OpCreate, in.Operation)
	assert.Equal(t, store.HealthGoals, in.Collection)
	assert.Equal(t, "steps", in.Fields["goal_type"])
	assert.Equal(t, "10000", in.Fields["target_value"])

	in, err = r.Interpret(ctx, p, "How many calories did I eat today?")
	require.NoError(t, err)
	assert.Equal(t, OpDaily, in.Operation)
	assert.Equal(t, "2024-03-15", in.Filter.From)

	in, err = r.Interpret(ctx, p, "Show my goal progress")
	require.NoError(t, err)
	assert.Equal(t, OpProgress, in.Operation)
}

func TestRuleInterpreterRejectsEmptyAndUnknownDomain(t *testing.T) {
	r := &RuleInterpreter{Now: fixedNow}
	_, err := r.Interpret(context.Background(), ExpenseDomain{}.Profile(), "   ")
	assert.ErrorIs(t, err, ErrNotUnderstood)

	_, err = r.Interpret(context.Background(), Profile{Name: "travel", Operations: []string{OpList}}, "show trips")
	assert.ErrorIs(t, err, ErrNotUnderstood)
}

func TestPeriodStart(t *testing.T) {
	assert.Equal(t, "2024-03-08", PeriodStart(testNow, "week"))
	assert.Equal(t, "2024-03-01", PeriodStart(testNow, "month"))
	assert.Equal(t, "2024-01-01", PeriodStart(testNow, "quarter"))
	assert.Equal(t, "2024-01-01", PeriodStart(testNow, "year"))
	assert.Equal(t, "", PeriodStart(testNow, "all"))
	nov := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-10-01", PeriodStart(nov, "quarter"))
}
