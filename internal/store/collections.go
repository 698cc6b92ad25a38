package store

import "sort"

// Collection names.
const (
	Expenses    = "expenses"
	Notes       = "notes"
	Meetings    = "meetings"
	HealthGoals = "health_goals"
	FoodLogs    = "food_logs"
)

// ExpenseCategories are the accepted expense categories.
var ExpenseCategories = []string{"food", "transportation", "entertainment", "utilities", "healthcare", "shopping", "other"}

// PaymentMethods are the accepted expense payment methods.
var PaymentMethods = []string{"cash", "credit", "debit", "online"}

// MeetingStatuses are the accepted meeting statuses.
var MeetingStatuses = []string{"scheduled", "completed", "cancelled"}

// MealTypes are the accepted food log meal types.
var MealTypes = []string{"breakfast", "lunch", "dinner", "snack"}

var schemas = map[string]*Schema{
	Expenses: {
		Collection: Expenses,
		Fields: []Field{
			{Name: "amount", Kind: KindNumber, Required: true, Positive: true, Decimals: 2, Below: 1e10},
			{Name: "category", Kind: KindText, Required: true, Enum: ExpenseCategories},
			{Name: "description", Kind: KindText, Default: ""},
			{Name: "date", Kind: KindDate, DefaultToday: true},
			{Name: "currency", Kind: KindText, Default: "USD"},
			{Name: "payment_method", Kind: KindText, Default: "credit", Enum: PaymentMethods},
			{Name: "subcategory", Kind: KindText},
			{Name: "tags", Kind: KindList, Default: []string{}},
			{Name: "is_recurring", Kind: KindBool, Default: false},
		},
		DateField:     "date",
		CategoryField: "category",
		AmountField:   "amount",
		TextFields:    []string{"description", "subcategory", "category"},
	},
	Notes: {
		Collection: Notes,
		Fields: []Field{
			{Name: "content", Kind: KindText, Required: true},
			{Name: "is_completed", Kind: KindBool, Default: false},
		},
		TextFields: []string{"content"},
	},
	Meetings: {
		Collection: Meetings,
		Fields: []Field{
			{Name: "title", Kind: KindText, Required: true},
			{Name: "date", Kind: KindDate, Required: true},
			{Name: "time", Kind: KindTime, Required: true},
			{Name: "duration_minutes", Kind: KindInteger, Default: int64(60), Positive: true},
			{Name: "attendees", Kind: KindList, Default: []string{}},
			{Name: "location", Kind: KindText, Default: ""},
			{Name: "description", Kind: KindText, Default: ""},
			{Name: "status", Kind: KindText, Default: "scheduled", Enum: MeetingStatuses},
		},
		DateField:     "date",
		CategoryField: "status",
		TextFields:    []string{"title", "description", "location", "attendees"},
	},
	HealthGoals: {
		Collection: HealthGoals,
		Fields: []Field{
			{Name: "goal_type", Kind: KindText, Required: true},
			{Name: "target_value", Kind: KindNumber, Required: true},
			{Name: "current_value", Kind: KindNumber, Default: float64(0)},
			{Name: "description", Kind: KindText, Default: ""},
		},
		CategoryField: "goal_type",
		AmountField:   "target_value",
		TextFields:    []string{"goal_type", "description"},
	},
	FoodLogs: {
		Collection: FoodLogs,
		Fields: []Field{
			{Name: "meal_type", Kind: KindText, Required: true, Enum: MealTypes},
			{Name: "food_item", Kind: KindText, Required: true},
			{Name: "calories", Kind: KindInteger, NonNegative: true},
			{Name: "date", Kind: KindDate, DefaultToday: true},
		},
		DateField:     "date",
		CategoryField: "meal_type",
		AmountField:   "calories",
		TextFields:    []string{"food_item", "meal_type"},
	},
}

// SchemaFor returns the schema of a collection.
func SchemaFor(collection string) (*Schema, bool) {
	s, ok := schemas[collection]
	return s, ok
}

// MustSchema is SchemaFor for collections known at compile time.
func MustSchema(collection string) *Schema {
	s, ok := schemas[collection]
	if !ok {
		panic("store: unknown collection " + collection)
	}
	return s
}

// Collections lists every collection name in a stable order.
func Collections() []string {
	out := make([]string, 0, len(schemas))
	for name := range schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
