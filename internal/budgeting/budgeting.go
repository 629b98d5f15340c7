// Package budgeting evaluates a monthly budget: savings or deficit, the
// per-category breakdown, progress towards a savings goal, the 50/30/20
// recommendation and a simple savings projection.
package budgeting

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Category string

const (
	Housing        Category = "Housing (Rent/Mortgage)"
	Utilities      Category = "Utilities"
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Entertainment  Category = "Entertainment"
	Healthcare     Category = "Healthcare"
	Insurance      Category = "Insurance"
	DebtPayments   Category = "Debt Payments"
	Education      Category = "Education"
	Savings        Category = "Savings & Investments"
	Miscellaneous  Category = "Miscellaneous"
)

// Categories lists the expense categories in form order.
var Categories = []Category{
	Housing, Utilities, Food, Transportation, Entertainment, Healthcare,
	Insurance, DebtPayments, Education, Savings, Miscellaneous,
}

var (
	needsCategories = []Category{Housing, Utilities, Food, Transportation, Healthcare, Insurance, DebtPayments}
	wantsCategories = []Category{Entertainment, Education, Miscellaneous}
)

// Input is one submission of the budgeting form.
type Input struct {
	Income           decimal.Decimal              `json:"income"`
	Expenses         map[Category]decimal.Decimal `json:"expenses"`
	GoalAmount       decimal.Decimal              `json:"goal_amount"`
	GoalMonths       int                          `json:"goal_months"`
	ProjectionMonths int                          `json:"projection_months"`
}

func (in Input) Validate() error {
	if in.Income.IsNegative() {
		return fmt.Errorf("income must not be negative")
	}
	for c, v := range in.Expenses {
		if !knownCategory(c) {
			return fmt.Errorf("unknown expense category %q", c)
		}
		if v.IsNegative() {
			return fmt.Errorf("expense %q must not be negative", c)
		}
	}
	if in.GoalAmount.IsNegative() {
		return fmt.Errorf("goal amount must not be negative")
	}
	if in.GoalMonths < 0 || in.ProjectionMonths < 0 {
		return fmt.Errorf("months must not be negative")
	}
	return nil
}

type Line struct {
	Category      Category        `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PercentIncome string          `json:"percent_of_income"`
}

type Goal struct {
	MonthlyNeeded decimal.Decimal `json:"monthly_needed"`
	OnTrack       bool            `json:"on_track"`
	Message       string          `json:"message"`
}

// Split is a needs/wants/savings triple.
type Split struct {
	Needs   decimal.Decimal `json:"needs"`
	Wants   decimal.Decimal `json:"wants"`
	Savings decimal.Decimal `json:"savings"`
}

type Projection struct {
	Months  int             `json:"months"`
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message"`
}

type Report struct {
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	// Savings is negative when expenses exceed income.
	Savings     decimal.Decimal `json:"savings"`
	Deficit     decimal.Decimal `json:"deficit"`
	Status      string          `json:"status"`
	Breakdown   []Line          `json:"breakdown,omitempty"`
	Goal        *Goal           `json:"goal,omitempty"`
	Recommended *Split          `json:"recommended,omitempty"`
	Actual      *Split          `json:"actual,omitempty"`
	Projection  *Projection     `json:"projection,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Evaluate computes the report for in. Amounts are rounded to cents only for
// display; the report values keep full precision.
func Evaluate(in Input) Report {
	var r Report
	for _, c := range Categories {
		r.TotalExpenses = r.TotalExpenses.Add(in.Expenses[c])
	}
	r.Savings = in.Income.Sub(r.TotalExpenses)
	if r.Savings.IsNegative() {
		r.Deficit = r.Savings.Neg()
		r.Status = fmt.Sprintf("Monthly Deficit: $%s", r.Deficit.StringFixed(2))
	} else {
		r.Status = fmt.Sprintf("Monthly Savings: $%s", r.Savings.StringFixed(2))
	}

	incomePositive := in.Income.IsPositive()
	if incomePositive {
		for _, c := range Categories {
			amt := in.Expenses[c]
			r.Breakdown = append(r.Breakdown, Line{
				Category:      c,
				Amount:        amt,
				PercentIncome: amt.Div(in.Income).Mul(hundred).StringFixed(2) + "%",
			})
		}
	}

	if in.GoalAmount.IsPositive() && in.GoalMonths > 0 {
		if r.Savings.IsPositive() {
			needed := in.GoalAmount.Div(decimal.NewFromInt(int64(in.GoalMonths)))
			g := &Goal{MonthlyNeeded: needed, OnTrack: r.Savings.GreaterThanOrEqual(needed)}
			if g.OnTrack {
				g.Message = fmt.Sprintf("You are on track! You need $%s per month to hit your goal.", needed.StringFixed(2))
			} else {
				g.Message = fmt.Sprintf("You need $%s per month to meet your goal. Consider adjustments.", needed.StringFixed(2))
			}
			r.Goal = g
		} else {
			r.Goal = &Goal{Message: "Your current budget does not allow for savings towards your goal."}
		}
	}

	if incomePositive {
		r.Recommended = &Split{
			Needs:   in.Income.Mul(decimal.RequireFromString("0.5")),
			Wants:   in.Income.Mul(decimal.RequireFromString("0.3")),
			Savings: in.Income.Mul(decimal.RequireFromString("0.2")),
		}
		actual := &Split{Savings: decimal.Max(r.Savings, decimal.Zero)}
		for _, c := range needsCategories {
			actual.Needs = actual.Needs.Add(in.Expenses[c])
		}
		for _, c := range wantsCategories {
			actual.Wants = actual.Wants.Add(in.Expenses[c])
		}
		r.Actual = actual
	}

	if in.ProjectionMonths > 0 {
		p := &Projection{Months: in.ProjectionMonths}
		if r.Savings.IsPositive() {
			p.Amount = r.Savings.Mul(decimal.NewFromInt(int64(in.ProjectionMonths)))
			p.Message = fmt.Sprintf("In %d months, you could save about $%s if your situation remains unchanged.",
				in.ProjectionMonths, p.Amount.StringFixed(2))
		} else {
			p.Message = "Your current budget does not allow for savings projection."
		}
		r.Projection = p
	}
	return r
}

func knownCategory(c Category) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}
