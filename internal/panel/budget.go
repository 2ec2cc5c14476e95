package panel

// Budget thresholds on the number of simultaneously enabled tools.
// Both bounds are inclusive: 30 is still OK, 40 is still a warning.
const (
	BudgetOKLimit      = 30
	BudgetWarningLimit = 40
)

// BudgetStatus is the three-tier budget indicator.
type BudgetStatus int

const (
	BudgetOK BudgetStatus = iota
	BudgetWarning
	BudgetOver
)

// ClassifyBudget maps an enabled-tool count to its budget tier.
func ClassifyBudget(enabled int) BudgetStatus {
	switch {
	case enabled <= BudgetOKLimit:
		return BudgetOK
	case enabled <= BudgetWarningLimit:
		return BudgetWarning
	default:
		return BudgetOver
	}
}

func (b BudgetStatus) String() string {
	switch b {
	case BudgetWarning:
		return "Warning"
	case BudgetOver:
		return "Over"
	default:
		return "OK"
	}
}

// Class is the style class of the budget indicator.
func (b BudgetStatus) Class() string {
	switch b {
	case BudgetWarning:
		return "stat budget-indicator warning"
	case BudgetOver:
		return "stat budget-indicator over"
	default:
		return "stat budget-indicator"
	}
}

func (b BudgetStatus) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// Stats are the aggregate counters shown above the tool list.
type Stats struct {
	Enabled int `json:"enabled"`
	Total   int `json:"total"`
}

// Budget classifies the enabled count.
func (s Stats) Budget() BudgetStatus { return ClassifyBudget(s.Enabled) }
