package core

// Category taxonomy: the fixed, ordered vocabulary of categories per
// transaction type. A transaction's category must belong to the set for
// its type; a type change invalidates the previous category.

var (
	incomeCategories = []string{
		"Salary",
		"Freelance",
		"Investments",
		"Gifts",
		"Other",
	}

	expenseCategories = []string{
		"Food",
		"Transport",
		"Housing",
		"Entertainment",
		"Healthcare",
		"Education",
		"Shopping",
		"Other",
	}
)

// Categories returns the allowed category labels for a type, in display
// order. Unknown types yield nil.
func Categories(t TransactionType) []string {
	switch t {
	case Income:
		return append([]string(nil), incomeCategories...)
	case Expense:
		return append([]string(nil), expenseCategories...)
	}
	return nil
}

// CategoryAllowed reports whether category belongs to the taxonomy set
// keyed by t.
func CategoryAllowed(t TransactionType, category string) bool {
	for _, c := range Categories(t) {
		if c == category {
			return true
		}
	}
	return false
}
