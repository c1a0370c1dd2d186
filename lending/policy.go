package lending

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned when a policy knob is out of range.
var ErrInvalidPolicy = errors.New("invalid policy")

// Policy holds the numeric lending policy knobs. It is an immutable value:
// construct it once (DefaultPolicy, PolicyFromYAML) and pass it into NewEngine.
// Staff scaling (doubled quotas, halved cooldown, no daily cap) is applied by
// the helper methods, never baked into the stored values.
type Policy struct {
	// MaxCategoriesPerBook caps the categories a single book may be tagged with.
	MaxCategoriesPerBook int `yaml:"max_categories_per_book"`

	// MaxBooksPerPeriod caps both the reader's active loans and the loans made
	// within the rolling period window (staff x2).
	MaxBooksPerPeriod int `yaml:"max_books_per_period"`

	// BorrowingPeriodDays is the width of the rolling period window.
	BorrowingPeriodDays int `yaml:"borrowing_period_days"`

	// MaxBooksPerRequest caps the books in a single borrow request (staff x2).
	MaxBooksPerRequest int `yaml:"max_books_per_request"`

	// MaxBooksPerCategory caps the reader's recent loans within any category
	// subtree reachable from the candidate book's categories (staff x2).
	MaxBooksPerCategory int `yaml:"max_books_per_category"`

	// CategoryLimitMonths is the window for the category subtree cap.
	CategoryLimitMonths int `yaml:"category_limit_months"`

	// MaxExtensionDays is both the per-loan lifetime extension cap and the
	// rolling 3-month extension budget (the budget is doubled for staff).
	MaxExtensionDays int `yaml:"max_extension_days"`

	// MinDaysBetweenBorrows is the re-borrow cooldown after returning the same
	// book (staff: halved, integer division).
	MinDaysBetweenBorrows int `yaml:"min_days_between_borrows"`

	// MaxBooksPerDay caps the loans a reader may make per calendar day
	// (staff: unlimited).
	MaxBooksPerDay int `yaml:"max_books_per_day"`

	// MaxBooksStaffPerDay caps the loans a staff member may process per
	// calendar day on behalf of non-staff readers.
	MaxBooksStaffPerDay int `yaml:"max_books_staff_per_day"`

	// MinAvailablePercentage is the fraction of stock kept in reserve:
	// borrowing is rejected once availability falls below it.
	MinAvailablePercentage float64 `yaml:"min_available_percentage"`
}

// DefaultPolicy returns the stock policy values.
func DefaultPolicy() Policy {
	return Policy{
		MaxCategoriesPerBook:   3,
		MaxBooksPerPeriod:      10,
		BorrowingPeriodDays:    28,
		MaxBooksPerRequest:     6,
		MaxBooksPerCategory:    3,
		CategoryLimitMonths:    6,
		MaxExtensionDays:       28,
		MinDaysBetweenBorrows:  10,
		MaxBooksPerDay:         5,
		MaxBooksStaffPerDay:    3,
		MinAvailablePercentage: 0.1,
	}
}

// Validate checks that every knob is in range.
func (p Policy) Validate() error {
	intKnobs := map[string]int{
		"max_categories_per_book":  p.MaxCategoriesPerBook,
		"max_books_per_period":     p.MaxBooksPerPeriod,
		"borrowing_period_days":    p.BorrowingPeriodDays,
		"max_books_per_request":    p.MaxBooksPerRequest,
		"max_books_per_category":   p.MaxBooksPerCategory,
		"category_limit_months":    p.CategoryLimitMonths,
		"max_extension_days":       p.MaxExtensionDays,
		"min_days_between_borrows": p.MinDaysBetweenBorrows,
		"max_books_per_day":        p.MaxBooksPerDay,
		"max_books_staff_per_day":  p.MaxBooksStaffPerDay,
	}

	for name, value := range intKnobs {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidPolicy, name, value)
		}
	}

	if p.MinAvailablePercentage < 0 || p.MinAvailablePercentage > 1 {
		return fmt.Errorf(
			"%w: min_available_percentage must be between 0.0 and 1.0, got %g",
			ErrInvalidPolicy, p.MinAvailablePercentage)
	}

	return nil
}

// ActiveLoanLimit is the cap on currently active loans.
func (p Policy) ActiveLoanLimit(isStaff bool) int {
	return scaledLimit(p.MaxBooksPerPeriod, isStaff)
}

// PeriodLimit is the cap on loans within the rolling period window.
func (p Policy) PeriodLimit(isStaff bool) int {
	return scaledLimit(p.MaxBooksPerPeriod, isStaff)
}

// RequestLimit is the cap on books in a single borrow request.
func (p Policy) RequestLimit(isStaff bool) int {
	return scaledLimit(p.MaxBooksPerRequest, isStaff)
}

// CategoryLimit is the cumulative cap per category subtree.
func (p Policy) CategoryLimit(isStaff bool) int {
	return scaledLimit(p.MaxBooksPerCategory, isStaff)
}

// ExtensionBudget is the rolling 3-month extension day budget.
func (p Policy) ExtensionBudget(isStaff bool) int {
	return scaledLimit(p.MaxExtensionDays, isStaff)
}

// BorrowCooldownDays is the minimum number of days between returning a book
// and borrowing it again. Halved for staff with integer truncation.
func (p Policy) BorrowCooldownDays(isStaff bool) int {
	if isStaff {
		return p.MinDaysBetweenBorrows / 2
	}

	return p.MinDaysBetweenBorrows
}

func scaledLimit(limit int, isStaff bool) int {
	if isStaff {
		return limit * 2
	}

	return limit
}

// PolicyFromYAML unmarshals a policy from YAML on top of the defaults, so a
// file only needs to name the knobs it overrides.
func PolicyFromYAML(data []byte) (Policy, error) {
	policy := DefaultPolicy()

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, errors.Join(ErrInvalidPolicy, err)
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}

	return policy, nil
}

// PolicyFromYAMLFile reads and unmarshals a policy file on top of the defaults.
func PolicyFromYAMLFile(path string) (Policy, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return Policy{}, errors.Join(ErrInvalidPolicy, readErr)
	}

	return PolicyFromYAML(data)
}
