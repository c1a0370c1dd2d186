package lending

import (
	"errors"
	"fmt"
)

var (
	// ErrReaderNotFound is returned when a reader id does not resolve to a record.
	ErrReaderNotFound = errors.New("reader not found")

	// ErrBookNotFound is returned when a book id does not resolve to a record.
	ErrBookNotFound = errors.New("book not found")

	// ErrLoanNotFound is returned when a loan id does not resolve to a record.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrCategoryNotFound is returned when a category id does not resolve to a record.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrInvalidArgument marks a nil/empty required input or a non-positive id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRuleViolation marks a lending policy rejection. The wrapped message
	// carries the human-readable reason for the rejection.
	ErrRuleViolation = errors.New("lending rule violated")

	// ErrHierarchyCorrupted is returned when a parent walk over the category
	// tree revisits a node. The forest invariant forbids cycles, but stored
	// data is not trusted.
	ErrHierarchyCorrupted = errors.New("category hierarchy contains a cycle")

	// ErrConcurrencyConflict is reported by guarded repository writes when no
	// rows were affected because a concurrent writer got there first.
	ErrConcurrencyConflict = errors.New("concurrency conflict, no rows were affected")

	// ErrPersistenceFailed wraps an underlying write failure; the original
	// cause is preserved via errors.Join.
	ErrPersistenceFailed = errors.New("persisting the change failed")

	// ErrNilRepository is returned when a constructor receives a nil repository.
	ErrNilRepository = errors.New("nil repository supplied")
)

// Failure reasons for lending rule rejections.
const (
	reasonNoCopiesAvailable      = "no copies available for lending"
	reasonNoLoanableStock        = "book has no loanable stock"
	reasonAvailabilityReserve    = "available copies are below the reserved fraction"
	reasonTooManyActiveLoans     = "reader has too many active loans"
	reasonCategoryQuotaExhausted = "category quota exhausted for the recent period"
	reasonBorrowCooldown         = "book was returned too recently to borrow again"
	reasonDailyQuotaExhausted    = "daily borrowing quota exhausted"
	reasonProcessorNotStaff      = "processing reader is not a staff member"
	reasonStaffDailyQuota        = "staff member has distributed too many books today"
	reasonRequestTooLarge        = "too many books in a single request"
	reasonRequestNotDiverse      = "request must span at least two categories"
	reasonPeriodQuotaExhausted   = "borrowing quota for the rolling period exhausted"
	reasonLoanNotActive          = "loan is not active"
	reasonExtensionLifetimeCap   = "extension exceeds the loan's lifetime allowance"
	reasonExtensionBudgetCap     = "extension exceeds the rolling extension budget"
	reasonBookNotExtendable      = "book availability is too low for an extension"
	reasonTooManyCategories      = "book is tagged with too many categories"
	reasonRelatedCategories      = "book categories must not be ancestors of each other"
)

func ruleViolation(reason string) error {
	return fmt.Errorf("%w: %s", ErrRuleViolation, reason)
}

func invalidArgument(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, detail)
}

// IsRuleViolation reports whether err is a lending policy rejection rather
// than a missing record or an infrastructure failure.
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrRuleViolation)
}

// IsNotFound reports whether err is any of the missing-record errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReaderNotFound) ||
		errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}
