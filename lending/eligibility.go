package lending

import (
	"context"
	"errors"
	"time"
)

// Engine makes the single-book admission decision. It composes the category
// hierarchy and the availability calculation with the reader's borrowing
// history, evaluated as an ordered sequence of checks where the first failing
// check rejects.
type Engine struct {
	categories CategoryRepository
	books      BookRepository
	readers    ReaderRepository
	loans      LoanRepository
	hierarchy  Hierarchy
	policy     Policy
	logger     ContextualLogger
	now        func() time.Time
}

// EngineOption defines a functional option for configuring an Engine.
type EngineOption func(*Engine) error

// WithEngineLogger sets the logger for the Engine. Rejections are logged at
// debug level with the reason; repository failures at error level.
func WithEngineLogger(logger ContextualLogger) EngineOption {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithEngineClock overrides the engine's notion of the current moment.
// The date-only and rolling-window rules depend on it; tests inject a fixed clock.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return invalidArgument("clock function must not be nil")
		}

		e.now = now

		return nil
	}
}

// NewEngine creates an Engine over the given repositories with the supplied
// policy and optional configuration.
func NewEngine(
	categories CategoryRepository,
	books BookRepository,
	readers ReaderRepository,
	loans LoanRepository,
	policy Policy,
	options ...EngineOption,
) (Engine, error) {

	if categories == nil || books == nil || readers == nil || loans == nil {
		return Engine{}, ErrNilRepository
	}

	if err := policy.Validate(); err != nil {
		return Engine{}, err
	}

	hierarchy, err := NewHierarchy(categories)
	if err != nil {
		return Engine{}, err
	}

	engine := Engine{
		categories: categories,
		books:      books,
		readers:    readers,
		loans:      loans,
		hierarchy:  hierarchy,
		policy:     policy,
		now:        time.Now,
	}

	for _, option := range options {
		if optionErr := option(&engine); optionErr != nil {
			return Engine{}, optionErr
		}
	}

	return engine, nil
}

// Policy returns the policy the engine was constructed with.
func (e Engine) Policy() Policy {
	return e.policy
}

// Hierarchy returns the category hierarchy the engine traverses.
func (e Engine) Hierarchy() Hierarchy {
	return e.hierarchy
}

// Now returns the current moment as the engine's clock sees it.
func (e Engine) Now() time.Time {
	return e.now()
}

// CanBorrowBook reports whether the reader may borrow the book right now.
// Rule rejections and missing records answer false; only infrastructure
// failures surface as errors.
func (e Engine) CanBorrowBook(ctx context.Context, readerID int, bookID int) (bool, error) {
	err := e.CheckBorrow(ctx, readerID, bookID)

	switch {
	case err == nil:
		return true, nil
	case IsRuleViolation(err) || errors.Is(err, ErrReaderNotFound) || errors.Is(err, ErrBookNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CheckBorrow evaluates the admission checks in order and returns nil on
// approval, an ErrRuleViolation with the rejection reason, a not-found error,
// or an infrastructure failure. The first failing check rejects; failure
// reasons are never aggregated.
func (e Engine) CheckBorrow(ctx context.Context, readerID int, bookID int) error {
	if readerID <= 0 {
		return invalidArgument("reader id must be positive")
	}

	if bookID <= 0 {
		return invalidArgument("book id must be positive")
	}

	reader, readerErr := e.readers.GetReaderByID(ctx, readerID)
	if readerErr != nil {
		return readerErr
	}

	book, bookErr := e.books.GetBookByID(ctx, bookID)
	if bookErr != nil {
		return bookErr
	}

	bookLoans, loansErr := e.loans.GetLoansByBookID(ctx, bookID)
	if loansErr != nil {
		return loansErr
	}

	if err := e.checkAvailability(book, bookLoans); err != nil {
		return e.logRejection(ctx, reader, book, err)
	}

	if err := e.checkActiveLoanQuota(ctx, reader); err != nil {
		return e.logRejection(ctx, reader, book, err)
	}

	if err := e.checkCategoryQuota(ctx, reader, book); err != nil {
		return e.logRejection(ctx, reader, book, err)
	}

	if err := e.checkBorrowCooldown(reader, bookLoans); err != nil {
		return e.logRejection(ctx, reader, book, err)
	}

	if err := e.checkDailyQuota(ctx, reader); err != nil {
		return e.logRejection(ctx, reader, book, err)
	}

	return nil
}

// checkAvailability enforces the stock checks: some copy must be free, some
// stock must be loanable at all, and the availability reservation must hold.
// The reservation denominates against loanable stock, not total copies.
func (e Engine) checkAvailability(book Book, bookLoans []Loan) error {
	available := AvailableCopies(book, bookLoans)
	if available <= 0 {
		return ruleViolation(reasonNoCopiesAvailable)
	}

	stock := LoanableStock(book)
	if stock <= 0 {
		return ruleViolation(reasonNoLoanableStock)
	}

	if float64(available)/float64(stock) < e.policy.MinAvailablePercentage {
		return ruleViolation(reasonAvailabilityReserve)
	}

	return nil
}

// checkActiveLoanQuota enforces the cap on currently active loans.
func (e Engine) checkActiveLoanQuota(ctx context.Context, reader Reader) error {
	activeLoans, err := e.loans.GetActiveLoansByReaderID(ctx, reader.ID)
	if err != nil {
		return err
	}

	if len(activeLoans) >= e.policy.ActiveLoanLimit(reader.IsStaff) {
		return ruleViolation(reasonTooManyActiveLoans)
	}

	return nil
}

// checkCategoryQuota enforces the cumulative category subtree cap: for every
// ancestor of every category tagged on the candidate book, the reader's recent
// loans within that ancestor's whole subtree must stay below the limit. A quota
// hit at a broad ancestor therefore constrains borrowing from any of its
// descendants cumulatively, not independently per leaf category. Shared
// ancestors across the book's categories are evaluated once.
func (e Engine) checkCategoryQuota(ctx context.Context, reader Reader, book Book) error {
	if len(book.CategoryIDs) == 0 {
		return nil
	}

	referenceTime := e.now()
	windowStart := referenceTime.AddDate(0, -e.policy.CategoryLimitMonths, 0)

	recentLoans, loansErr := e.loans.GetLoansBetween(ctx, windowStart, referenceTime)
	if loansErr != nil {
		return loansErr
	}

	readerLoans := filterLoansByReader(recentLoans, reader.ID)
	if len(readerLoans) == 0 {
		return nil
	}

	limit := e.policy.CategoryLimit(reader.IsStaff)
	loanCategoryCache := make(map[int][]int)
	evaluated := make(map[int]struct{})

	for _, categoryID := range book.CategoryIDs {
		ancestors, ancestorsErr := e.hierarchy.Ancestors(ctx, categoryID)
		if ancestorsErr != nil {
			return ancestorsErr
		}

		for _, ancestor := range ancestors {
			if _, done := evaluated[ancestor.ID]; done {
				continue
			}

			evaluated[ancestor.ID] = struct{}{}

			subtree, subtreeErr := e.hierarchy.DescendantIDs(ctx, ancestor.ID)
			if subtreeErr != nil {
				return subtreeErr
			}

			count, countErr := e.countLoansInSubtree(ctx, readerLoans, subtree, loanCategoryCache)
			if countErr != nil {
				return countErr
			}

			if count >= limit {
				return ruleViolation(reasonCategoryQuotaExhausted)
			}
		}
	}

	return nil
}

// countLoansInSubtree counts the loans whose book is tagged with at least one
// category inside the subtree. Book category lookups are cached per call.
func (e Engine) countLoansInSubtree(
	ctx context.Context,
	loans []Loan,
	subtree map[int]struct{},
	cache map[int][]int,
) (int, error) {

	count := 0

	for _, loan := range loans {
		categoryIDs, cached := cache[loan.BookID]
		if !cached {
			book, bookErr := e.books.GetBookByID(ctx, loan.BookID)
			if bookErr != nil {
				return 0, bookErr
			}

			categoryIDs = book.CategoryIDs
			cache[loan.BookID] = categoryIDs
		}

		for _, categoryID := range categoryIDs {
			if _, inSubtree := subtree[categoryID]; inSubtree {
				count++
				break
			}
		}
	}

	return count, nil
}

// checkBorrowCooldown enforces the re-borrow cooldown: after returning this
// exact book, the reader must wait the configured number of days before
// borrowing it again. Only completed loans are considered; exactly at the
// boundary borrowing is allowed again.
func (e Engine) checkBorrowCooldown(reader Reader, bookLoans []Loan) error {
	var lastCompleted *Loan

	for i := range bookLoans {
		loan := &bookLoans[i]

		if loan.ReaderID != reader.ID || loan.ReturnedAt == nil {
			continue
		}

		if lastCompleted == nil || loan.BorrowedAt.After(lastCompleted.BorrowedAt) {
			lastCompleted = loan
		}
	}

	if lastCompleted == nil {
		return nil
	}

	daysSinceReturn := int(e.now().Sub(*lastCompleted.ReturnedAt).Hours() / 24)
	if daysSinceReturn < e.policy.BorrowCooldownDays(reader.IsStaff) {
		return ruleViolation(reasonBorrowCooldown)
	}

	return nil
}

// checkDailyQuota enforces the per-day cap. Staff readers are exempt.
func (e Engine) checkDailyQuota(ctx context.Context, reader Reader) error {
	if reader.IsStaff {
		return nil
	}

	dayStart, dayEnd := dayBounds(e.now())

	todaysLoans, err := e.loans.GetLoansBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return err
	}

	if len(filterLoansByReader(todaysLoans, reader.ID)) >= e.policy.MaxBooksPerDay {
		return ruleViolation(reasonDailyQuotaExhausted)
	}

	return nil
}

// ValidateBookCategories checks a book's category assignment before
// persistence: at most MaxCategoriesPerBook categories, and no two of them in
// an ancestor/descendant relationship with each other.
func (e Engine) ValidateBookCategories(ctx context.Context, categoryIDs []int) error {
	if len(categoryIDs) == 0 {
		return invalidArgument("at least one category is required")
	}

	if len(categoryIDs) > e.policy.MaxCategoriesPerBook {
		return ruleViolation(reasonTooManyCategories)
	}

	for i := 0; i < len(categoryIDs); i++ {
		for j := i + 1; j < len(categoryIDs); j++ {
			related, err := e.categoriesAreRelated(ctx, categoryIDs[i], categoryIDs[j])
			if err != nil {
				return err
			}

			if related {
				return ruleViolation(reasonRelatedCategories)
			}
		}
	}

	return nil
}

func (e Engine) categoriesAreRelated(ctx context.Context, a int, b int) (bool, error) {
	aOverB, err := e.hierarchy.IsAncestorOf(ctx, a, b)
	if err != nil {
		return false, err
	}

	if aOverB {
		return true, nil
	}

	return e.hierarchy.IsAncestorOf(ctx, b, a)
}

// logRejection logs the rule rejection at debug level and passes the error through.
func (e Engine) logRejection(ctx context.Context, reader Reader, book Book, err error) error {
	if e.logger != nil && IsRuleViolation(err) {
		e.logger.DebugContext(ctx, "borrowing rejected",
			logAttrReaderID, reader.ID,
			logAttrBookID, book.ID,
			logAttrReason, err.Error())
	}

	return err
}

func filterLoansByReader(loans []Loan, readerID int) []Loan {
	filtered := make([]Loan, 0, len(loans))

	for _, loan := range loans {
		if loan.ReaderID == readerID {
			filtered = append(filtered, loan)
		}
	}

	return filtered
}

// dayBounds returns the inclusive bounds of the calendar day containing t,
// in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	return start, start.Add(24*time.Hour - time.Nanosecond)
}
