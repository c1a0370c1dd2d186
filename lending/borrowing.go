package lending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// minBooksForDiversityRule is the request size from which the category
	// diversity rule applies.
	minBooksForDiversityRule = 3

	// minDistinctCategories is the number of distinct category ids a large
	// request must span. Diversity is measured on raw category ids, not on the
	// hierarchy: two leaves under the same parent still count as two.
	minDistinctCategories = 2

	operationBorrow = "borrow"
	operationExtend = "extend"
	operationReturn = "return"
)

// BorrowingService layers the request-level quotas on top of the Engine and
// drives loans through their lifecycle. It shares the engine's repositories,
// policy and clock.
type BorrowingService struct {
	engine       Engine
	logger       ContextualLogger
	metrics      MetricsCollector
	retryOptions []RetryOption
}

// ServiceOption defines a functional option for configuring a BorrowingService.
type ServiceOption func(*BorrowingService) error

// WithServiceLogger sets the logger for the BorrowingService.
func WithServiceLogger(logger ContextualLogger) ServiceOption {
	return func(s *BorrowingService) error {
		s.logger = logger
		return nil
	}
}

// WithServiceMetrics sets the metrics collector for decision and retry instrumentation.
func WithServiceMetrics(collector MetricsCollector) ServiceOption {
	return func(s *BorrowingService) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		s.metrics = collector

		return nil
	}
}

// WithServiceRetryOptions sets a custom retry configuration for the guarded
// borrow writes.
func WithServiceRetryOptions(options ...RetryOption) ServiceOption {
	return func(s *BorrowingService) error {
		s.retryOptions = options
		return nil
	}
}

// NewBorrowingService creates a BorrowingService around an Engine with
// optional configuration.
func NewBorrowingService(engine Engine, options ...ServiceOption) (BorrowingService, error) {
	if engine.loans == nil {
		return BorrowingService{}, ErrNilRepository
	}

	service := BorrowingService{engine: engine}

	for _, option := range options {
		if err := option(&service); err != nil {
			return BorrowingService{}, err
		}
	}

	return service, nil
}

// CreateBorrowings admits and persists a multi-book borrow request. The
// request-level quotas are checked first; each book is then re-evaluated
// individually through the engine and persisted as the loop proceeds.
//
// A mid-batch rejection stops the call immediately but does NOT roll back the
// loans already persisted for earlier books: the created slice returned
// alongside the error holds exactly those. Callers that need all-or-nothing
// semantics must compensate themselves.
func (s BorrowingService) CreateBorrowings(
	ctx context.Context,
	readerID int,
	bookIDs []int,
	borrowedAt time.Time,
	daysToBorrow int,
	staffID *int,
) ([]Loan, error) {

	if err := validateBorrowRequest(readerID, bookIDs, borrowedAt, daysToBorrow); err != nil {
		return nil, err
	}

	reader, readerErr := s.engine.readers.GetReaderByID(ctx, readerID)
	if readerErr != nil {
		return nil, readerErr
	}

	if err := s.checkStaffDistribution(ctx, reader, staffID, borrowedAt, len(bookIDs)); err != nil {
		return nil, err
	}

	if len(bookIDs) > s.engine.policy.RequestLimit(reader.IsStaff) {
		return nil, ruleViolation(reasonRequestTooLarge)
	}

	if err := s.checkCategoryDiversity(ctx, bookIDs); err != nil {
		return nil, err
	}

	if err := s.checkBatchDailyQuota(ctx, reader, borrowedAt, len(bookIDs)); err != nil {
		return nil, err
	}

	if err := s.checkBatchPeriodQuota(ctx, reader, borrowedAt, len(bookIDs)); err != nil {
		return nil, err
	}

	requestID := uuid.New()
	created := make([]Loan, 0, len(bookIDs))

	for _, bookID := range bookIDs {
		loan, borrowErr := s.borrowOne(ctx, reader, bookID, borrowedAt, daysToBorrow, staffID, requestID)
		if borrowErr != nil {
			// Loans persisted for earlier books in this request stay persisted.
			return created, borrowErr
		}

		created = append(created, loan)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "borrow request completed",
			logAttrRequestID, requestID.String(),
			logAttrReaderID, reader.ID,
			logAttrBatchSize, len(created))
	}

	return created, nil
}

// Borrow is the single-book entry point used by both the single and the batch
// flow. It runs the engine's admission checks and persists a new active loan.
func (s BorrowingService) Borrow(
	ctx context.Context,
	readerID int,
	bookID int,
	borrowedAt time.Time,
	daysToBorrow int,
) (Loan, error) {

	if err := validateBorrowRequest(readerID, []int{bookID}, borrowedAt, daysToBorrow); err != nil {
		return Loan{}, err
	}

	reader, readerErr := s.engine.readers.GetReaderByID(ctx, readerID)
	if readerErr != nil {
		return Loan{}, readerErr
	}

	return s.borrowOne(ctx, reader, bookID, borrowedAt, daysToBorrow, nil, uuid.New())
}

// borrowOne runs the admission-check-then-write pair under optimistic
// concurrency retry: a guarded insert losing a race reports
// ErrConcurrencyConflict and the admission checks are re-evaluated against the
// new state before the write is attempted again.
func (s BorrowingService) borrowOne(
	ctx context.Context,
	reader Reader,
	bookID int,
	borrowedAt time.Time,
	daysToBorrow int,
	staffID *int,
	requestID uuid.UUID,
) (Loan, error) {

	var created Loan

	retryOptions := s.retryOptionsFor(operationBorrow)

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		if checkErr := s.engine.CheckBorrow(retryCtx, reader.ID, bookID); checkErr != nil {
			return checkErr
		}

		loan := Loan{
			ReaderID:    reader.ID,
			StaffID:     staffID,
			BookID:      bookID,
			BorrowedAt:  borrowedAt,
			DueAt:       borrowedAt.AddDate(0, 0, daysToBorrow),
			IsActive:    true,
			InitialDays: daysToBorrow,
		}

		added, addErr := s.engine.loans.AddLoan(retryCtx, loan)
		if addErr != nil {
			if errors.Is(addErr, ErrConcurrencyConflict) {
				return addErr
			}

			return errors.Join(ErrPersistenceFailed, addErr)
		}

		created = added

		return nil
	}, retryOptions...)

	s.recordDecision(operationBorrow, err)

	if err != nil {
		if s.logger != nil && IsRuleViolation(err) {
			s.logger.DebugContext(ctx, "borrowing rejected in request",
				logAttrRequestID, requestID.String(),
				logAttrReaderID, reader.ID,
				logAttrBookID, bookID,
				logAttrReason, err.Error())
		}

		return Loan{}, err
	}

	return created, nil
}

// checkStaffDistribution validates the processing staff member and enforces
// the staff daily distribution cap. The cap only binds when the borrowing
// reader itself is not staff.
func (s BorrowingService) checkStaffDistribution(
	ctx context.Context,
	reader Reader,
	staffID *int,
	borrowedAt time.Time,
	requestedCount int,
) error {

	if staffID == nil {
		return nil
	}

	if *staffID <= 0 {
		return invalidArgument("staff id must be positive")
	}

	staff, staffErr := s.engine.readers.GetReaderByID(ctx, *staffID)
	if staffErr != nil {
		return staffErr
	}

	if !staff.IsStaff {
		return ruleViolation(reasonProcessorNotStaff)
	}

	if reader.IsStaff {
		return nil
	}

	dayStart, dayEnd := dayBounds(borrowedAt)

	todaysLoans, loansErr := s.engine.loans.GetLoansBetween(ctx, dayStart, dayEnd)
	if loansErr != nil {
		return loansErr
	}

	processedToday := 0

	for _, loan := range todaysLoans {
		if loan.StaffID != nil && *loan.StaffID == staff.ID {
			processedToday++
		}
	}

	if processedToday+requestedCount > s.engine.policy.MaxBooksStaffPerDay {
		return ruleViolation(reasonStaffDailyQuota)
	}

	return nil
}

// checkCategoryDiversity enforces the diversity rule for requests of three or
// more books: the union of the requested books' category ids must span at
// least two distinct ids.
func (s BorrowingService) checkCategoryDiversity(ctx context.Context, bookIDs []int) error {
	if len(bookIDs) < minBooksForDiversityRule {
		return nil
	}

	distinct := make(map[int]struct{})

	for _, bookID := range bookIDs {
		book, bookErr := s.engine.books.GetBookByID(ctx, bookID)
		if bookErr != nil {
			return bookErr
		}

		for _, categoryID := range book.CategoryIDs {
			distinct[categoryID] = struct{}{}
		}
	}

	if len(distinct) < minDistinctCategories {
		return ruleViolation(reasonRequestNotDiverse)
	}

	return nil
}

// checkBatchDailyQuota enforces the daily cap against the whole batch size.
// Staff readers are exempt.
func (s BorrowingService) checkBatchDailyQuota(
	ctx context.Context,
	reader Reader,
	borrowedAt time.Time,
	batchSize int,
) error {

	if reader.IsStaff {
		return nil
	}

	dayStart, dayEnd := dayBounds(borrowedAt)

	todaysLoans, err := s.engine.loans.GetLoansBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return err
	}

	alreadyToday := len(filterLoansByReader(todaysLoans, reader.ID))
	if alreadyToday+batchSize > s.engine.policy.MaxBooksPerDay {
		return ruleViolation(reasonDailyQuotaExhausted)
	}

	return nil
}

// checkBatchPeriodQuota enforces the rolling period cap against the whole
// batch size.
func (s BorrowingService) checkBatchPeriodQuota(
	ctx context.Context,
	reader Reader,
	borrowedAt time.Time,
	batchSize int,
) error {

	windowStart := borrowedAt.AddDate(0, 0, -s.engine.policy.BorrowingPeriodDays)

	periodLoans, err := s.engine.loans.GetLoansBetween(ctx, windowStart, borrowedAt)
	if err != nil {
		return err
	}

	inPeriod := len(filterLoansByReader(periodLoans, reader.ID))
	if inPeriod+batchSize > s.engine.policy.PeriodLimit(reader.IsStaff) {
		return ruleViolation(reasonPeriodQuotaExhausted)
	}

	return nil
}

func (s BorrowingService) retryOptionsFor(operation string) []RetryOption {
	options := s.retryOptions

	if s.metrics != nil {
		options = append(options, WithRetryMetrics(s.metrics, operation))
	}

	return options
}

func (s BorrowingService) recordDecision(operation string, err error) {
	if s.metrics == nil {
		return
	}

	outcome := OutcomeApproved

	switch {
	case err == nil:
	case IsRuleViolation(err) || IsNotFound(err):
		outcome = OutcomeRejected
	default:
		outcome = OutcomeError
	}

	metricName := BorrowDecisionsMetric

	switch operation {
	case operationExtend:
		metricName = ExtensionDecisionsMetric
	case operationReturn:
		metricName = ReturnDecisionsMetric
	}

	s.metrics.IncrementCounter(metricName, outcomeLabels(operation, outcome))
}

func validateBorrowRequest(readerID int, bookIDs []int, borrowedAt time.Time, daysToBorrow int) error {
	if readerID <= 0 {
		return invalidArgument("reader id must be positive")
	}

	if len(bookIDs) == 0 {
		return invalidArgument("at least one book id is required")
	}

	for _, bookID := range bookIDs {
		if bookID <= 0 {
			return invalidArgument("book ids must be positive")
		}
	}

	if borrowedAt.IsZero() {
		return invalidArgument("borrowing date is required")
	}

	if daysToBorrow <= 0 {
		return invalidArgument("days to borrow must be positive")
	}

	return nil
}
