package lending

import (
	"context"
	"errors"
	"time"
)

// extensionWindowMonths is the width of the rolling extension budget window.
const extensionWindowMonths = 3

// Return closes an active loan: the return date is recorded and the active
// flag cleared. A loan that is already closed cannot be returned again; there
// is no transition out of the closed state.
func (s BorrowingService) Return(ctx context.Context, loanID int, returnedAt time.Time) (Loan, error) {
	if loanID <= 0 {
		return Loan{}, invalidArgument("loan id must be positive")
	}

	if returnedAt.IsZero() {
		return Loan{}, invalidArgument("return date is required")
	}

	loan, loanErr := s.engine.loans.GetLoanByID(ctx, loanID)
	if loanErr != nil {
		return Loan{}, loanErr
	}

	if !loan.IsActive || !loan.IsOpen() {
		return Loan{}, ruleViolation(reasonLoanNotActive)
	}

	loan.ReturnedAt = &returnedAt
	loan.IsActive = false

	if updateErr := s.engine.loans.UpdateLoan(ctx, loan); updateErr != nil {
		s.recordDecision(operationReturn, updateErr)
		return Loan{}, errors.Join(ErrPersistenceFailed, updateErr)
	}

	s.recordDecision(operationReturn, nil)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "loan returned",
			logAttrLoanID, loan.ID,
			logAttrReaderID, loan.ReaderID,
			logAttrBookID, loan.BookID)
	}

	return loan, nil
}

// Extend grants additional days on an active loan, subject to the per-loan
// lifetime cap, the book's availability, and the reader's rolling 3-month
// extension budget. On success the due date moves out by extensionDays and the
// extension is recorded on the loan.
//
// The availability check here denominates against raw total copies, unlike the
// borrow-time reservation which denominates against loanable stock. The two
// rules are intentionally different and must stay that way.
func (s BorrowingService) Extend(
	ctx context.Context,
	loanID int,
	extensionDays int,
	extendedAt time.Time,
) (Loan, error) {

	if loanID <= 0 {
		return Loan{}, invalidArgument("loan id must be positive")
	}

	if extensionDays <= 0 {
		return Loan{}, invalidArgument("extension days must be positive")
	}

	if extendedAt.IsZero() {
		return Loan{}, invalidArgument("extension date is required")
	}

	loan, loanErr := s.engine.loans.GetLoanByID(ctx, loanID)
	if loanErr != nil {
		return Loan{}, loanErr
	}

	if !loan.IsActive || !loan.IsOpen() {
		return Loan{}, s.rejectExtension(ctx, loan, ruleViolation(reasonLoanNotActive))
	}

	reader, readerErr := s.engine.readers.GetReaderByID(ctx, loan.ReaderID)
	if readerErr != nil {
		return Loan{}, readerErr
	}

	if loan.ExtensionDays+extensionDays > s.engine.policy.MaxExtensionDays {
		return Loan{}, s.rejectExtension(ctx, loan, ruleViolation(reasonExtensionLifetimeCap))
	}

	if err := s.checkExtensionAvailability(ctx, loan.BookID); err != nil {
		return Loan{}, s.rejectExtension(ctx, loan, err)
	}

	if err := s.checkExtensionBudget(ctx, reader, extensionDays, extendedAt); err != nil {
		return Loan{}, s.rejectExtension(ctx, loan, err)
	}

	loan.DueAt = loan.DueAt.AddDate(0, 0, extensionDays)
	loan.ExtensionDays += extensionDays
	loan.LastExtendedAt = &extendedAt

	if updateErr := s.engine.loans.UpdateLoan(ctx, loan); updateErr != nil {
		s.recordDecision(operationExtend, updateErr)
		return Loan{}, errors.Join(ErrPersistenceFailed, updateErr)
	}

	s.recordDecision(operationExtend, nil)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "loan extended",
			logAttrLoanID, loan.ID,
			logAttrReaderID, loan.ReaderID,
			"extension_days", extensionDays)
	}

	return loan, nil
}

// ExtendAdvanced extends the loan using the current moment as the extension date.
func (s BorrowingService) ExtendAdvanced(ctx context.Context, loanID int, extensionDays int) (Loan, error) {
	return s.Extend(ctx, loanID, extensionDays, s.engine.now())
}

// checkExtensionAvailability requires the book to have a free copy and an
// availability fraction of at least the reserved minimum, measured against
// raw total copies.
func (s BorrowingService) checkExtensionAvailability(ctx context.Context, bookID int) error {
	book, bookErr := s.engine.books.GetBookByID(ctx, bookID)
	if bookErr != nil {
		return bookErr
	}

	bookLoans, loansErr := s.engine.loans.GetLoansByBookID(ctx, bookID)
	if loansErr != nil {
		return loansErr
	}

	available := AvailableCopies(book, bookLoans)
	if available <= 0 || book.TotalCopies <= 0 {
		return ruleViolation(reasonBookNotExtendable)
	}

	if float64(available)/float64(book.TotalCopies) < s.engine.policy.MinAvailablePercentage {
		return ruleViolation(reasonBookNotExtendable)
	}

	return nil
}

// checkExtensionBudget enforces the rolling 3-month extension budget: the
// extension days already granted across the reader's loans borrowed within the
// window, plus the requested days, must stay within the budget. Loans borrowed
// before the window do not count even if they still carry extension days.
func (s BorrowingService) checkExtensionBudget(
	ctx context.Context,
	reader Reader,
	extensionDays int,
	extendedAt time.Time,
) error {

	windowStart := extendedAt.AddDate(0, -extensionWindowMonths, 0)

	windowLoans, err := s.engine.loans.GetLoansBetween(ctx, windowStart, extendedAt)
	if err != nil {
		return err
	}

	grantedInWindow := 0

	for _, loan := range filterLoansByReader(windowLoans, reader.ID) {
		grantedInWindow += loan.ExtensionDays
	}

	if grantedInWindow+extensionDays > s.engine.policy.ExtensionBudget(reader.IsStaff) {
		return ruleViolation(reasonExtensionBudgetCap)
	}

	return nil
}

func (s BorrowingService) rejectExtension(ctx context.Context, loan Loan, err error) error {
	s.recordDecision(operationExtend, err)

	if s.logger != nil && IsRuleViolation(err) {
		s.logger.DebugContext(ctx, "extension rejected",
			logAttrLoanID, loan.ID,
			logAttrReaderID, loan.ReaderID,
			logAttrReason, err.Error())
	}

	return err
}
