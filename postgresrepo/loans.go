package postgresrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/openlibro/library-lending-go/lending"
)

type loanRow struct {
	id             int
	readerID       int
	staffID        sql.NullInt64
	bookID         int
	borrowedAt     time.Time
	dueAt          time.Time
	returnedAt     sql.NullTime
	isActive       bool
	initialDays    int
	extensionDays  int
	lastExtendedAt sql.NullTime
}

func (r loanRow) toLoan() lending.Loan {
	loan := lending.Loan{
		ID:            r.id,
		ReaderID:      r.readerID,
		BookID:        r.bookID,
		BorrowedAt:    r.borrowedAt,
		DueAt:         r.dueAt,
		IsActive:      r.isActive,
		InitialDays:   r.initialDays,
		ExtensionDays: r.extensionDays,
	}

	if r.staffID.Valid {
		staffID := int(r.staffID.Int64)
		loan.StaffID = &staffID
	}

	if r.returnedAt.Valid {
		returnedAt := r.returnedAt.Time
		loan.ReturnedAt = &returnedAt
	}

	if r.lastExtendedAt.Valid {
		lastExtendedAt := r.lastExtendedAt.Time
		loan.LastExtendedAt = &lastExtendedAt
	}

	return loan
}

// GetLoanByID retrieves a single loan by its id.
func (s Store) GetLoanByID(ctx context.Context, id int) (lending.Loan, error) {
	selectStmt := s.loanSelect().Where(goqu.Ex{colID: id})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return lending.Loan{}, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return lending.Loan{}, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return lending.Loan{}, fmt.Errorf("%w: id %d", lending.ErrLoanNotFound, id)
	}

	return s.scanLoan(rows)
}

// GetActiveLoansByReaderID retrieves the reader's currently active loans.
func (s Store) GetActiveLoansByReaderID(ctx context.Context, readerID int) ([]lending.Loan, error) {
	selectStmt := s.loanSelect().
		Where(goqu.Ex{colReaderID: readerID, colIsActive: true}).
		Order(goqu.I(colID).Asc())

	return s.queryLoans(ctx, selectStmt)
}

// GetLoansByBookID retrieves every loan of a book, open and closed.
func (s Store) GetLoansByBookID(ctx context.Context, bookID int) ([]lending.Loan, error) {
	selectStmt := s.loanSelect().
		Where(goqu.Ex{colBookID: bookID}).
		Order(goqu.I(colID).Asc())

	return s.queryLoans(ctx, selectStmt)
}

// GetLoansBetween retrieves the loans borrowed inside [from, to], both bounds
// inclusive, for all readers.
func (s Store) GetLoansBetween(ctx context.Context, from time.Time, to time.Time) ([]lending.Loan, error) {
	selectStmt := s.loanSelect().
		Where(
			goqu.C(colBorrowedAt).Gte(from),
			goqu.C(colBorrowedAt).Lte(to),
		).
		Order(goqu.I(colID).Asc())

	return s.queryLoans(ctx, selectStmt)
}

// AddLoan inserts a new loan guarded against the book's loanable stock: the
// insert only happens while the count of open loans for the book is below
// total copies minus reading room copies. A concurrent borrow that exhausted
// the stock between the caller's admission check and this write makes the
// guard fail, and the conflict is reported so the caller can re-check and retry.
func (s Store) AddLoan(ctx context.Context, loan lending.Loan) (lending.Loan, error) {
	builder := s.builder()

	// Define the subqueries for the CTEs
	openLoansStmt := builder.
		From(s.tables.Loans).
		Select(goqu.COUNT(goqu.Star()).As(aliasOpenCount)).
		Where(goqu.Ex{colBookID: loan.BookID}, goqu.C(colReturnedAt).IsNull())

	stockStmt := builder.
		From(s.tables.Books).
		Select(goqu.L("? - ?", goqu.C(colTotalCopies), goqu.C(colReadingRoomCopies)).As(aliasLoanable)).
		Where(goqu.Ex{colID: loan.BookID})

	// Define the SELECT for the INSERT
	selectStmt := builder.
		From(cteOpenLoans, cteStock).
		Select(
			goqu.V(loan.ReaderID), nullableIntValue(loan.StaffID), goqu.V(loan.BookID),
			goqu.V(loan.BorrowedAt), goqu.V(loan.DueAt),
			goqu.V(loan.IsActive), goqu.V(loan.InitialDays), goqu.V(loan.ExtensionDays),
		).
		Where(goqu.C(aliasOpenCount).Lt(goqu.C(aliasLoanable)))

	// Finalize the full INSERT query
	insertStmt := builder.
		Insert(s.tables.Loans).
		Cols(
			colReaderID, colStaffID, colBookID,
			colBorrowedAt, colDueAt,
			colIsActive, colInitialDays, colExtensionDays,
		).
		FromQuery(selectStmt).
		With(cteOpenLoans, openLoansStmt).
		With(cteStock, stockStmt).
		Returning(colID)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return lending.Loan{}, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return lending.Loan{}, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		if s.logger != nil {
			s.logger.Info(logMsgConcurrencyConflict, logAttrBookID, loan.BookID)
		}

		return lending.Loan{}, lending.ErrConcurrencyConflict
	}

	if scanErr := rows.Scan(&loan.ID); scanErr != nil {
		return lending.Loan{}, s.logScanError(scanErr)
	}

	if s.logger != nil {
		s.logger.Info(logMsgLoanAdded, logAttrLoanID, loan.ID, logAttrBookID, loan.BookID)
	}

	return loan, nil
}

// UpdateLoan writes the loan's mutable lifecycle fields, guarded against a
// concurrent close: the update only matches while the stored row is still
// open. Zero affected rows means the loan was closed (or removed) by a
// concurrent writer, and the conflict is reported to the caller.
func (s Store) UpdateLoan(ctx context.Context, loan lending.Loan) error {
	updateStmt := s.builder().
		Update(s.tables.Loans).
		Set(goqu.Record{
			colDueAt:          loan.DueAt,
			colReturnedAt:     nullableTimeValue(loan.ReturnedAt),
			colIsActive:       loan.IsActive,
			colExtensionDays:  loan.ExtensionDays,
			colLastExtendedAt: nullableTimeValue(loan.LastExtendedAt),
		}).
		Where(goqu.Ex{colID: loan.ID}, goqu.C(colReturnedAt).IsNull())

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		return s.logBuildQueryError(toSQLErr)
	}

	rowsAffected, execErr := s.executeExec(ctx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		if s.logger != nil {
			s.logger.Info(logMsgConcurrencyConflict, logAttrLoanID, loan.ID)
		}

		return lending.ErrConcurrencyConflict
	}

	if s.logger != nil {
		s.logger.Info(logMsgLoanUpdated, logAttrLoanID, loan.ID)
	}

	return nil
}

func (s Store) loanSelect() *goqu.SelectDataset {
	return s.builder().
		From(s.tables.Loans).
		Select(
			colID, colReaderID, colStaffID, colBookID,
			colBorrowedAt, colDueAt, colReturnedAt,
			colIsActive, colInitialDays, colExtensionDays, colLastExtendedAt,
		)
}

func (s Store) queryLoans(ctx context.Context, selectStmt *goqu.SelectDataset) ([]lending.Loan, error) {
	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, s.logBuildQueryError(toSQLErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(rows)

	loans := make([]lending.Loan, 0)

	for rows.Next() {
		loan, scanErr := s.scanLoan(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		loans = append(loans, loan)
	}

	return loans, nil
}

func (s Store) scanLoan(rows interface{ Scan(dest ...any) error }) (lending.Loan, error) {
	var row loanRow

	if scanErr := rows.Scan(
		&row.id, &row.readerID, &row.staffID, &row.bookID,
		&row.borrowedAt, &row.dueAt, &row.returnedAt,
		&row.isActive, &row.initialDays, &row.extensionDays, &row.lastExtendedAt,
	); scanErr != nil {
		return lending.Loan{}, s.logScanError(scanErr)
	}

	return row.toLoan(), nil
}

func nullableIntValue(value *int) any {
	if value == nil {
		return goqu.V(nil)
	}

	return goqu.V(*value)
}

func nullableTimeValue(value *time.Time) any {
	if value == nil {
		return nil
	}

	return *value
}
