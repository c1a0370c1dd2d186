package lending

import (
	"context"
	"time"
)

// CategoryRepository provides read access to the category tree.
// Implementations return ErrCategoryNotFound (possibly wrapped) for unknown ids.
type CategoryRepository interface {
	GetCategoryByID(ctx context.Context, id int) (Category, error)
	GetCategoriesByParentID(ctx context.Context, parentID int) ([]Category, error)
}

// BookRepository provides read access to the catalog.
// Implementations return ErrBookNotFound (possibly wrapped) for unknown ids.
type BookRepository interface {
	GetBookByID(ctx context.Context, id int) (Book, error)
	GetBooksByCategoryID(ctx context.Context, categoryID int) ([]Book, error)
}

// ReaderRepository provides read access to the registered readers.
// Implementations return ErrReaderNotFound (possibly wrapped) for unknown ids.
type ReaderRepository interface {
	GetReaderByID(ctx context.Context, id int) (Reader, error)
}

// LoanRepository provides read and write access to loan records.
//
// GetLoansBetween returns loans with a borrow date inside [from, to], both
// bounds inclusive, for all readers; callers filter further.
//
// AddLoan assigns the id and returns the stored record. Implementations may
// guard the insert against the book's availability and report
// ErrConcurrencyConflict when a concurrent borrow exhausted the stock between
// the admission check and the write. UpdateLoan implementations may likewise
// report ErrConcurrencyConflict when the loan was concurrently closed.
type LoanRepository interface {
	GetLoanByID(ctx context.Context, id int) (Loan, error)
	GetActiveLoansByReaderID(ctx context.Context, readerID int) ([]Loan, error)
	GetLoansByBookID(ctx context.Context, bookID int) ([]Loan, error)
	GetLoansBetween(ctx context.Context, from time.Time, to time.Time) ([]Loan, error)
	AddLoan(ctx context.Context, loan Loan) (Loan, error)
	UpdateLoan(ctx context.Context, loan Loan) error
}
